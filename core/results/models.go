package results

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
)

// Assessment types
const (
	TypeCA1        = "ca1"
	TypeCA2        = "ca2"
	TypeCA3        = "ca3"
	TypeExam       = "exam"
	TypeAssignment = "assignment"
	TypeProject    = "project"
	TypePractical  = "practical"
)

var AssessmentTypes = []string{TypeCA1, TypeCA2, TypeCA3, TypeExam, TypeAssignment, TypeProject, TypePractical}

type Assessment struct {
	ID               int             `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Type             string          `json:"type" db:"type"`
	MaxScore         decimal.Decimal `json:"max_score" db:"max_score"`
	WeightPercentage decimal.Decimal `json:"weight_percentage" db:"weight_percentage"`
	IsActive         bool            `json:"is_active" db:"is_active"`
}

// StudentResult is one student's score on one assessment of a subject in a term.
type StudentResult struct {
	ID           int             `json:"id" db:"id"`
	StudentID    int             `json:"student_id" db:"student_id"`
	SubjectID    int             `json:"subject_id" db:"subject_id"`
	SessionID    int             `json:"session_id" db:"session_id"`
	TermID       int             `json:"term_id" db:"term_id"`
	AssessmentID int             `json:"assessment_id" db:"assessment_id"`
	ClassID      int             `json:"class_id" db:"class_id"`
	Score        decimal.Decimal `json:"score" db:"score"`
	Remarks      string          `json:"remarks" db:"remarks"`
	EnteredBy    null.Int        `json:"entered_by" db:"entered_by"`
	EnteredAt    time.Time       `json:"entered_at" db:"entered_at"`
}

// TermResult is the compiled grade of a student in a subject for a term.
// It is derived from StudentResult rows and recompiled from scratch.
type TermResult struct {
	ID              int             `json:"id" db:"id"`
	StudentID       int             `json:"student_id" db:"student_id"`
	SubjectID       int             `json:"subject_id" db:"subject_id"`
	SessionID       int             `json:"session_id" db:"session_id"`
	TermID          int             `json:"term_id" db:"term_id"`
	ClassID         int             `json:"class_id" db:"class_id"`
	TotalScore      decimal.Decimal `json:"total_score" db:"total_score"`
	TotalPossible   decimal.Decimal `json:"total_possible" db:"total_possible"`
	Percentage      decimal.Decimal `json:"percentage" db:"percentage"`
	Grade           string          `json:"grade" db:"grade"`
	PositionInClass null.Int        `json:"position_in_class" db:"position_in_class"`
	TotalStudents   null.Int        `json:"total_students" db:"total_students"`
	TeacherRemarks  string          `json:"teacher_remarks" db:"teacher_remarks"`
	CompiledBy      null.Int        `json:"compiled_by" db:"compiled_by"`
	CompiledAt      time.Time       `json:"compiled_at" db:"compiled_at"`
}

// ResultSheet is a student's overall report card for a term.
type ResultSheet struct {
	ID                int             `json:"id" db:"id"`
	StudentID         int             `json:"student_id" db:"student_id"`
	SessionID         int             `json:"session_id" db:"session_id"`
	TermID            int             `json:"term_id" db:"term_id"`
	ClassID           int             `json:"class_id" db:"class_id"`
	TotalScore        decimal.Decimal `json:"total_score" db:"total_score"`
	TotalPossible     decimal.Decimal `json:"total_possible" db:"total_possible"`
	OverallPercentage decimal.Decimal `json:"overall_percentage" db:"overall_percentage"`
	OverallGrade      string          `json:"overall_grade" db:"overall_grade"`
	PositionInClass   null.Int        `json:"position_in_class" db:"position_in_class"`
	TotalStudents     null.Int        `json:"total_students" db:"total_students"`
	TeacherRemarks    string          `json:"teacher_remarks" db:"teacher_remarks"`
	PrincipalRemarks  string          `json:"principal_remarks" db:"principal_remarks"`
	TotalDaysPresent  int             `json:"total_days_present" db:"total_days_present"`
	TotalDaysAbsent   int             `json:"total_days_absent" db:"total_days_absent"`
	TotalSchoolDays   int             `json:"total_school_days" db:"total_school_days"`
	IsPublished       bool            `json:"is_published" db:"is_published"`
	PublishedAt       null.Time       `json:"published_at" db:"published_at"`
	PublishedBy       null.Int        `json:"published_by" db:"published_by"`
	CompiledAt        time.Time       `json:"compiled_at" db:"compiled_at"`
}

func (rs ResultSheet) Period() academic.Period {
	return academic.Period{SessionID: rs.SessionID, TermID: rs.TermID}
}

// Attendance is the term's attendance tally printed on a result sheet.
type Attendance struct {
	DaysPresent int `json:"days_present" validate:"min=0"`
	DaysAbsent  int `json:"days_absent" validate:"min=0"`
	SchoolDays  int `json:"school_days" validate:"min=0"`
}

// TermKey identifies a TermResult.
type TermKey struct {
	StudentID int `json:"student_id" validate:"required,gt=0"`
	SubjectID int `json:"subject_id" validate:"required,gt=0"`
	SessionID int `json:"session_id" validate:"required,gt=0"`
	TermID    int `json:"term_id" validate:"required,gt=0"`
}

func (k TermKey) Period() academic.Period {
	return academic.Period{SessionID: k.SessionID, TermID: k.TermID}
}

type NewAssessment struct {
	Name             string          `json:"name" validate:"required,max=100"`
	Type             string          `json:"type" validate:"required,oneof=ca1 ca2 ca3 exam assignment project practical"`
	MaxScore         decimal.Decimal `json:"max_score" validate:"gte=1,lte=100"`
	WeightPercentage decimal.Decimal `json:"weight_percentage" validate:"gte=0,lte=100"`
}

func (na *NewAssessment) Clean() {
	na.Name = core.CleanString(na.Name)
	na.Type = core.CleanString(na.Type, true /* lower */)
	na.MaxScore = core.Round2(na.MaxScore)
	na.WeightPercentage = core.Round2(na.WeightPercentage)
}

// NewResult contains one score to record.
type NewResult struct {
	StudentID    int             `json:"student_id" validate:"required,gt=0"`
	SubjectID    int             `json:"subject_id" validate:"required,gt=0"`
	SessionID    int             `json:"session_id" validate:"required,gt=0"`
	TermID       int             `json:"term_id" validate:"required,gt=0"`
	AssessmentID int             `json:"assessment_id" validate:"required,gt=0"`
	ClassID      int             `json:"class_id" validate:"omitempty,gt=0"`
	Score        decimal.Decimal `json:"score" validate:"gte=0"`
	Remarks      string          `json:"remarks" validate:"max=500"`
}

// UploadTarget fixes everything a CSV row does not carry.
type UploadTarget struct {
	SessionID    int `json:"session_id" validate:"required,gt=0"`
	TermID       int `json:"term_id" validate:"required,gt=0"`
	SubjectID    int `json:"subject_id" validate:"required,gt=0"`
	ClassID      int `json:"class_id" validate:"required,gt=0"`
	AssessmentID int `json:"assessment_id" validate:"required,gt=0"`
}

type ResultFilter struct {
	StudentID    int
	SubjectID    int
	SessionID    int
	TermID       int
	ClassID      int
	AssessmentID int
}

type TermResultFilter struct {
	StudentID int
	SubjectID int
	SessionID int
	TermID    int
	ClassID   int
}

type SheetFilter struct {
	StudentID   int
	SessionID   int
	TermID      int
	ClassID     int
	IsPublished *bool
}
