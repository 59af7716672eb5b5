package academic

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
)

// Terms
const (
	TermFirst  = "first"
	TermSecond = "second"
	TermThird  = "third"
)

var TermNames = []string{TermFirst, TermSecond, TermThird}

type Session struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"` // 2024/2025
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	IsCurrent bool      `json:"is_current" db:"is_current"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Term struct {
	ID        int       `json:"id" db:"id"`
	SessionID int       `json:"session_id" db:"session_id"`
	Name      string    `json:"name" db:"name"`
	StartDate null.Time `json:"start_date" db:"start_date"`
	EndDate   null.Time `json:"end_date" db:"end_date"`
	IsCurrent bool      `json:"is_current" db:"is_current"`
}

// Label reads like "first term".
func (t Term) Label() string {
	return t.Name + " term"
}

type Subject struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`
}

type Class struct {
	ID         int    `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	Level      string `json:"level" db:"level"`
	SubjectIDs []int  `json:"subject_ids" db:"-"`
}

// HasSubject reports whether `subjectID` is taught in the class.
func (c Class) HasSubject(subjectID int) bool {
	for _, id := range c.SubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Period identifies an academic session and one of its terms.
type Period struct {
	SessionID int `json:"session_id" validate:"required,gt=0"`
	TermID    int `json:"term_id" validate:"required,gt=0"`
}

func (p Period) String() string {
	return fmt.Sprintf("session %d / term %d", p.SessionID, p.TermID)
}

type NewSession struct {
	Name      string    `json:"name" validate:"required,max=20"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (ns *NewSession) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.StartDate = core.DateOf(ns.StartDate)
	ns.EndDate = core.DateOf(ns.EndDate)
}

type NewTerm struct {
	SessionID int       `json:"session_id" validate:"required,gt=0"`
	Name      string    `json:"name" validate:"required,oneof=first second third"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date" validate:"omitempty,gtfield=StartDate"`
}

type NewSubject struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=20,alphanum_"`
}

type NewClass struct {
	Name  string `json:"name" validate:"required,max=50"`
	Level string `json:"level" validate:"max=50"`
}
