package results

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/user"
)

var (
	ErrAssessmentNotFound       = errors.New("assessment not found")
	ErrAssessmentInactive       = errors.New("assessment is not active")
	ErrResultNotFound           = errors.New("student result not found")
	ErrTermResultNotFound       = errors.New("term result not found")
	ErrSheetNotFound            = errors.New("result sheet not found")
	ErrSheetPublished           = errors.New("result sheet is already published")
	ErrSheetNotPublished        = errors.New("result sheet is not published")
	ErrSheetLocked              = errors.New("result sheet is published; unpublish it before recompiling")
	ErrSubjectNotInClass        = errors.New("subject is not taught in this class")
	errWeightCapExceeded        = "assessment weights sum to %s%%, more than 100%%"
	errScoreAboveMaxScore       = "score (%s) cannot exceed the assessment max score (%s)"
	errAttendanceOverSchoolDays = "days present (%d) and absent (%d) exceed the %d school days"
	errAssessmentsRequired      = errors.New("assessment lookup failed")
)

type (
	Repository interface {
		// WithinTx runs `fn` in a single transaction, rolled back if `fn` fails.
		WithinTx(ctx context.Context, fn func(tx Repository) error) error

		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		GetAssessment(ctx context.Context, id int) (Assessment, error)
		QueryAssessments(ctx context.Context, activeOnly bool) ([]Assessment, error)
		SetAssessmentActive(ctx context.Context, id int, active bool) (Assessment, error)

		// UpsertStudentResult inserts or replaces the score for the result's
		// (student, subject, session, term, assessment) and reports whether a row was created.
		UpsertStudentResult(ctx context.Context, r StudentResult) (StudentResult, bool, error)
		QueryStudentResults(ctx context.Context, filter ResultFilter) ([]StudentResult, error)

		// UpsertTermResult stores the compiled fields for the result's (student, subject, session, term).
		UpsertTermResult(ctx context.Context, tr TermResult) (TermResult, error)
		QueryTermResults(ctx context.Context, filter TermResultFilter) ([]TermResult, error)
		SetTermResultPositions(ctx context.Context, trs []TermResult) error

		// UpsertResultSheet stores the compiled fields for the sheet's (student, session, term),
		// leaving the publication fields untouched.
		UpsertResultSheet(ctx context.Context, rs ResultSheet) (ResultSheet, error)
		GetResultSheet(ctx context.Context, id int) (ResultSheet, error)
		LockResultSheet(ctx context.Context, id int) (ResultSheet, error)
		FindResultSheet(ctx context.Context, studentID int, p academic.Period) (ResultSheet, error)
		QueryResultSheets(ctx context.Context, filter SheetFilter) ([]ResultSheet, error)
		SetResultSheetPositions(ctx context.Context, sheets []ResultSheet) error
		SetResultSheetPublication(ctx context.Context, rs ResultSheet) (ResultSheet, error)
		SetResultSheetAttendance(ctx context.Context, rs ResultSheet) (ResultSheet, error)
	}

	Service struct {
		repo     Repository
		calendar academic.Repository
		profiles profile.Repository
		mailSvc  core.EmailService
		events   core.EventPublisher
		logger   core.Logger

		enforceWeightCap bool
		totalPossible    decimal.Decimal
	}
)

func NewService(
	repo Repository,
	calendar academic.Repository,
	profiles profile.Repository,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	if events == nil {
		events = core.NopPublisher()
	}
	totalPossible := decimal.NewFromFloat(core.Conf.Results.TotalPossible)
	if !totalPossible.IsPositive() {
		totalPossible = hundred
	}
	return &Service{
		repo:             repo,
		calendar:         calendar,
		profiles:         profiles,
		mailSvc:          mailSvc,
		events:           events,
		logger:           logger,
		enforceWeightCap: core.Conf.Results.EnforceWeightCap,
		totalPossible:    totalPossible,
	}
}

// EnforceWeightCap toggles rejecting assessment weights that sum past 100%.
func (svc *Service) EnforceWeightCap(enforce bool) {
	svc.enforceWeightCap = enforce
}

func actorID(actor user.User) null.Int {
	return null.NewInt(actor.ID, actor.ID != 0)
}

func notFoundField(err error, field string, sentinels ...error) error {
	for _, s := range sentinels {
		if err == s {
			return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
	}
	return err
}

func (svc *Service) checkWeightCap(total decimal.Decimal) error {
	if svc.enforceWeightCap && total.GreaterThan(hundred) {
		return core.NewFieldValidationError("weight_percentage", errWeightCapExceeded, total.String())
	}
	return nil
}

// Assessments

func (svc *Service) CreateAssessment(ctx context.Context, actor user.User, na NewAssessment) (Assessment, error) {
	if err := user.Authorize(actor, user.CanManageAssessments); err != nil {
		return Assessment{}, err
	}
	na.Clean()
	if err := core.Validate.Struct(na); err != nil {
		return Assessment{}, err
	}

	var a Assessment
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		active, err := tx.QueryAssessments(ctx, true)
		if err != nil {
			return err
		}
		total := na.WeightPercentage
		for _, x := range active {
			total = total.Add(x.WeightPercentage)
		}
		if err = svc.checkWeightCap(total); err != nil {
			return err
		}
		a, err = tx.CreateAssessment(ctx, Assessment{
			Name:             na.Name,
			Type:             na.Type,
			MaxScore:         na.MaxScore,
			WeightPercentage: na.WeightPercentage,
			IsActive:         true,
		})
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	return a, nil
}

// SetAssessmentActive (de)activates an assessment; activating re-checks the weight cap.
func (svc *Service) SetAssessmentActive(ctx context.Context, actor user.User, id int, active bool) (Assessment, error) {
	if err := user.Authorize(actor, user.CanManageAssessments); err != nil {
		return Assessment{}, err
	}
	var a Assessment
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		target, err := tx.GetAssessment(ctx, id)
		if err != nil {
			return err
		}
		if active && !target.IsActive {
			others, err := tx.QueryAssessments(ctx, true)
			if err != nil {
				return err
			}
			total := target.WeightPercentage
			for _, x := range others {
				total = total.Add(x.WeightPercentage)
			}
			if err = svc.checkWeightCap(total); err != nil {
				return err
			}
		}
		a, err = tx.SetAssessmentActive(ctx, id, active)
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	return a, nil
}

func (svc *Service) QueryAssessments(ctx context.Context, activeOnly bool) ([]Assessment, error) {
	return svc.repo.QueryAssessments(ctx, activeOnly)
}

// Student results

// RecordResult stores one score, replacing any earlier score for the same assessment.
func (svc *Service) RecordResult(ctx context.Context, actor user.User, nr NewResult) (StudentResult, bool, error) {
	if err := user.Authorize(actor, user.CanEnterResults); err != nil {
		return StudentResult{}, false, err
	}
	nr.Remarks = core.CleanString(nr.Remarks)
	nr.Score = core.Round2(nr.Score)
	if err := core.Validate.Struct(nr); err != nil {
		return StudentResult{}, false, err
	}

	a, err := svc.repo.GetAssessment(ctx, nr.AssessmentID)
	if err != nil {
		return StudentResult{}, false, notFoundField(err, "assessment_id", ErrAssessmentNotFound)
	}
	if !a.IsActive {
		return StudentResult{}, false, core.NewValidationError(ErrAssessmentInactive, core.FieldError{Field: "assessment_id", Error: ErrAssessmentInactive.Error()})
	}
	if nr.Score.GreaterThan(a.MaxScore) {
		return StudentResult{}, false, core.NewFieldValidationError("score", errScoreAboveMaxScore, nr.Score.String(), a.MaxScore.String())
	}
	student, err := svc.profiles.GetStudent(ctx, nr.StudentID)
	if err != nil {
		return StudentResult{}, false, notFoundField(err, "student_id", profile.ErrStudentNotFound)
	}
	if _, err = svc.calendar.GetSubject(ctx, nr.SubjectID); err != nil {
		return StudentResult{}, false, notFoundField(err, "subject_id", academic.ErrSubjectNotFound)
	}
	if err = academic.CheckPeriod(ctx, svc.calendar, academic.Period{SessionID: nr.SessionID, TermID: nr.TermID}); err != nil {
		return StudentResult{}, false, err
	}
	classID := nr.ClassID
	if classID == 0 {
		classID = student.ClassID
	}

	return svc.repo.UpsertStudentResult(ctx, StudentResult{
		StudentID:    nr.StudentID,
		SubjectID:    nr.SubjectID,
		SessionID:    nr.SessionID,
		TermID:       nr.TermID,
		AssessmentID: nr.AssessmentID,
		ClassID:      classID,
		Score:        nr.Score,
		Remarks:      nr.Remarks,
		EnteredBy:    actorID(actor),
		EnteredAt:    core.NowFunc().UTC(),
	})
}

func (svc *Service) QueryStudentResults(ctx context.Context, filter ResultFilter) ([]StudentResult, error) {
	return svc.repo.QueryStudentResults(ctx, filter)
}

// Term results

// CompileTermResult recomputes one student's subject result from its assessment scores.
func (svc *Service) CompileTermResult(ctx context.Context, actor user.User, key TermKey) (TermResult, error) {
	if err := user.Authorize(actor, user.CanCompileResults); err != nil {
		return TermResult{}, err
	}
	if err := core.Validate.Struct(key); err != nil {
		return TermResult{}, err
	}
	student, err := svc.profiles.GetStudent(ctx, key.StudentID)
	if err != nil {
		return TermResult{}, notFoundField(err, "student_id", profile.ErrStudentNotFound)
	}

	var tr TermResult
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		assessments, err := assessmentIndex(ctx, tx)
		if err != nil {
			return err
		}
		tr, err = svc.compileTerm(ctx, tx, key, student.ClassID, assessments, actor)
		return err
	})
	if err != nil {
		return TermResult{}, err
	}
	return tr, nil
}

func assessmentIndex(ctx context.Context, repo Repository) (map[int]Assessment, error) {
	all, err := repo.QueryAssessments(ctx, false)
	if err != nil {
		return nil, err
	}
	idx := make(map[int]Assessment, len(all))
	for _, a := range all {
		idx[a.ID] = a
	}
	return idx, nil
}

func (svc *Service) compileTerm(
	ctx context.Context,
	tx Repository,
	key TermKey,
	classID int,
	assessments map[int]Assessment,
	actor user.User,
) (TermResult, error) {
	rows, err := tx.QueryStudentResults(ctx, ResultFilter{
		StudentID: key.StudentID,
		SubjectID: key.SubjectID,
		SessionID: key.SessionID,
		TermID:    key.TermID,
	})
	if err != nil {
		return TermResult{}, err
	}

	scores := make([]Scored, 0, len(rows))
	for _, r := range rows {
		a, ok := assessments[r.AssessmentID]
		if !ok {
			return TermResult{}, errors.Wrapf(errAssessmentsRequired, "assessment %d", r.AssessmentID)
		}
		scores = append(scores, Scored{Score: r.Score, MaxScore: a.MaxScore, Weight: a.WeightPercentage})
		if classID == 0 {
			classID = r.ClassID
		}
	}
	c := Compile(scores, svc.totalPossible)
	if err = svc.checkWeightCap(c.TotalWeight); err != nil {
		return TermResult{}, err
	}

	return tx.UpsertTermResult(ctx, TermResult{
		StudentID:     key.StudentID,
		SubjectID:     key.SubjectID,
		SessionID:     key.SessionID,
		TermID:        key.TermID,
		ClassID:       classID,
		TotalScore:    c.TotalScore,
		TotalPossible: c.TotalPossible,
		Percentage:    c.Percentage,
		Grade:         c.Grade,
		CompiledBy:    actorID(actor),
		CompiledAt:    core.NowFunc().UTC(),
	})
}

// CompileClassResults compiles every active student of a class in every subject of the class,
// then ranks each subject. Everything happens in one transaction.
func (svc *Service) CompileClassResults(ctx context.Context, actor user.User, p academic.Period, classID int) ([]TermResult, error) {
	if err := user.Authorize(actor, user.CanCompileResults); err != nil {
		return nil, err
	}
	class, students, err := svc.classRoster(ctx, p, classID)
	if err != nil {
		return nil, err
	}

	var compiled []TermResult
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		assessments, err := assessmentIndex(ctx, tx)
		if err != nil {
			return err
		}
		compiled = make([]TermResult, 0, len(students)*len(class.SubjectIDs))
		for _, s := range students {
			for _, subjectID := range class.SubjectIDs {
				key := TermKey{StudentID: s.ID, SubjectID: subjectID, SessionID: p.SessionID, TermID: p.TermID}
				tr, err := svc.compileTerm(ctx, tx, key, class.ID, assessments, actor)
				if err != nil {
					return err
				}
				compiled = append(compiled, tr)
			}
		}
		compiled, err = svc.rankTermResults(ctx, tx, p, class, names(students))
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.publish(ctx, core.NewEvent(core.EventResultsCompiled, actor.ID, map[string]interface{}{
		"session_id": p.SessionID,
		"term_id":    p.TermID,
		"class_id":   classID,
		"compiled":   len(compiled),
	}))
	return compiled, nil
}

// CalculatePositions ranks the compiled results of a class, subject by subject.
func (svc *Service) CalculatePositions(ctx context.Context, actor user.User, p academic.Period, classID int) ([]TermResult, error) {
	if err := user.Authorize(actor, user.CanCompileResults); err != nil {
		return nil, err
	}
	class, students, err := svc.classRoster(ctx, p, classID)
	if err != nil {
		return nil, err
	}

	var ranked []TermResult
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		var err error
		ranked, err = svc.rankTermResults(ctx, tx, p, class, names(students))
		return err
	})
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

func (svc *Service) rankTermResults(ctx context.Context, tx Repository, p academic.Period, class academic.Class, studentNames map[int]string) ([]TermResult, error) {
	all := make([]TermResult, 0)
	for _, subjectID := range class.SubjectIDs {
		trs, err := tx.QueryTermResults(ctx, TermResultFilter{
			SubjectID: subjectID,
			SessionID: p.SessionID,
			TermID:    p.TermID,
			ClassID:   class.ID,
		})
		if err != nil {
			return nil, err
		}
		if len(trs) == 0 {
			continue
		}

		standings := make([]Standing, 0, len(trs))
		for i, tr := range trs {
			name, ok := studentNames[tr.StudentID]
			if !ok {
				name = svc.studentName(ctx, tr.StudentID)
			}
			standings = append(standings, Standing{Key: i, StudentID: tr.StudentID, Name: name, Score: tr.Percentage})
		}
		positions := Rank(standings)
		for i := range trs {
			trs[i].PositionInClass = null.IntFrom(positions[i])
			trs[i].TotalStudents = null.IntFrom(len(trs))
		}
		if err = tx.SetTermResultPositions(ctx, trs); err != nil {
			return nil, err
		}
		all = append(all, trs...)
	}
	return all, nil
}

func (svc *Service) QueryTermResults(ctx context.Context, filter TermResultFilter) ([]TermResult, error) {
	return svc.repo.QueryTermResults(ctx, filter)
}

// Result sheets

// CompileResultSheet aggregates a student's compiled subject results for a term.
// Published sheets are frozen until unpublished.
func (svc *Service) CompileResultSheet(ctx context.Context, actor user.User, studentID int, p academic.Period) (ResultSheet, error) {
	if err := user.Authorize(actor, user.CanCompileResults); err != nil {
		return ResultSheet{}, err
	}
	if err := core.Validate.Struct(p); err != nil {
		return ResultSheet{}, err
	}
	if err := academic.CheckPeriod(ctx, svc.calendar, p); err != nil {
		return ResultSheet{}, err
	}
	student, err := svc.profiles.GetStudent(ctx, studentID)
	if err != nil {
		return ResultSheet{}, notFoundField(err, "student_id", profile.ErrStudentNotFound)
	}

	var rs ResultSheet
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		var err error
		rs, err = svc.compileSheet(ctx, tx, student, p)
		return err
	})
	if err != nil {
		return ResultSheet{}, err
	}
	return rs, nil
}

func (svc *Service) compileSheet(ctx context.Context, tx Repository, student profile.Student, p academic.Period) (ResultSheet, error) {
	existing, err := tx.FindResultSheet(ctx, student.ID, p)
	switch {
	case err == nil && existing.IsPublished:
		return ResultSheet{}, core.NewValidationError(ErrSheetLocked)
	case err != nil && err != ErrSheetNotFound:
		return ResultSheet{}, err
	}

	trs, err := tx.QueryTermResults(ctx, TermResultFilter{StudentID: student.ID, SessionID: p.SessionID, TermID: p.TermID})
	if err != nil {
		return ResultSheet{}, err
	}
	total, possible := decimal.Zero, decimal.Zero
	classID := student.ClassID
	for _, tr := range trs {
		total = total.Add(tr.TotalScore)
		possible = possible.Add(tr.TotalPossible)
		if classID == 0 {
			classID = tr.ClassID
		}
	}
	pct := OverallPercentage(total, possible)
	grade := ""
	if len(trs) > 0 {
		grade = GradeFor(pct)
	}

	return tx.UpsertResultSheet(ctx, ResultSheet{
		StudentID:         student.ID,
		SessionID:         p.SessionID,
		TermID:            p.TermID,
		ClassID:           classID,
		TotalScore:        core.Round2(total),
		TotalPossible:     core.Round2(possible),
		OverallPercentage: pct,
		OverallGrade:      grade,
		CompiledAt:        core.NowFunc().UTC(),
	})
}

// GenerateResultSheets compiles the sheets of every active student in a class and ranks them.
// Published sheets keep their figures but still take part in the ranking.
func (svc *Service) GenerateResultSheets(ctx context.Context, actor user.User, p academic.Period, classID int) ([]ResultSheet, error) {
	if err := user.Authorize(actor, user.CanCompileResults); err != nil {
		return nil, err
	}
	_, students, err := svc.classRoster(ctx, p, classID)
	if err != nil {
		return nil, err
	}

	var sheets []ResultSheet
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		for _, s := range students {
			if _, err := svc.compileSheet(ctx, tx, s, p); err != nil && !isSheetLocked(err) {
				return err
			}
		}

		var err error
		if sheets, err = tx.QueryResultSheets(ctx, SheetFilter{SessionID: p.SessionID, TermID: p.TermID, ClassID: classID}); err != nil {
			return err
		}
		studentNames := names(students)
		standings := make([]Standing, 0, len(sheets))
		for i, rs := range sheets {
			name, ok := studentNames[rs.StudentID]
			if !ok {
				name = svc.studentName(ctx, rs.StudentID)
			}
			standings = append(standings, Standing{Key: i, StudentID: rs.StudentID, Name: name, Score: rs.OverallPercentage})
		}
		positions := Rank(standings)
		for i := range sheets {
			sheets[i].PositionInClass = null.IntFrom(positions[i])
			sheets[i].TotalStudents = null.IntFrom(len(sheets))
		}
		return tx.SetResultSheetPositions(ctx, sheets)
	})
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

func (svc *Service) GetResultSheet(ctx context.Context, id int) (ResultSheet, error) {
	return svc.repo.GetResultSheet(ctx, id)
}

func (svc *Service) QueryResultSheets(ctx context.Context, filter SheetFilter) ([]ResultSheet, error) {
	return svc.repo.QueryResultSheets(ctx, filter)
}

// Publish releases a sheet to the student. Publishing twice is rejected.
func (svc *Service) Publish(ctx context.Context, actor user.User, sheetID int) (ResultSheet, error) {
	if err := user.Authorize(actor, user.CanPublishResults); err != nil {
		return ResultSheet{}, err
	}
	var rs ResultSheet
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		locked, err := tx.LockResultSheet(ctx, sheetID)
		if err != nil {
			return err
		}
		if locked.IsPublished {
			return core.NewValidationError(ErrSheetPublished)
		}
		locked.IsPublished = true
		locked.PublishedAt = null.TimeFrom(core.NowFunc().UTC())
		locked.PublishedBy = actorID(actor)
		rs, err = tx.SetResultSheetPublication(ctx, locked)
		return err
	})
	if err != nil {
		return ResultSheet{}, err
	}

	svc.publish(ctx, core.NewEvent(core.EventResultSheetPublished, actor.ID, rs))
	svc.notifyPublished(ctx, rs)
	return rs, nil
}

// Unpublish withdraws a published sheet so it can be corrected and recompiled.
func (svc *Service) Unpublish(ctx context.Context, actor user.User, sheetID int) (ResultSheet, error) {
	if err := user.Authorize(actor, user.CanPublishResults); err != nil {
		return ResultSheet{}, err
	}
	var rs ResultSheet
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		locked, err := tx.LockResultSheet(ctx, sheetID)
		if err != nil {
			return err
		}
		if !locked.IsPublished {
			return core.NewValidationError(ErrSheetNotPublished)
		}
		locked.IsPublished = false
		locked.PublishedAt = null.Time{}
		locked.PublishedBy = null.Int{}
		rs, err = tx.SetResultSheetPublication(ctx, locked)
		return err
	})
	if err != nil {
		return ResultSheet{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventResultSheetUnpublished, actor.ID, rs))
	return rs, nil
}

// SetAttendance records the term's attendance tally on an unpublished sheet.
func (svc *Service) SetAttendance(ctx context.Context, actor user.User, sheetID int, att Attendance) (ResultSheet, error) {
	if err := user.Authorize(actor, user.CanEnterResults); err != nil {
		return ResultSheet{}, err
	}
	if err := core.Validate.Struct(att); err != nil {
		return ResultSheet{}, err
	}
	if att.DaysPresent+att.DaysAbsent > att.SchoolDays {
		return ResultSheet{}, core.NewFieldValidationError("school_days", errAttendanceOverSchoolDays, att.DaysPresent, att.DaysAbsent, att.SchoolDays)
	}

	var rs ResultSheet
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		locked, err := tx.LockResultSheet(ctx, sheetID)
		if err != nil {
			return err
		}
		if locked.IsPublished {
			return core.NewValidationError(ErrSheetPublished)
		}
		locked.TotalDaysPresent = att.DaysPresent
		locked.TotalDaysAbsent = att.DaysAbsent
		locked.TotalSchoolDays = att.SchoolDays
		rs, err = tx.SetResultSheetAttendance(ctx, locked)
		return err
	})
	if err != nil {
		return ResultSheet{}, err
	}
	return rs, nil
}

type publishedData struct {
	StudentName       string
	Period            string
	OverallPercentage decimal.Decimal
	OverallGrade      string
	Position          int
	TotalStudents     int
}

func (svc *Service) notifyPublished(ctx context.Context, rs ResultSheet) {
	if svc.mailSvc == nil {
		return
	}
	student, err := svc.profiles.GetStudent(ctx, rs.StudentID)
	if err != nil {
		svc.logError("loading student for result notification", err)
		return
	}
	if student.Email == "" {
		return
	}
	period := academic.NewService(svc.calendar).PeriodLabel(ctx, rs.Period())
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.FullName(), Address: student.Email}},
		Subject:      "Your " + period + " result is available",
		TemplateName: "result_published",
		TemplateData: publishedData{
			StudentName:       student.FullName(),
			Period:            period,
			OverallPercentage: rs.OverallPercentage,
			OverallGrade:      rs.OverallGrade,
			Position:          int(rs.PositionInClass.Int),
			TotalStudents:     int(rs.TotalStudents.Int),
		},
	})
}

// helpers

// classRoster loads a class and its active students after checking the period.
func (svc *Service) classRoster(ctx context.Context, p academic.Period, classID int) (academic.Class, []profile.Student, error) {
	if err := core.Validate.Struct(p); err != nil {
		return academic.Class{}, nil, err
	}
	if err := academic.CheckPeriod(ctx, svc.calendar, p); err != nil {
		return academic.Class{}, nil, err
	}
	class, err := svc.calendar.GetClass(ctx, classID)
	if err != nil {
		return academic.Class{}, nil, notFoundField(err, "class_id", academic.ErrClassNotFound)
	}
	active := true
	students, err := svc.profiles.QueryStudents(ctx, profile.StudentFilter{ClassID: classID, IsActive: &active})
	if err != nil {
		return academic.Class{}, nil, err
	}
	return class, students, nil
}

func isSheetLocked(err error) bool {
	ve, ok := err.(*core.ValidationError)
	return ok && ve.Err == ErrSheetLocked
}

func names(students []profile.Student) map[int]string {
	m := make(map[int]string, len(students))
	for _, s := range students {
		m[s.ID] = s.FullName()
	}
	return m
}

func (svc *Service) studentName(ctx context.Context, id int) string {
	s, err := svc.profiles.GetStudent(ctx, id)
	if err != nil {
		return ""
	}
	return s.FullName()
}

func (svc *Service) publish(ctx context.Context, events ...core.Event) {
	if err := svc.events.Publish(ctx, events...); err != nil {
		svc.logError("publishing events", err)
	}
}

func (svc *Service) logError(msg string, err error) {
	if svc.logger != nil {
		svc.logger.Error(msg, errors.Wrap(err, msg))
	}
}
