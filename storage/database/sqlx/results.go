package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/results"
)

const (
	assessmentColumns    = `id, name, type, max_score, weight_percentage, is_active`
	studentResultColumns = `id, student_id, subject_id, session_id, term_id, assessment_id, COALESCE(class_id, 0) AS class_id,
		score, remarks, entered_by, entered_at`
	termResultColumns = `id, student_id, subject_id, session_id, term_id, COALESCE(class_id, 0) AS class_id,
		total_score, total_possible, percentage, grade, position_in_class, total_students, teacher_remarks,
		compiled_by, compiled_at`
	sheetColumns = `id, student_id, session_id, term_id, COALESCE(class_id, 0) AS class_id, total_score, total_possible,
		overall_percentage, overall_grade, position_in_class, total_students, teacher_remarks, principal_remarks,
		total_days_present, total_days_absent, total_school_days, is_published, published_at, published_by, compiled_at`
)

type resultsRepository struct {
	db   *sqlx.DB
	exec dbExecutor
}

var _ results.Repository = (*resultsRepository)(nil)

func NewResultsRepository(db *sqlx.DB) results.Repository {
	return &resultsRepository{db: db, exec: db}
}

func (repo *resultsRepository) WithinTx(ctx context.Context, fn func(tx results.Repository) error) error {
	return withinTx(ctx, repo.db, repo.exec, func(tx *sqlx.Tx) error {
		return fn(&resultsRepository{db: repo.db, exec: tx})
	})
}

// Assessments

func (repo *resultsRepository) CreateAssessment(ctx context.Context, a results.Assessment) (results.Assessment, error) {
	q := repo.exec.Rebind(`INSERT INTO assessments (name, type, max_score, weight_percentage, is_active)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := repo.exec.QueryRowxContext(ctx, q, a.Name, a.Type, a.MaxScore, a.WeightPercentage, a.IsActive).Scan(&a.ID); err != nil {
		return results.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	return a, nil
}

func (repo *resultsRepository) GetAssessment(ctx context.Context, id int) (results.Assessment, error) {
	var a results.Assessment
	err := repo.exec.GetContext(ctx, &a, repo.exec.Rebind(`SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`), id)
	if err != nil {
		return results.Assessment{}, notFound(err, results.ErrAssessmentNotFound)
	}
	return a, nil
}

func (repo *resultsRepository) QueryAssessments(ctx context.Context, activeOnly bool) ([]results.Assessment, error) {
	var w where
	if activeOnly {
		w.add("is_active")
	}
	list := make([]results.Assessment, 0)
	if err := selectWhere(ctx, repo.exec, &list, `SELECT `+assessmentColumns+` FROM assessments`, &w, ` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	return list, nil
}

func (repo *resultsRepository) SetAssessmentActive(ctx context.Context, id int, active bool) (results.Assessment, error) {
	var a results.Assessment
	q := repo.exec.Rebind(`UPDATE assessments SET is_active = ? WHERE id = ? RETURNING ` + assessmentColumns)
	if err := repo.exec.GetContext(ctx, &a, q, active, id); err != nil {
		return results.Assessment{}, notFound(err, results.ErrAssessmentNotFound)
	}
	return a, nil
}

// Student results

func (repo *resultsRepository) UpsertStudentResult(ctx context.Context, r results.StudentResult) (results.StudentResult, bool, error) {
	q := repo.exec.Rebind(`INSERT INTO student_results
		(student_id, subject_id, session_id, term_id, assessment_id, class_id, score, remarks, entered_by, entered_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, 0), ?, ?, ?, ?)
		ON CONFLICT (student_id, subject_id, session_id, term_id, assessment_id) DO UPDATE SET
			class_id = EXCLUDED.class_id, score = EXCLUDED.score, remarks = EXCLUDED.remarks,
			entered_by = EXCLUDED.entered_by, entered_at = EXCLUDED.entered_at
		RETURNING id, (xmax = 0) AS created`)
	var created bool
	err := repo.exec.QueryRowxContext(ctx, q,
		r.StudentID, r.SubjectID, r.SessionID, r.TermID, r.AssessmentID, r.ClassID, r.Score, r.Remarks, r.EnteredBy, r.EnteredAt,
	).Scan(&r.ID, &created)
	if err != nil {
		return results.StudentResult{}, false, errors.Wrap(err, "upserting student result")
	}
	return r, created, nil
}

func (repo *resultsRepository) QueryStudentResults(ctx context.Context, filter results.ResultFilter) ([]results.StudentResult, error) {
	var w where
	for col, v := range map[string]int{
		"student_id":    filter.StudentID,
		"subject_id":    filter.SubjectID,
		"session_id":    filter.SessionID,
		"term_id":       filter.TermID,
		"class_id":      filter.ClassID,
		"assessment_id": filter.AssessmentID,
	} {
		if v != 0 {
			w.add(col+" = ?", v)
		}
	}
	list := make([]results.StudentResult, 0)
	if err := selectWhere(ctx, repo.exec, &list, `SELECT `+studentResultColumns+` FROM student_results`, &w, ` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying student results")
	}
	return list, nil
}

// Term results

func (repo *resultsRepository) UpsertTermResult(ctx context.Context, tr results.TermResult) (results.TermResult, error) {
	q := repo.exec.Rebind(`INSERT INTO term_results
		(student_id, subject_id, session_id, term_id, class_id, total_score, total_possible, percentage, grade,
		 teacher_remarks, compiled_by, compiled_at)
		VALUES (?, ?, ?, ?, NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, subject_id, session_id, term_id) DO UPDATE SET
			class_id = EXCLUDED.class_id, total_score = EXCLUDED.total_score, total_possible = EXCLUDED.total_possible,
			percentage = EXCLUDED.percentage, grade = EXCLUDED.grade,
			compiled_by = EXCLUDED.compiled_by, compiled_at = EXCLUDED.compiled_at
		RETURNING ` + termResultColumns)
	var stored results.TermResult
	err := repo.exec.GetContext(ctx, &stored, q,
		tr.StudentID, tr.SubjectID, tr.SessionID, tr.TermID, tr.ClassID, tr.TotalScore, tr.TotalPossible, tr.Percentage,
		tr.Grade, tr.TeacherRemarks, tr.CompiledBy, tr.CompiledAt)
	if err != nil {
		return results.TermResult{}, errors.Wrap(err, "upserting term result")
	}
	return stored, nil
}

func (repo *resultsRepository) QueryTermResults(ctx context.Context, filter results.TermResultFilter) ([]results.TermResult, error) {
	var w where
	for col, v := range map[string]int{
		"student_id": filter.StudentID,
		"subject_id": filter.SubjectID,
		"session_id": filter.SessionID,
		"term_id":    filter.TermID,
		"class_id":   filter.ClassID,
	} {
		if v != 0 {
			w.add(col+" = ?", v)
		}
	}
	list := make([]results.TermResult, 0)
	if err := selectWhere(ctx, repo.exec, &list, `SELECT `+termResultColumns+` FROM term_results`, &w, ` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying term results")
	}
	return list, nil
}

func (repo *resultsRepository) SetTermResultPositions(ctx context.Context, trs []results.TermResult) error {
	q := repo.exec.Rebind(`UPDATE term_results SET position_in_class = ?, total_students = ? WHERE id = ?`)
	for _, tr := range trs {
		res, err := repo.exec.ExecContext(ctx, q, tr.PositionInClass, tr.TotalStudents, tr.ID)
		if err = rowsAffected(res, err, results.ErrTermResultNotFound); err != nil {
			return errors.Wrapf(err, "ranking term result %d", tr.ID)
		}
	}
	return nil
}

// Result sheets

func (repo *resultsRepository) UpsertResultSheet(ctx context.Context, rs results.ResultSheet) (results.ResultSheet, error) {
	q := repo.exec.Rebind(`INSERT INTO result_sheets
		(student_id, session_id, term_id, class_id, total_score, total_possible, overall_percentage, overall_grade, compiled_at)
		VALUES (?, ?, ?, NULLIF(?, 0), ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, session_id, term_id) DO UPDATE SET
			class_id = EXCLUDED.class_id, total_score = EXCLUDED.total_score, total_possible = EXCLUDED.total_possible,
			overall_percentage = EXCLUDED.overall_percentage, overall_grade = EXCLUDED.overall_grade,
			compiled_at = EXCLUDED.compiled_at
		RETURNING ` + sheetColumns)
	var stored results.ResultSheet
	err := repo.exec.GetContext(ctx, &stored, q,
		rs.StudentID, rs.SessionID, rs.TermID, rs.ClassID, rs.TotalScore, rs.TotalPossible, rs.OverallPercentage,
		rs.OverallGrade, rs.CompiledAt)
	if err != nil {
		return results.ResultSheet{}, errors.Wrap(err, "upserting result sheet")
	}
	return stored, nil
}

func (repo *resultsRepository) getSheet(ctx context.Context, id int, lock bool) (results.ResultSheet, error) {
	q := `SELECT ` + sheetColumns + ` FROM result_sheets WHERE id = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	var rs results.ResultSheet
	if err := repo.exec.GetContext(ctx, &rs, repo.exec.Rebind(q), id); err != nil {
		return results.ResultSheet{}, notFound(err, results.ErrSheetNotFound)
	}
	return rs, nil
}

func (repo *resultsRepository) GetResultSheet(ctx context.Context, id int) (results.ResultSheet, error) {
	return repo.getSheet(ctx, id, false)
}

func (repo *resultsRepository) LockResultSheet(ctx context.Context, id int) (results.ResultSheet, error) {
	return repo.getSheet(ctx, id, true)
}

func (repo *resultsRepository) FindResultSheet(ctx context.Context, studentID int, p academic.Period) (results.ResultSheet, error) {
	var rs results.ResultSheet
	q := repo.exec.Rebind(`SELECT ` + sheetColumns + ` FROM result_sheets WHERE student_id = ? AND session_id = ? AND term_id = ?`)
	if err := repo.exec.GetContext(ctx, &rs, q, studentID, p.SessionID, p.TermID); err != nil {
		return results.ResultSheet{}, notFound(err, results.ErrSheetNotFound)
	}
	return rs, nil
}

func (repo *resultsRepository) QueryResultSheets(ctx context.Context, filter results.SheetFilter) ([]results.ResultSheet, error) {
	var w where
	for col, v := range map[string]int{
		"student_id": filter.StudentID,
		"session_id": filter.SessionID,
		"term_id":    filter.TermID,
		"class_id":   filter.ClassID,
	} {
		if v != 0 {
			w.add(col+" = ?", v)
		}
	}
	if filter.IsPublished != nil {
		w.add("is_published = ?", *filter.IsPublished)
	}
	list := make([]results.ResultSheet, 0)
	if err := selectWhere(ctx, repo.exec, &list, `SELECT `+sheetColumns+` FROM result_sheets`, &w, ` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying result sheets")
	}
	return list, nil
}

func (repo *resultsRepository) SetResultSheetPositions(ctx context.Context, sheets []results.ResultSheet) error {
	q := repo.exec.Rebind(`UPDATE result_sheets SET position_in_class = ?, total_students = ? WHERE id = ?`)
	for _, rs := range sheets {
		res, err := repo.exec.ExecContext(ctx, q, rs.PositionInClass, rs.TotalStudents, rs.ID)
		if err = rowsAffected(res, err, results.ErrSheetNotFound); err != nil {
			return errors.Wrapf(err, "ranking result sheet %d", rs.ID)
		}
	}
	return nil
}

func (repo *resultsRepository) SetResultSheetPublication(ctx context.Context, rs results.ResultSheet) (results.ResultSheet, error) {
	q := repo.exec.Rebind(`UPDATE result_sheets SET is_published = ?, published_at = ?, published_by = ?
		WHERE id = ? RETURNING ` + sheetColumns)
	var stored results.ResultSheet
	if err := repo.exec.GetContext(ctx, &stored, q, rs.IsPublished, rs.PublishedAt, rs.PublishedBy, rs.ID); err != nil {
		return results.ResultSheet{}, notFound(err, results.ErrSheetNotFound)
	}
	return stored, nil
}

func (repo *resultsRepository) SetResultSheetAttendance(ctx context.Context, rs results.ResultSheet) (results.ResultSheet, error) {
	q := repo.exec.Rebind(`UPDATE result_sheets SET total_days_present = ?, total_days_absent = ?, total_school_days = ?
		WHERE id = ? RETURNING ` + sheetColumns)
	var stored results.ResultSheet
	if err := repo.exec.GetContext(ctx, &stored, q, rs.TotalDaysPresent, rs.TotalDaysAbsent, rs.TotalSchoolDays, rs.ID); err != nil {
		return results.ResultSheet{}, notFound(err, results.ErrSheetNotFound)
	}
	return stored, nil
}
