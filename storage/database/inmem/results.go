package inmemdb

import (
	"context"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/results"
)

type resultsRepository struct {
	db   *DB
	inTx bool
}

var _ results.Repository = (*resultsRepository)(nil)

func NewResultsRepository(db *DB) results.Repository {
	return &resultsRepository{db: db}
}

func (repo *resultsRepository) WithinTx(_ context.Context, fn func(tx results.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&resultsRepository{db: repo.db, inTx: true})
	})
}

// Assessments

func (repo *resultsRepository) CreateAssessment(_ context.Context, a results.Assessment) (results.Assessment, error) {
	_ = repo.db.write(func(t *tables) error {
		a.ID = t.nextID()
		t.assessments[a.ID] = a
		return nil
	})
	return a, nil
}

func (repo *resultsRepository) GetAssessment(_ context.Context, id int) (a results.Assessment, err error) {
	err = results.ErrAssessmentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.assessments[id]; ok {
			a, err = found, nil
		}
	})
	return a, err
}

func (repo *resultsRepository) QueryAssessments(_ context.Context, activeOnly bool) (list []results.Assessment, err error) {
	repo.db.read(func(t *tables) {
		list = rows(t.assessments, func(a results.Assessment) bool { return !activeOnly || a.IsActive })
	})
	return list, nil
}

func (repo *resultsRepository) SetAssessmentActive(_ context.Context, id int, active bool) (a results.Assessment, err error) {
	err = repo.db.write(func(t *tables) error {
		cur, ok := t.assessments[id]
		if !ok {
			return results.ErrAssessmentNotFound
		}
		cur.IsActive = active
		t.assessments[id] = cur
		a = cur
		return nil
	})
	return a, err
}

// Student results

func (repo *resultsRepository) UpsertStudentResult(_ context.Context, r results.StudentResult) (stored results.StudentResult, created bool, err error) {
	err = repo.db.write(func(t *tables) error {
		for id, cur := range t.studentResults {
			if cur.StudentID == r.StudentID && cur.SubjectID == r.SubjectID && cur.SessionID == r.SessionID &&
				cur.TermID == r.TermID && cur.AssessmentID == r.AssessmentID {
				r.ID = id
				t.studentResults[id] = r
				stored = r
				return nil
			}
		}
		r.ID = t.nextID()
		t.studentResults[r.ID] = r
		stored, created = r, true
		return nil
	})
	return stored, created, err
}

func (repo *resultsRepository) QueryStudentResults(_ context.Context, filter results.ResultFilter) (list []results.StudentResult, err error) {
	repo.db.read(func(t *tables) {
		list = rows(t.studentResults, func(r results.StudentResult) bool {
			switch {
			case filter.StudentID != 0 && r.StudentID != filter.StudentID,
				filter.SubjectID != 0 && r.SubjectID != filter.SubjectID,
				filter.SessionID != 0 && r.SessionID != filter.SessionID,
				filter.TermID != 0 && r.TermID != filter.TermID,
				filter.ClassID != 0 && r.ClassID != filter.ClassID,
				filter.AssessmentID != 0 && r.AssessmentID != filter.AssessmentID:
				return false
			}
			return true
		})
	})
	return list, nil
}

// Term results

func (repo *resultsRepository) UpsertTermResult(_ context.Context, tr results.TermResult) (stored results.TermResult, err error) {
	err = repo.db.write(func(t *tables) error {
		for id, cur := range t.termResults {
			if cur.StudentID == tr.StudentID && cur.SubjectID == tr.SubjectID && cur.SessionID == tr.SessionID && cur.TermID == tr.TermID {
				tr.ID = id
				tr.PositionInClass = cur.PositionInClass
				tr.TotalStudents = cur.TotalStudents
				tr.TeacherRemarks = cur.TeacherRemarks
				t.termResults[id] = tr
				stored = tr
				return nil
			}
		}
		tr.ID = t.nextID()
		t.termResults[tr.ID] = tr
		stored = tr
		return nil
	})
	return stored, err
}

func (repo *resultsRepository) QueryTermResults(_ context.Context, filter results.TermResultFilter) (list []results.TermResult, err error) {
	repo.db.read(func(t *tables) {
		list = rows(t.termResults, func(tr results.TermResult) bool {
			switch {
			case filter.StudentID != 0 && tr.StudentID != filter.StudentID,
				filter.SubjectID != 0 && tr.SubjectID != filter.SubjectID,
				filter.SessionID != 0 && tr.SessionID != filter.SessionID,
				filter.TermID != 0 && tr.TermID != filter.TermID,
				filter.ClassID != 0 && tr.ClassID != filter.ClassID:
				return false
			}
			return true
		})
	})
	return list, nil
}

func (repo *resultsRepository) SetTermResultPositions(_ context.Context, trs []results.TermResult) error {
	return repo.db.write(func(t *tables) error {
		for _, tr := range trs {
			cur, ok := t.termResults[tr.ID]
			if !ok {
				return results.ErrTermResultNotFound
			}
			cur.PositionInClass = tr.PositionInClass
			cur.TotalStudents = tr.TotalStudents
			t.termResults[tr.ID] = cur
		}
		return nil
	})
}

// Result sheets

func (repo *resultsRepository) UpsertResultSheet(_ context.Context, rs results.ResultSheet) (stored results.ResultSheet, err error) {
	err = repo.db.write(func(t *tables) error {
		for id, cur := range t.sheets {
			if cur.StudentID == rs.StudentID && cur.SessionID == rs.SessionID && cur.TermID == rs.TermID {
				cur.ClassID = rs.ClassID
				cur.TotalScore = rs.TotalScore
				cur.TotalPossible = rs.TotalPossible
				cur.OverallPercentage = rs.OverallPercentage
				cur.OverallGrade = rs.OverallGrade
				cur.CompiledAt = rs.CompiledAt
				t.sheets[id] = cur
				stored = cur
				return nil
			}
		}
		rs.ID = t.nextID()
		t.sheets[rs.ID] = rs
		stored = rs
		return nil
	})
	return stored, err
}

func (repo *resultsRepository) GetResultSheet(_ context.Context, id int) (rs results.ResultSheet, err error) {
	err = results.ErrSheetNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.sheets[id]; ok {
			rs, err = found, nil
		}
	})
	return rs, err
}

func (repo *resultsRepository) LockResultSheet(ctx context.Context, id int) (results.ResultSheet, error) {
	return repo.GetResultSheet(ctx, id)
}

func (repo *resultsRepository) FindResultSheet(_ context.Context, studentID int, p academic.Period) (rs results.ResultSheet, err error) {
	err = results.ErrSheetNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.sheets {
			if found.StudentID == studentID && found.SessionID == p.SessionID && found.TermID == p.TermID {
				rs, err = found, nil
				return
			}
		}
	})
	return rs, err
}

func (repo *resultsRepository) QueryResultSheets(_ context.Context, filter results.SheetFilter) (list []results.ResultSheet, err error) {
	repo.db.read(func(t *tables) {
		list = rows(t.sheets, func(rs results.ResultSheet) bool {
			switch {
			case filter.StudentID != 0 && rs.StudentID != filter.StudentID,
				filter.SessionID != 0 && rs.SessionID != filter.SessionID,
				filter.TermID != 0 && rs.TermID != filter.TermID,
				filter.ClassID != 0 && rs.ClassID != filter.ClassID,
				filter.IsPublished != nil && rs.IsPublished != *filter.IsPublished:
				return false
			}
			return true
		})
	})
	return list, nil
}

func (repo *resultsRepository) SetResultSheetPositions(_ context.Context, sheets []results.ResultSheet) error {
	return repo.db.write(func(t *tables) error {
		for _, rs := range sheets {
			cur, ok := t.sheets[rs.ID]
			if !ok {
				return results.ErrSheetNotFound
			}
			cur.PositionInClass = rs.PositionInClass
			cur.TotalStudents = rs.TotalStudents
			t.sheets[rs.ID] = cur
		}
		return nil
	})
}

func (repo *resultsRepository) SetResultSheetPublication(_ context.Context, rs results.ResultSheet) (stored results.ResultSheet, err error) {
	err = repo.db.write(func(t *tables) error {
		cur, ok := t.sheets[rs.ID]
		if !ok {
			return results.ErrSheetNotFound
		}
		cur.IsPublished = rs.IsPublished
		cur.PublishedAt = rs.PublishedAt
		cur.PublishedBy = rs.PublishedBy
		t.sheets[rs.ID] = cur
		stored = cur
		return nil
	})
	return stored, err
}

func (repo *resultsRepository) SetResultSheetAttendance(_ context.Context, rs results.ResultSheet) (stored results.ResultSheet, err error) {
	err = repo.db.write(func(t *tables) error {
		cur, ok := t.sheets[rs.ID]
		if !ok {
			return results.ErrSheetNotFound
		}
		cur.TotalDaysPresent = rs.TotalDaysPresent
		cur.TotalDaysAbsent = rs.TotalDaysAbsent
		cur.TotalSchoolDays = rs.TotalSchoolDays
		t.sheets[rs.ID] = cur
		stored = cur
		return nil
	})
	return stored, err
}
