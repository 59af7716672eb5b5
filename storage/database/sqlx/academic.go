package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/gladschool/portal/core/academic"
)

const (
	sessionColumns = `id, name, start_date, end_date, is_current, created_at`
	termColumns    = `id, session_id, name, start_date, end_date, is_current`
)

type academicRepository struct {
	db   *sqlx.DB
	exec dbExecutor
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *sqlx.DB) academic.Repository {
	return &academicRepository{db: db, exec: db}
}

func (repo *academicRepository) WithinTx(ctx context.Context, fn func(tx academic.Repository) error) error {
	return withinTx(ctx, repo.db, repo.exec, func(tx *sqlx.Tx) error {
		return fn(&academicRepository{db: repo.db, exec: tx})
	})
}

// Sessions

func (repo *academicRepository) CreateSession(ctx context.Context, s academic.Session) (academic.Session, error) {
	q := repo.exec.Rebind(`INSERT INTO sessions (name, start_date, end_date, is_current, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q, s.Name, s.StartDate, s.EndDate, s.IsCurrent, s.CreatedAt).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return academic.Session{}, academic.ErrSessionExists
		}
		return academic.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo *academicRepository) GetSession(ctx context.Context, id int) (academic.Session, error) {
	var s academic.Session
	err := repo.exec.GetContext(ctx, &s, repo.exec.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	if err != nil {
		return academic.Session{}, notFound(err, academic.ErrSessionNotFound)
	}
	return s, nil
}

func (repo *academicRepository) CurrentSession(ctx context.Context) (academic.Session, error) {
	var s academic.Session
	err := repo.exec.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM sessions WHERE is_current`)
	if err != nil {
		return academic.Session{}, notFound(err, academic.ErrNoCurrentSession)
	}
	return s, nil
}

func (repo *academicRepository) QuerySessions(ctx context.Context) ([]academic.Session, error) {
	sessions := make([]academic.Session, 0)
	if err := repo.exec.SelectContext(ctx, &sessions, `SELECT `+sessionColumns+` FROM sessions ORDER BY start_date DESC`); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return sessions, nil
}

// SetCurrentSession relies on the sessions_single_current index: the flag is cleared first.
func (repo *academicRepository) SetCurrentSession(ctx context.Context, id int) error {
	if _, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`UPDATE sessions SET is_current = FALSE WHERE is_current AND id <> ?`), id); err != nil {
		return errors.Wrap(err, "clearing current session")
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`UPDATE sessions SET is_current = TRUE WHERE id = ?`), id)
	return rowsAffected(res, err, academic.ErrSessionNotFound)
}

// Terms

func (repo *academicRepository) CreateTerm(ctx context.Context, t academic.Term) (academic.Term, error) {
	q := repo.exec.Rebind(`INSERT INTO terms (session_id, name, start_date, end_date, is_current)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q, t.SessionID, t.Name, t.StartDate, t.EndDate, t.IsCurrent).Scan(&t.ID)
	if err != nil {
		switch pqCode(err) {
		case pqUniqueViolation:
			return academic.Term{}, academic.ErrTermExists
		case pqForeignKeyViolation:
			return academic.Term{}, academic.ErrSessionNotFound
		}
		return academic.Term{}, errors.Wrap(err, "inserting term")
	}
	return t, nil
}

func (repo *academicRepository) GetTerm(ctx context.Context, id int) (academic.Term, error) {
	var t academic.Term
	err := repo.exec.GetContext(ctx, &t, repo.exec.Rebind(`SELECT `+termColumns+` FROM terms WHERE id = ?`), id)
	if err != nil {
		return academic.Term{}, notFound(err, academic.ErrTermNotFound)
	}
	return t, nil
}

func (repo *academicRepository) CurrentTerm(ctx context.Context, sessionID int) (academic.Term, error) {
	var t academic.Term
	err := repo.exec.GetContext(ctx, &t,
		repo.exec.Rebind(`SELECT `+termColumns+` FROM terms WHERE session_id = ? AND is_current`), sessionID)
	if err != nil {
		return academic.Term{}, notFound(err, academic.ErrNoCurrentTerm)
	}
	return t, nil
}

func (repo *academicRepository) QueryTerms(ctx context.Context, sessionID int) ([]academic.Term, error) {
	var w where
	if sessionID != 0 {
		w.add("session_id = ?", sessionID)
	}
	terms := make([]academic.Term, 0)
	if err := selectWhere(ctx, repo.exec, &terms, `SELECT `+termColumns+` FROM terms`, &w, ` ORDER BY session_id, id`); err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}
	return terms, nil
}

func (repo *academicRepository) SetCurrentTerm(ctx context.Context, sessionID, id int) error {
	q := repo.exec.Rebind(`UPDATE terms SET is_current = FALSE WHERE session_id = ? AND is_current AND id <> ?`)
	if _, err := repo.exec.ExecContext(ctx, q, sessionID, id); err != nil {
		return errors.Wrap(err, "clearing current term")
	}
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`UPDATE terms SET is_current = TRUE WHERE id = ? AND session_id = ?`), id, sessionID)
	return rowsAffected(res, err, academic.ErrTermNotFound)
}

// Subjects

func (repo *academicRepository) CreateSubject(ctx context.Context, s academic.Subject) (academic.Subject, error) {
	err := repo.exec.QueryRowxContext(ctx, repo.exec.Rebind(`INSERT INTO subjects (name, code) VALUES (?, ?) RETURNING id`), s.Name, s.Code).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return academic.Subject{}, academic.ErrSubjectExists
		}
		return academic.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return s, nil
}

func (repo *academicRepository) GetSubject(ctx context.Context, id int) (academic.Subject, error) {
	var s academic.Subject
	err := repo.exec.GetContext(ctx, &s, repo.exec.Rebind(`SELECT id, name, code FROM subjects WHERE id = ?`), id)
	if err != nil {
		return academic.Subject{}, notFound(err, academic.ErrSubjectNotFound)
	}
	return s, nil
}

func (repo *academicRepository) QuerySubjects(ctx context.Context) ([]academic.Subject, error) {
	subjects := make([]academic.Subject, 0)
	if err := repo.exec.SelectContext(ctx, &subjects, `SELECT id, name, code FROM subjects ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

// Classes

func (repo *academicRepository) CreateClass(ctx context.Context, c academic.Class) (academic.Class, error) {
	err := repo.exec.QueryRowxContext(ctx, repo.exec.Rebind(`INSERT INTO classes (name, level) VALUES (?, ?) RETURNING id`), c.Name, c.Level).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return academic.Class{}, academic.ErrClassExists
		}
		return academic.Class{}, errors.Wrap(err, "inserting class")
	}
	c.SubjectIDs = nil
	return c, nil
}

func (repo *academicRepository) GetClass(ctx context.Context, id int) (academic.Class, error) {
	var c academic.Class
	err := repo.exec.GetContext(ctx, &c, repo.exec.Rebind(`SELECT id, name, level FROM classes WHERE id = ?`), id)
	if err != nil {
		return academic.Class{}, notFound(err, academic.ErrClassNotFound)
	}
	q := repo.exec.Rebind(`SELECT subject_id FROM class_subjects WHERE class_id = ? ORDER BY subject_id`)
	if err = repo.exec.SelectContext(ctx, &c.SubjectIDs, q, id); err != nil {
		return academic.Class{}, errors.Wrap(err, "querying class subjects")
	}
	return c, nil
}

func (repo *academicRepository) QueryClasses(ctx context.Context) ([]academic.Class, error) {
	classes := make([]academic.Class, 0)
	if err := repo.exec.SelectContext(ctx, &classes, `SELECT id, name, level FROM classes ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	var links []struct {
		ClassID   int `db:"class_id"`
		SubjectID int `db:"subject_id"`
	}
	if err := repo.exec.SelectContext(ctx, &links, `SELECT class_id, subject_id FROM class_subjects ORDER BY subject_id`); err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c.ID] = i
	}
	for _, l := range links {
		if i, ok := idx[l.ClassID]; ok {
			classes[i].SubjectIDs = append(classes[i].SubjectIDs, l.SubjectID)
		}
	}
	return classes, nil
}

func (repo *academicRepository) SetClassSubjects(ctx context.Context, classID int, subjectIDs []int) error {
	return withinTx(ctx, repo.db, repo.exec, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM class_subjects WHERE class_id = ?`), classID); err != nil {
			return errors.Wrap(err, "clearing class subjects")
		}
		for _, id := range subjectIDs {
			_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO class_subjects (class_id, subject_id) VALUES (?, ?)`), classID, id)
			if err != nil {
				if pqCode(err) == pqForeignKeyViolation {
					return academic.ErrSubjectNotFound
				}
				return errors.Wrap(err, "inserting class subject")
			}
		}
		return nil
	})
}
