package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/gladschool/portal/core/academic"
)

type academicRepository struct {
	db   *DB
	inTx bool
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *DB) academic.Repository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) WithinTx(_ context.Context, fn func(tx academic.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&academicRepository{db: repo.db, inTx: true})
	})
}

// Sessions

func (repo *academicRepository) CreateSession(_ context.Context, s academic.Session) (academic.Session, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.sessions {
			if other.Name == s.Name {
				return academic.ErrSessionExists
			}
		}
		s.ID = t.nextID()
		if s.IsCurrent {
			clearCurrentSessions(t)
		}
		t.sessions[s.ID] = s
		return nil
	})
	if err != nil {
		return academic.Session{}, err
	}
	return s, nil
}

func (repo *academicRepository) GetSession(_ context.Context, id int) (s academic.Session, err error) {
	err = academic.ErrSessionNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.sessions[id]; ok {
			s, err = found, nil
		}
	})
	return s, err
}

func (repo *academicRepository) CurrentSession(_ context.Context) (s academic.Session, err error) {
	err = academic.ErrNoCurrentSession
	repo.db.read(func(t *tables) {
		for _, found := range t.sessions {
			if found.IsCurrent {
				s, err = found, nil
				return
			}
		}
	})
	return s, err
}

func (repo *academicRepository) QuerySessions(_ context.Context) (sessions []academic.Session, err error) {
	repo.db.read(func(t *tables) {
		sessions = rows(t.sessions, nil)
	})
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartDate.After(sessions[j].StartDate) })
	return sessions, nil
}

func clearCurrentSessions(t *tables) {
	for id, s := range t.sessions {
		if s.IsCurrent {
			s.IsCurrent = false
			t.sessions[id] = s
		}
	}
}

func (repo *academicRepository) SetCurrentSession(_ context.Context, id int) error {
	return repo.db.write(func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok {
			return academic.ErrSessionNotFound
		}
		clearCurrentSessions(t)
		s.IsCurrent = true
		t.sessions[id] = s
		return nil
	})
}

// Terms

func (repo *academicRepository) CreateTerm(_ context.Context, term academic.Term) (academic.Term, error) {
	err := repo.db.write(func(t *tables) error {
		if _, ok := t.sessions[term.SessionID]; !ok {
			return academic.ErrSessionNotFound
		}
		for _, other := range t.terms {
			if other.SessionID == term.SessionID && other.Name == term.Name {
				return academic.ErrTermExists
			}
		}
		term.ID = t.nextID()
		if term.IsCurrent {
			clearCurrentTerms(t, term.SessionID)
		}
		t.terms[term.ID] = term
		return nil
	})
	if err != nil {
		return academic.Term{}, err
	}
	return term, nil
}

func (repo *academicRepository) GetTerm(_ context.Context, id int) (term academic.Term, err error) {
	err = academic.ErrTermNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.terms[id]; ok {
			term, err = found, nil
		}
	})
	return term, err
}

func (repo *academicRepository) CurrentTerm(_ context.Context, sessionID int) (term academic.Term, err error) {
	err = academic.ErrNoCurrentTerm
	repo.db.read(func(t *tables) {
		for _, found := range t.terms {
			if found.SessionID == sessionID && found.IsCurrent {
				term, err = found, nil
				return
			}
		}
	})
	return term, err
}

func (repo *academicRepository) QueryTerms(_ context.Context, sessionID int) (terms []academic.Term, err error) {
	repo.db.read(func(t *tables) {
		terms = rows(t.terms, func(term academic.Term) bool {
			return sessionID == 0 || term.SessionID == sessionID
		})
	})
	return terms, nil
}

func clearCurrentTerms(t *tables, sessionID int) {
	for id, term := range t.terms {
		if term.SessionID == sessionID && term.IsCurrent {
			term.IsCurrent = false
			t.terms[id] = term
		}
	}
}

func (repo *academicRepository) SetCurrentTerm(_ context.Context, sessionID, id int) error {
	return repo.db.write(func(t *tables) error {
		term, ok := t.terms[id]
		if !ok || term.SessionID != sessionID {
			return academic.ErrTermNotFound
		}
		clearCurrentTerms(t, sessionID)
		term.IsCurrent = true
		t.terms[id] = term
		return nil
	})
}

// Subjects

func (repo *academicRepository) CreateSubject(_ context.Context, s academic.Subject) (academic.Subject, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.subjects {
			if other.Code == s.Code {
				return academic.ErrSubjectExists
			}
		}
		s.ID = t.nextID()
		t.subjects[s.ID] = s
		return nil
	})
	if err != nil {
		return academic.Subject{}, err
	}
	return s, nil
}

func (repo *academicRepository) GetSubject(_ context.Context, id int) (s academic.Subject, err error) {
	err = academic.ErrSubjectNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.subjects[id]; ok {
			s, err = found, nil
		}
	})
	return s, err
}

func (repo *academicRepository) QuerySubjects(_ context.Context) (subjects []academic.Subject, err error) {
	repo.db.read(func(t *tables) {
		subjects = rows(t.subjects, nil)
	})
	sort.SliceStable(subjects, func(i, j int) bool { return strings.ToLower(subjects[i].Name) < strings.ToLower(subjects[j].Name) })
	return subjects, nil
}

// Classes

func copyClass(c academic.Class) academic.Class {
	c.SubjectIDs = append([]int(nil), c.SubjectIDs...)
	return c
}

func (repo *academicRepository) CreateClass(_ context.Context, c academic.Class) (academic.Class, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.classes {
			if other.Name == c.Name {
				return academic.ErrClassExists
			}
		}
		c.ID = t.nextID()
		c = copyClass(c)
		t.classes[c.ID] = c
		return nil
	})
	if err != nil {
		return academic.Class{}, err
	}
	return copyClass(c), nil
}

func (repo *academicRepository) GetClass(_ context.Context, id int) (c academic.Class, err error) {
	err = academic.ErrClassNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.classes[id]; ok {
			c, err = copyClass(found), nil
		}
	})
	return c, err
}

func (repo *academicRepository) QueryClasses(_ context.Context) (classes []academic.Class, err error) {
	repo.db.read(func(t *tables) {
		classes = rows(t.classes, nil)
	})
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	for i := range classes {
		classes[i] = copyClass(classes[i])
	}
	return classes, nil
}

func (repo *academicRepository) SetClassSubjects(_ context.Context, classID int, subjectIDs []int) error {
	return repo.db.write(func(t *tables) error {
		c, ok := t.classes[classID]
		if !ok {
			return academic.ErrClassNotFound
		}
		c.SubjectIDs = append([]int(nil), subjectIDs...)
		t.classes[classID] = c
		return nil
	})
}
