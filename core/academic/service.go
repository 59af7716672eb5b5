package academic

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/user"
)

var (
	ErrSessionNotFound   = errors.New("academic session not found")
	ErrTermNotFound      = errors.New("academic term not found")
	ErrSubjectNotFound   = errors.New("subject not found")
	ErrClassNotFound     = errors.New("class not found")
	ErrNoCurrentSession  = errors.New("no current academic session")
	ErrNoCurrentTerm     = errors.New("no current academic term")
	ErrSessionExists     = errors.New("an academic session with this name already exists")
	ErrTermExists        = errors.New("this term already exists for the session")
	ErrSubjectExists     = errors.New("a subject with this code already exists")
	ErrClassExists       = errors.New("a class with this name already exists")
	ErrTermSessionDiffer = errors.New("term does not belong to the session")
)

type (
	Repository interface {
		// WithinTx runs `fn` in a single transaction, rolled back if `fn` fails.
		WithinTx(ctx context.Context, fn func(tx Repository) error) error

		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id int) (Session, error)
		CurrentSession(ctx context.Context) (Session, error)
		QuerySessions(ctx context.Context) ([]Session, error)
		// SetCurrentSession clears every other current session and flags `id`.
		SetCurrentSession(ctx context.Context, id int) error

		CreateTerm(ctx context.Context, t Term) (Term, error)
		GetTerm(ctx context.Context, id int) (Term, error)
		CurrentTerm(ctx context.Context, sessionID int) (Term, error)
		QueryTerms(ctx context.Context, sessionID int) ([]Term, error)
		// SetCurrentTerm clears every other current term of the session and flags `id`.
		SetCurrentTerm(ctx context.Context, sessionID, id int) error

		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubject(ctx context.Context, id int) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)

		CreateClass(ctx context.Context, c Class) (Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
		QueryClasses(ctx context.Context) ([]Class, error)
		SetClassSubjects(ctx context.Context, classID int, subjectIDs []int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func uniqueErr(err error, field string, sentinels ...error) error {
	for _, s := range sentinels {
		if err == s {
			return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
	}
	return err
}

func (svc *Service) CreateSession(ctx context.Context, actor user.User, ns NewSession) (Session, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Session{}, err
	}
	ns.Clean()
	if err := core.Validate.Struct(ns); err != nil {
		return Session{}, err
	}
	s, err := svc.repo.CreateSession(ctx, Session{
		Name:      ns.Name,
		StartDate: ns.StartDate,
		EndDate:   ns.EndDate,
		CreatedAt: core.NowFunc().UTC(),
	})
	return s, uniqueErr(err, "name", ErrSessionExists)
}

// SetCurrentSession makes `id` the only current session.
func (svc *Service) SetCurrentSession(ctx context.Context, actor user.User, id int) (Session, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Session{}, err
	}
	var s Session
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		var err error
		if s, err = tx.GetSession(ctx, id); err != nil {
			return err
		}
		if err = tx.SetCurrentSession(ctx, id); err != nil {
			return err
		}
		s.IsCurrent = true
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

func (svc *Service) CurrentSession(ctx context.Context) (Session, error) {
	return svc.repo.CurrentSession(ctx)
}

func (svc *Service) GetSession(ctx context.Context, id int) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) QuerySessions(ctx context.Context) ([]Session, error) {
	return svc.repo.QuerySessions(ctx)
}

func (svc *Service) CreateTerm(ctx context.Context, actor user.User, nt NewTerm) (Term, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Term{}, err
	}
	nt.Name = core.CleanString(nt.Name, true /* lower */)
	if err := core.Validate.Struct(nt); err != nil {
		return Term{}, err
	}
	if _, err := svc.repo.GetSession(ctx, nt.SessionID); err != nil {
		return Term{}, uniqueErr(err, "session_id", ErrSessionNotFound)
	}
	t, err := svc.repo.CreateTerm(ctx, Term{
		SessionID: nt.SessionID,
		Name:      nt.Name,
		StartDate: null.NewTime(core.DateOf(nt.StartDate), !nt.StartDate.IsZero()),
		EndDate:   null.NewTime(core.DateOf(nt.EndDate), !nt.EndDate.IsZero()),
	})
	return t, uniqueErr(err, "name", ErrTermExists)
}

// SetCurrentTerm makes `id` the only current term of its session.
func (svc *Service) SetCurrentTerm(ctx context.Context, actor user.User, id int) (Term, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Term{}, err
	}
	var t Term
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		var err error
		if t, err = tx.GetTerm(ctx, id); err != nil {
			return err
		}
		if err = tx.SetCurrentTerm(ctx, t.SessionID, id); err != nil {
			return err
		}
		t.IsCurrent = true
		return nil
	})
	if err != nil {
		return Term{}, err
	}
	return t, nil
}

// CurrentPeriod returns the current session and its current term.
func (svc *Service) CurrentPeriod(ctx context.Context) (Session, Term, error) {
	s, err := svc.repo.CurrentSession(ctx)
	if err != nil {
		return Session{}, Term{}, err
	}
	t, err := svc.repo.CurrentTerm(ctx, s.ID)
	if err != nil {
		return Session{}, Term{}, err
	}
	return s, t, nil
}

func (svc *Service) GetTerm(ctx context.Context, id int) (Term, error) {
	return svc.repo.GetTerm(ctx, id)
}

func (svc *Service) QueryTerms(ctx context.Context, sessionID int) ([]Term, error) {
	return svc.repo.QueryTerms(ctx, sessionID)
}

// CheckPeriod verifies that both ends of `p` exist and that the term belongs to the session.
func (svc *Service) CheckPeriod(ctx context.Context, p Period) error {
	return CheckPeriod(ctx, svc.repo, p)
}

// CheckPeriod verifies that both ends of `p` exist and that the term belongs to the session.
func CheckPeriod(ctx context.Context, repo Repository, p Period) error {
	if _, err := repo.GetSession(ctx, p.SessionID); err != nil {
		return uniqueErr(err, "session_id", ErrSessionNotFound)
	}
	t, err := repo.GetTerm(ctx, p.TermID)
	if err != nil {
		return uniqueErr(err, "term_id", ErrTermNotFound)
	}
	if t.SessionID != p.SessionID {
		return core.NewValidationError(ErrTermSessionDiffer, core.FieldError{Field: "term_id", Error: ErrTermSessionDiffer.Error()})
	}
	return nil
}

// PeriodLabel renders a period as "2024/2025 first term".
func (svc *Service) PeriodLabel(ctx context.Context, p Period) string {
	s, err := svc.repo.GetSession(ctx, p.SessionID)
	if err != nil {
		return p.String()
	}
	t, err := svc.repo.GetTerm(ctx, p.TermID)
	if err != nil {
		return p.String()
	}
	return s.Name + " " + t.Label()
}

func (svc *Service) CreateSubject(ctx context.Context, actor user.User, ns NewSubject) (Subject, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Subject{}, err
	}
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	if err := core.Validate.Struct(ns); err != nil {
		return Subject{}, err
	}
	s, err := svc.repo.CreateSubject(ctx, Subject{Name: ns.Name, Code: ns.Code})
	return s, uniqueErr(err, "code", ErrSubjectExists)
}

func (svc *Service) GetSubject(ctx context.Context, id int) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

func (svc *Service) CreateClass(ctx context.Context, actor user.User, nc NewClass) (Class, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Class{}, err
	}
	nc.Name = core.CleanString(nc.Name)
	nc.Level = core.CleanString(nc.Level)
	if err := core.Validate.Struct(nc); err != nil {
		return Class{}, err
	}
	c, err := svc.repo.CreateClass(ctx, Class{Name: nc.Name, Level: nc.Level})
	return c, uniqueErr(err, "name", ErrClassExists)
}

// AssignSubjects replaces the subjects taught in a class.
func (svc *Service) AssignSubjects(ctx context.Context, actor user.User, classID int, subjectIDs ...int) (Class, error) {
	if err := user.Authorize(actor, user.CanManageAcademics); err != nil {
		return Class{}, err
	}
	var c Class
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		var err error
		if c, err = tx.GetClass(ctx, classID); err != nil {
			return err
		}
		seen := make(map[int]bool, len(subjectIDs))
		ids := make([]int, 0, len(subjectIDs))
		for _, id := range subjectIDs {
			if seen[id] {
				continue
			}
			if _, err = tx.GetSubject(ctx, id); err != nil {
				return uniqueErr(err, "subject_ids", ErrSubjectNotFound)
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if err = tx.SetClassSubjects(ctx, classID, ids); err != nil {
			return err
		}
		c.SubjectIDs = ids
		return nil
	})
	if err != nil {
		return Class{}, err
	}
	return c, nil
}

func (svc *Service) GetClass(ctx context.Context, id int) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) QueryClasses(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx)
}
