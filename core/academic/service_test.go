package academic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/user"
	inmemdb "github.com/gladschool/portal/storage/database/inmem"
)

var (
	admin   = user.User{ID: 1, Username: "admin", Role: user.RoleAdmin, IsActive: true}
	teacher = user.User{ID: 2, Username: "teacher", Role: user.RoleStaff, IsActive: true}
)

func setup(t *testing.T) *academic.Service {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return academic.NewService(inmemdb.NewAcademicRepository(db))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestService_sessions(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     user.User
		ns        academic.NewSession
		wantErr   error
		wantField string
	}{
		{name: "staff may not manage", actor: teacher, ns: academic.NewSession{Name: "2024/2025"}, wantErr: user.ErrPermissionDenied},
		{name: "missing name", actor: admin, ns: academic.NewSession{StartDate: date(2024, 9, 1), EndDate: date(2025, 7, 31)}, wantField: "name"},
		{name: "ends before start", actor: admin, ns: academic.NewSession{Name: "2024/2025", StartDate: date(2024, 9, 1), EndDate: date(2024, 8, 1)}, wantField: "end_date"},
		{name: "created", actor: admin, ns: academic.NewSession{Name: " 2024/2025 ", StartDate: date(2024, 9, 1), EndDate: date(2025, 7, 31)}},
		{name: "duplicate name", actor: admin, ns: academic.NewSession{Name: "2024/2025", StartDate: date(2024, 9, 1), EndDate: date(2025, 7, 31)}, wantErr: academic.ErrSessionExists, wantField: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.CreateSession(ctx, tt.actor, tt.ns)
			if tt.wantErr == nil && tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "2024/2025", s.Name)
				assert.False(t, s.IsCurrent)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantField != "" {
				require.True(t, core.IsValidationError(err), "want validation error, got %v", err)
				assert.Equal(t, tt.wantField, core.ValidationFields(err)[0].Field)
			}
		})
	}

	t.Run("single current session", func(t *testing.T) {
		_, err := svc.CurrentSession(ctx)
		assert.ErrorIs(t, err, academic.ErrNoCurrentSession)

		next, err := svc.CreateSession(ctx, admin, academic.NewSession{Name: "2025/2026", StartDate: date(2025, 9, 1), EndDate: date(2026, 7, 31)})
		require.NoError(t, err)
		sessions, err := svc.QuerySessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, next.ID, sessions[0].ID, "latest first")

		for _, s := range sessions {
			cur, err := svc.SetCurrentSession(ctx, admin, s.ID)
			require.NoError(t, err)
			assert.True(t, cur.IsCurrent)

			got, err := svc.CurrentSession(ctx)
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)
		}
		all, err := svc.QuerySessions(ctx)
		require.NoError(t, err)
		current := 0
		for _, s := range all {
			if s.IsCurrent {
				current++
			}
		}
		assert.Equal(t, 1, current)

		_, err = svc.SetCurrentSession(ctx, admin, 999)
		assert.ErrorIs(t, err, academic.ErrSessionNotFound)
	})
}

func TestService_terms(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	s1, err := svc.CreateSession(ctx, admin, academic.NewSession{Name: "2024/2025", StartDate: date(2024, 9, 1), EndDate: date(2025, 7, 31)})
	require.NoError(t, err)
	s2, err := svc.CreateSession(ctx, admin, academic.NewSession{Name: "2025/2026", StartDate: date(2025, 9, 1), EndDate: date(2026, 7, 31)})
	require.NoError(t, err)

	first, err := svc.CreateTerm(ctx, admin, academic.NewTerm{SessionID: s1.ID, Name: "First", StartDate: date(2024, 9, 1), EndDate: date(2024, 12, 15)})
	require.NoError(t, err)
	assert.Equal(t, academic.TermFirst, first.Name)
	assert.True(t, first.StartDate.Valid)
	second, err := svc.CreateTerm(ctx, admin, academic.NewTerm{SessionID: s1.ID, Name: "second"})
	require.NoError(t, err)
	assert.False(t, second.StartDate.Valid)
	other, err := svc.CreateTerm(ctx, admin, academic.NewTerm{SessionID: s2.ID, Name: "first"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		nt        academic.NewTerm
		wantErr   error
		wantField string
	}{
		{name: "unknown name", nt: academic.NewTerm{SessionID: s1.ID, Name: "fourth"}, wantField: "name"},
		{name: "duplicate", nt: academic.NewTerm{SessionID: s1.ID, Name: "first"}, wantErr: academic.ErrTermExists, wantField: "name"},
		{name: "unknown session", nt: academic.NewTerm{SessionID: 999, Name: "third"}, wantErr: academic.ErrSessionNotFound, wantField: "session_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTerm(ctx, admin, tt.nt)
			require.True(t, core.IsValidationError(err), "want validation error, got %v", err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantField, core.ValidationFields(err)[0].Field)
		})
	}

	t.Run("current term per session", func(t *testing.T) {
		_, err := svc.SetCurrentSession(ctx, admin, s1.ID)
		require.NoError(t, err)
		_, _, err = svc.CurrentPeriod(ctx)
		assert.ErrorIs(t, err, academic.ErrNoCurrentTerm)

		_, err = svc.SetCurrentTerm(ctx, admin, first.ID)
		require.NoError(t, err)
		_, err = svc.SetCurrentTerm(ctx, admin, other.ID)
		require.NoError(t, err)
		_, err = svc.SetCurrentTerm(ctx, admin, second.ID)
		require.NoError(t, err)

		s, term, err := svc.CurrentPeriod(ctx)
		require.NoError(t, err)
		assert.Equal(t, s1.ID, s.ID)
		assert.Equal(t, second.ID, term.ID)

		terms, err := svc.QueryTerms(ctx, 0)
		require.NoError(t, err)
		current := map[int]int{}
		for _, tm := range terms {
			if tm.IsCurrent {
				current[tm.SessionID]++
			}
		}
		assert.Equal(t, map[int]int{s1.ID: 1, s2.ID: 1}, current, "one current term per session")
	})

	t.Run("check period", func(t *testing.T) {
		assert.NoError(t, svc.CheckPeriod(ctx, academic.Period{SessionID: s1.ID, TermID: first.ID}))
		assert.ErrorIs(t, svc.CheckPeriod(ctx, academic.Period{SessionID: s1.ID, TermID: other.ID}), academic.ErrTermSessionDiffer)
		assert.ErrorIs(t, svc.CheckPeriod(ctx, academic.Period{SessionID: s1.ID, TermID: 999}), academic.ErrTermNotFound)
		assert.ErrorIs(t, svc.CheckPeriod(ctx, academic.Period{SessionID: 999, TermID: first.ID}), academic.ErrSessionNotFound)

		assert.Equal(t, "2024/2025 first term", svc.PeriodLabel(ctx, academic.Period{SessionID: s1.ID, TermID: first.ID}))
		assert.Equal(t, "session 999 / term 1", svc.PeriodLabel(ctx, academic.Period{SessionID: 999, TermID: 1}))
	})
}

func TestService_classes(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	maths, err := svc.CreateSubject(ctx, admin, academic.NewSubject{Name: "Mathematics", Code: "MTH"})
	require.NoError(t, err)
	assert.Equal(t, "mth", maths.Code)
	english, err := svc.CreateSubject(ctx, admin, academic.NewSubject{Name: "English", Code: "eng"})
	require.NoError(t, err)
	_, err = svc.CreateSubject(ctx, admin, academic.NewSubject{Name: "Maths again", Code: "mth"})
	assert.ErrorIs(t, err, academic.ErrSubjectExists)
	_, err = svc.CreateSubject(ctx, admin, academic.NewSubject{Name: "Bad", Code: "a b"})
	assert.True(t, core.IsValidationError(err))

	class, err := svc.CreateClass(ctx, admin, academic.NewClass{Name: "JSS1A", Level: "JSS1"})
	require.NoError(t, err)
	_, err = svc.CreateClass(ctx, admin, academic.NewClass{Name: "JSS1A"})
	assert.ErrorIs(t, err, academic.ErrClassExists)
	_, err = svc.CreateClass(ctx, teacher, academic.NewClass{Name: "JSS1B"})
	assert.ErrorIs(t, err, user.ErrPermissionDenied)

	tests := []struct {
		name       string
		subjectIDs []int
		wantIDs    []int
		wantErr    error
	}{
		{name: "assign", subjectIDs: []int{maths.ID, english.ID, maths.ID}, wantIDs: []int{maths.ID, english.ID}},
		{name: "replace", subjectIDs: []int{english.ID}, wantIDs: []int{english.ID}},
		{name: "unknown subject", subjectIDs: []int{english.ID, 999}, wantErr: academic.ErrSubjectNotFound},
		{name: "clear", wantIDs: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := svc.GetClass(ctx, class.ID)
			require.NoError(t, err)

			c, err := svc.AssignSubjects(ctx, admin, class.ID, tt.subjectIDs...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				after, err := svc.GetClass(ctx, class.ID)
				require.NoError(t, err)
				assert.ElementsMatch(t, before.SubjectIDs, after.SubjectIDs, "failed assignment must not change the class")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, c.SubjectIDs)
			stored, err := svc.GetClass(ctx, class.ID)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantIDs, stored.SubjectIDs)
		})
	}

	classes, err := svc.QueryClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
	subjects, err := svc.QuerySubjects(ctx)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
}
