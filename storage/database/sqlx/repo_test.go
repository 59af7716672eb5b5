package sqlxrepos_test

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/accounting"
	"github.com/gladschool/portal/core/results"
	"github.com/gladschool/portal/core/user"
	emailsvc "github.com/gladschool/portal/services/email"
	logsvc "github.com/gladschool/portal/services/logger"
	sqlxrepos "github.com/gladschool/portal/storage/database/sqlx"
	testutil "github.com/gladschool/portal/tests"
)

var (
	principal = user.User{ID: 1, Name: "Principal", Username: "principal", Role: user.RoleAdmin, IsActive: true}
	logger    = logsvc.NewStdLogger(log.New(io.Discard, "", 0), false)
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	ada := testutil.CreateUser(t, repo, "Ada Obi", "ada", "ada@school.test", user.RoleAccountant, true)
	testutil.CreateUser(t, repo, "Bola Ade", "bola", "", user.RoleStaff, true)

	tests := []struct {
		name       string
		username   string
		email      string
		excludedID int
		want       error
	}{
		{name: "free", username: "chidi", email: "chidi@school.test"},
		{name: "username taken", username: "ada", email: "new@school.test", want: user.ErrUsernameExists},
		{name: "email taken", username: "chidi", email: "ada@school.test", want: user.ErrEmailExists},
		{name: "own record", username: "ada", email: "ada@school.test", excludedID: ada.ID},
		{name: "empty emails never clash", username: "chidi", email: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repo.CheckUniqueness(ctx, tt.username, tt.email, tt.excludedID))
		})
	}

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "ada@school.test"})
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.ID)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: 999})
	assert.Equal(t, user.ErrNotFound, err)

	staff, err := repo.QueryUsers(ctx, user.RoleStaff)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "bola", staff[0].Username)
}

func TestAcademicRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewAcademicRepository(db)
	ctx := context.Background()

	school := testutil.CreateSchool(t, repo, "JSS1A", "MTH", "ENG")

	class, err := repo.GetClass(ctx, school.Class.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, school.Class.SubjectIDs, class.SubjectIDs)

	_, err = repo.CreateClass(ctx, academic.Class{Name: "JSS1A", Level: "JSS"})
	assert.Equal(t, academic.ErrClassExists, err)

	err = repo.SetClassSubjects(ctx, school.Class.ID, []int{school.Subjects[0].ID, 999})
	assert.Equal(t, academic.ErrSubjectNotFound, err)
	class, err = repo.GetClass(ctx, school.Class.ID)
	require.NoError(t, err)
	assert.Len(t, class.SubjectIDs, 2, "failed assignment must leave the old subjects")

	next, err := repo.CreateSession(ctx, academic.Session{
		Name:      "next",
		StartDate: school.Session.EndDate.AddDate(0, 0, 1),
		EndDate:   school.Session.EndDate.AddDate(1, 0, 0),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.SetCurrentSession(ctx, next.ID))
	current, err := repo.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)
}

func TestAccounting_ApplyPayment_concurrent(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()

	calendar := sqlxrepos.NewAcademicRepository(db)
	profiles := sqlxrepos.NewProfileRepository(db)
	repo := sqlxrepos.NewAccountingRepository(db)
	svc := accounting.NewService(repo, calendar, profiles, emailsvc.NewConsoleServiceMock(), core.NopPublisher(), logger)

	school := testutil.CreateSchool(t, calendar, "JSS1A")
	student := testutil.CreateStudent(t, profiles, "ADM001", "Ada", "Obi", school.Class.ID)
	fee, err := svc.CreateFee(ctx, principal, accounting.NewFee{
		StudentID: student.ID,
		SessionID: school.Session.ID,
		TermID:    school.Term.ID,
		AmountDue: decimal.NewFromInt(1000),
		DueDate:   time.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	_, err = svc.CreateFee(ctx, principal, accounting.NewFee{
		StudentID: student.ID,
		SessionID: school.Session.ID,
		TermID:    school.Term.ID,
		AmountDue: decimal.NewFromInt(500),
		DueDate:   time.Now().AddDate(0, 1, 0),
	})
	assert.ErrorIs(t, err, accounting.ErrFeeExists)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.ApplyPayment(ctx, principal, fee.ID, accounting.NewPayment{
				Amount:      decimal.NewFromInt(100),
				PaymentDate: time.Now(),
				Method:      accounting.MethodBank,
			})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, applied)

	got, err := svc.GetFee(ctx, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, accounting.StatusPaid, got.Status)
	assert.True(t, got.AmountPaid.Equal(got.AmountDue))
	assert.True(t, got.PaidDate.Valid)

	payments, err := svc.QueryPayments(ctx, accounting.PaymentFilter{TuitionFeeID: fee.ID})
	require.NoError(t, err)
	assert.Len(t, payments, 10)

	err = svc.DeleteFee(ctx, principal, fee.ID)
	assert.Error(t, err, "a fee with payments cannot be deleted")
}

func TestResults_compile(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()

	calendar := sqlxrepos.NewAcademicRepository(db)
	profiles := sqlxrepos.NewProfileRepository(db)
	svc := results.NewService(sqlxrepos.NewResultsRepository(db), calendar, profiles, emailsvc.NewConsoleServiceMock(), nil, logger)

	school := testutil.CreateSchool(t, calendar, "JSS1A", "MTH")
	ada := testutil.CreateStudent(t, profiles, "ADM001", "Ada", "Obi", school.Class.ID)
	bola := testutil.CreateStudent(t, profiles, "ADM002", "Bola", "Ade", school.Class.ID)

	exam, err := svc.CreateAssessment(ctx, principal, results.NewAssessment{
		Name: "Exam", Type: results.TypeExam, MaxScore: decimal.NewFromInt(100), WeightPercentage: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	for _, r := range []struct {
		studentID int
		score     int64
	}{{ada.ID, 60}, {bola.ID, 40}, {ada.ID, 75}} {
		_, _, err := svc.RecordResult(ctx, principal, results.NewResult{
			StudentID:    r.studentID,
			SubjectID:    school.Subjects[0].ID,
			SessionID:    school.Session.ID,
			TermID:       school.Term.ID,
			AssessmentID: exam.ID,
			Score:        decimal.NewFromInt(r.score),
		})
		require.NoError(t, err)
	}

	trs, err := svc.CompileClassResults(ctx, principal, school.Period(), school.Class.ID)
	require.NoError(t, err)
	require.Len(t, trs, 2)

	byStudent := make(map[int]results.TermResult, len(trs))
	for _, tr := range trs {
		byStudent[tr.StudentID] = tr
	}
	assert.True(t, byStudent[ada.ID].Percentage.Equal(decimal.NewFromInt(75)), "got %s", byStudent[ada.ID].Percentage)
	assert.Equal(t, "B", byStudent[ada.ID].Grade)
	assert.Equal(t, 1, int(byStudent[ada.ID].PositionInClass.Int))
	assert.Equal(t, "F", byStudent[bola.ID].Grade)
	assert.Equal(t, 2, int(byStudent[bola.ID].PositionInClass.Int))
}
