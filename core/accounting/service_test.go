package accounting_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/accounting"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/user"
	emailsvc "github.com/gladschool/portal/services/email"
	logsvc "github.com/gladschool/portal/services/logger"
	inmemdb "github.com/gladschool/portal/storage/database/inmem"
	testutil "github.com/gladschool/portal/tests"
)

var (
	bursar  = user.User{ID: 1, Name: "Bursar", Username: "bursar", Role: user.RoleAccountant, IsActive: true}
	teacher = user.User{ID: 2, Name: "Teacher", Username: "teacher", Role: user.RoleStaff, IsActive: true}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

type fixture struct {
	svc      *accounting.Service
	repo     accounting.Repository
	profiles profile.Repository
	school   testutil.School
	student  profile.Student
	events   *recordingPublisher
}

func setup(t *testing.T) fixture {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	calendar := inmemdb.NewAcademicRepository(db)
	profiles := inmemdb.NewProfileRepository(db)
	repo := inmemdb.NewAccountingRepository(db)
	events := new(recordingPublisher)
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0), false)

	school := testutil.CreateSchool(t, calendar, "JSS1A")
	emailsvc.ResetSentMessages()
	return fixture{
		svc:      accounting.NewService(repo, calendar, profiles, emailsvc.NewConsoleServiceMock(), events, logger),
		repo:     repo,
		profiles: profiles,
		school:   school,
		student:  testutil.CreateStudent(t, profiles, "ADM001", "Ada", "Obi", school.Class.ID),
		events:   events,
	}
}

func (fx fixture) newFee(amount string) accounting.NewFee {
	return accounting.NewFee{
		StudentID: fx.student.ID,
		SessionID: fx.school.Session.ID,
		TermID:    fx.school.Term.ID,
		AmountDue: decimal.RequireFromString(amount),
		DueDate:   time.Now().AddDate(0, 1, 0),
	}
}

func payment(amount string) accounting.NewPayment {
	return accounting.NewPayment{
		Amount:      decimal.RequireFromString(amount),
		PaymentDate: time.Now(),
		Method:      accounting.MethodCash,
	}
}

func TestService_CreateFee(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     user.User
		mutate    func(nf *accounting.NewFee)
		wantErr   error
		wantField string
	}{
		{name: "staff may not bill", actor: teacher, mutate: func(nf *accounting.NewFee) {}, wantErr: user.ErrPermissionDenied},
		{name: "zero amount", actor: bursar, mutate: func(nf *accounting.NewFee) { nf.AmountDue = decimal.Zero }, wantField: "amount_due"},
		{name: "amount over the cap", actor: bursar, mutate: func(nf *accounting.NewFee) { nf.AmountDue = decimal.NewFromInt(10_000_001) }, wantField: "amount_due"},
		{name: "past due date", actor: bursar, mutate: func(nf *accounting.NewFee) { nf.DueDate = time.Now().AddDate(0, 0, -1) }, wantField: "due_date"},
		{name: "unknown student", actor: bursar, mutate: func(nf *accounting.NewFee) { nf.StudentID = 999 }, wantField: "student_id"},
		{name: "created", actor: bursar, mutate: func(nf *accounting.NewFee) {}},
		{name: "duplicate", actor: bursar, mutate: func(nf *accounting.NewFee) {}, wantErr: accounting.ErrFeeExists, wantField: "term_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nf := fx.newFee("1000")
			tt.mutate(&nf)
			fee, err := fx.svc.CreateFee(ctx, tt.actor, nf)

			if tt.wantErr == nil && tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, accounting.StatusUnpaid, fee.Status)
				assert.True(t, fee.AmountPaid.IsZero())
				assert.False(t, fee.PaidDate.Valid)
				assert.Equal(t, bursar.ID, int(fee.CreatedBy.Int))
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
}

func TestService_ApplyPayment(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	fee, err := fx.svc.CreateFee(ctx, bursar, fx.newFee("1000"))
	require.NoError(t, err)

	t.Run("partial then settled", func(t *testing.T) {
		pmt, got, err := fx.svc.ApplyPayment(ctx, bursar, fee.ID, payment("500"))
		require.NoError(t, err)
		assert.Equal(t, accounting.StatusPartial, got.Status)
		assert.Equal(t, "500.00", got.AmountPaid.StringFixed(2))
		assert.False(t, got.PaidDate.Valid)
		assert.Regexp(t, `^RCT-[0-9A-F]{12}$`, pmt.ReceiptNumber)

		_, got, err = fx.svc.ApplyPayment(ctx, bursar, fee.ID, payment("500"))
		require.NoError(t, err)
		assert.Equal(t, accounting.StatusPaid, got.Status)
		assert.Equal(t, "1000.00", got.AmountPaid.StringFixed(2))
		require.True(t, got.PaidDate.Valid)
		assert.Equal(t, core.Today(), got.PaidDate.Time)
	})

	t.Run("overpayment leaves the fee unchanged", func(t *testing.T) {
		_, _, err := fx.svc.ApplyPayment(ctx, bursar, fee.ID, payment("0.01"))
		require.Error(t, err)
		var overpay accounting.ErrOverpayment
		assert.ErrorAs(t, err, &overpay)

		stored, err := fx.svc.GetFee(ctx, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, "1000.00", stored.AmountPaid.StringFixed(2))
		pmts, err := fx.svc.QueryPayments(ctx, accounting.PaymentFilter{TuitionFeeID: fee.ID})
		require.NoError(t, err)
		assert.Len(t, pmts, 2)
	})

	t.Run("receipts and events", func(t *testing.T) {
		msgs := emailsvc.SentMessages()
		require.Len(t, msgs, 2)
		assert.Equal(t, fx.student.Email, msgs[0].To[0].Address)
		assert.Contains(t, msgs[1].Subject, "Payment receipt RCT-")
		assert.Contains(t, msgs[1].TextContent, "1000.00")

		assert.Equal(t, []string{core.EventFeeCreated, core.EventPaymentApplied, core.EventPaymentApplied}, fx.events.names())
	})

	t.Run("validation", func(t *testing.T) {
		other, err := fx.svc.CreateFee(ctx, bursar, accounting.NewFee{
			StudentID: testutil.CreateStudent(t, fx.profiles, "ADM002", "Bola", "Ade", 0).ID,
			SessionID: fx.school.Session.ID,
			TermID:    fx.school.Term.ID,
			AmountDue: decimal.NewFromInt(300),
			DueDate:   time.Now(),
		})
		require.NoError(t, err)

		tests := []struct {
			name    string
			actor   user.User
			feeID   int
			np      accounting.NewPayment
			wantErr error
		}{
			{name: "staff may not record", actor: teacher, feeID: other.ID, np: payment("10"), wantErr: user.ErrPermissionDenied},
			{name: "unknown fee", actor: bursar, feeID: 999, np: payment("10"), wantErr: accounting.ErrFeeNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := fx.svc.ApplyPayment(ctx, tt.actor, tt.feeID, tt.np)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}

		future := payment("10")
		future.PaymentDate = time.Now().AddDate(0, 0, 2)
		_, _, err = fx.svc.ApplyPayment(ctx, bursar, other.ID, future)
		assert.True(t, core.IsValidationError(err))

		badMethod := payment("10")
		badMethod.Method = "cheque"
		_, _, err = fx.svc.ApplyPayment(ctx, bursar, other.ID, badMethod)
		assert.True(t, core.IsValidationError(err))

		dup := payment("10")
		dup.ReceiptNumber = "R-1"
		_, _, err = fx.svc.ApplyPayment(ctx, bursar, other.ID, dup)
		require.NoError(t, err)
		_, _, err = fx.svc.ApplyPayment(ctx, bursar, other.ID, dup)
		assert.ErrorIs(t, err, accounting.ErrReceiptExists)

		stored, err := fx.svc.GetFee(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, "10.00", stored.AmountPaid.StringFixed(2), "rejected receipt must roll the balance back")
	})
}

func TestService_ApplyPayment_concurrent(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	fee, err := fx.svc.CreateFee(ctx, bursar, fx.newFee("1000"))
	require.NoError(t, err)

	const workers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := fx.svc.ApplyPayment(ctx, bursar, fee.ID, payment("100"))
			mu.Lock()
			defer mu.Unlock()
			var overpay accounting.ErrOverpayment
			switch {
			case err == nil:
				applied++
			case errors.As(err, &overpay), errors.Is(err, accounting.ErrBalanceChanged):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, applied)
	assert.Equal(t, workers-10, rejected)

	stored, err := fx.svc.GetFee(ctx, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", stored.AmountPaid.StringFixed(2))
	assert.Equal(t, accounting.StatusPaid, stored.Status)

	pmts, err := fx.svc.QueryPayments(ctx, accounting.PaymentFilter{TuitionFeeID: fee.ID})
	require.NoError(t, err)
	sum := decimal.Zero
	for _, p := range pmts {
		sum = sum.Add(p.Amount)
	}
	assert.True(t, sum.Equal(stored.AmountPaid), "payments sum %s, fee says %s", sum, stored.AmountPaid)
}

func TestService_DeleteFee(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	paid, err := fx.svc.CreateFee(ctx, bursar, fx.newFee("1000"))
	require.NoError(t, err)
	_, _, err = fx.svc.ApplyPayment(ctx, bursar, paid.ID, payment("1"))
	require.NoError(t, err)

	nf := fx.newFee("1000")
	nf.StudentID = testutil.CreateStudent(t, fx.profiles, "ADM002", "Bola", "Ade", 0).ID
	unpaid, err := fx.svc.CreateFee(ctx, bursar, nf)
	require.NoError(t, err)

	assert.ErrorIs(t, fx.svc.DeleteFee(ctx, bursar, paid.ID), accounting.ErrFeeHasPayments)
	assert.ErrorIs(t, fx.svc.DeleteFee(ctx, teacher, unpaid.ID), user.ErrPermissionDenied)
	require.NoError(t, fx.svc.DeleteFee(ctx, bursar, unpaid.ID))
	_, err = fx.svc.GetFee(ctx, unpaid.ID)
	assert.ErrorIs(t, err, accounting.ErrFeeNotFound)
}

func TestService_QueryFees(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	first, err := fx.svc.CreateFee(ctx, bursar, fx.newFee("300"))
	require.NoError(t, err)
	nf := fx.newFee("100")
	nf.StudentID = testutil.CreateStudent(t, fx.profiles, "ADM002", "Bola", "Ade", 0).ID
	second, err := fx.svc.CreateFee(ctx, bursar, nf)
	require.NoError(t, err)
	_, _, err = fx.svc.ApplyPayment(ctx, bursar, second.ID, payment("50"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		filter   accounting.FeeFilter
		ordering []core.DBOrdering
		wantIDs  []int
	}{
		{name: "all", wantIDs: []int{first.ID, second.ID}},
		{name: "by status", filter: accounting.FeeFilter{Statuses: []string{accounting.StatusPartial}}, wantIDs: []int{second.ID}},
		{name: "by student", filter: accounting.FeeFilter{StudentID: fx.student.ID}, wantIDs: []int{first.ID}},
		{name: "amount ascending", ordering: []core.DBOrdering{{Field: "amount_due", Ascending: true}}, wantIDs: []int{second.ID, first.ID}},
		{name: "amount descending", ordering: []core.DBOrdering{{Field: "amount_due"}}, wantIDs: []int{first.ID, second.ID}},
		{name: "status ascending", ordering: []core.DBOrdering{{Field: "status", Ascending: true}}, wantIDs: []int{second.ID, first.ID}},
		{name: "status descending", ordering: []core.DBOrdering{{Field: "status"}}, wantIDs: []int{first.ID, second.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees, err := fx.svc.QueryFees(ctx, tt.filter, tt.ordering...)
			require.NoError(t, err)
			ids := make([]int, 0, len(fees))
			for _, f := range fees {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestService_Payroll(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	staff := testutil.CreateStaff(t, fx.profiles, "STF001", "Kofi Mensah")
	year := time.Now().Year()

	np := accounting.NewPayroll{StaffID: staff.ID, Month: 3, Year: year, Amount: decimal.NewFromInt(250)}
	p, err := fx.svc.CreatePayroll(ctx, bursar, np)
	require.NoError(t, err)
	assert.False(t, p.Paid)

	tests := []struct {
		name      string
		mutate    func(np *accounting.NewPayroll)
		wantErr   error
		wantField string
	}{
		{name: "duplicate month", mutate: func(np *accounting.NewPayroll) {}, wantErr: accounting.ErrPayrollExists, wantField: "month"},
		{name: "month 13", mutate: func(np *accounting.NewPayroll) { np.Month = 13 }, wantField: "month"},
		{name: "year too old", mutate: func(np *accounting.NewPayroll) { np.Year = year - 3 }, wantField: "year"},
		{name: "year too far", mutate: func(np *accounting.NewPayroll) { np.Year = year + 2 }, wantField: "year"},
		{name: "unknown staff", mutate: func(np *accounting.NewPayroll) { np.StaffID = 999; np.Month = 4 }, wantField: "staff_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := np
			tt.mutate(&in)
			_, err := fx.svc.CreatePayroll(ctx, bursar, in)
			require.True(t, core.IsValidationError(err), "want validation error, got %v", err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantField, core.ValidationFields(err)[0].Field)
		})
	}

	t.Run("paid is one-way", func(t *testing.T) {
		paid, err := fx.svc.MarkPayrollPaid(ctx, bursar, p.ID)
		require.NoError(t, err)
		assert.True(t, paid.Paid)
		assert.Equal(t, core.Today(), paid.PaidDate.Time)

		_, err = fx.svc.MarkPayrollPaid(ctx, bursar, p.ID)
		assert.ErrorIs(t, err, accounting.ErrPayrollPaid)
		_, err = fx.svc.MarkPayrollPaid(ctx, teacher, p.ID)
		assert.ErrorIs(t, err, user.ErrPermissionDenied)
		_, err = fx.svc.MarkPayrollPaid(ctx, bursar, 999)
		assert.ErrorIs(t, err, accounting.ErrPayrollNotFound)
	})
}

func TestService_CreateExpense(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		ne        accounting.NewExpense
		wantField string
	}{
		{name: "ok", ne: accounting.NewExpense{Description: "Chalk", Amount: decimal.NewFromInt(30), Date: time.Now(), Category: "Supplies"}},
		{name: "short description", ne: accounting.NewExpense{Description: "Ok", Amount: decimal.NewFromInt(30), Date: time.Now(), Category: "other"}, wantField: "description"},
		{name: "future", ne: accounting.NewExpense{Description: "Paint", Amount: decimal.NewFromInt(30), Date: time.Now().AddDate(0, 0, 2), Category: "other"}, wantField: "date"},
		{name: "too old", ne: accounting.NewExpense{Description: "Paint", Amount: decimal.NewFromInt(30), Date: time.Now().AddDate(-2, 0, -1), Category: "other"}, wantField: "date"},
		{name: "unknown category", ne: accounting.NewExpense{Description: "Paint", Amount: decimal.NewFromInt(30), Date: time.Now(), Category: "fun"}, wantField: "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := fx.svc.CreateExpense(ctx, bursar, tt.ne)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, accounting.CategorySupplies, e.Category)
				assert.Equal(t, core.Today(), e.Date)
				return
			}
			require.True(t, core.IsValidationError(err), "want validation error, got %v", err)
			assert.Equal(t, tt.wantField, core.ValidationFields(err)[0].Field)
		})
	}

	_, err := fx.svc.CreateExpense(ctx, teacher, tests[0].ne)
	assert.ErrorIs(t, err, user.ErrPermissionDenied)
}
