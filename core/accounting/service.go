package accounting

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/user"
)

var (
	ErrFeeNotFound      = errors.New("tuition fee not found")
	ErrFeeExists        = errors.New("a tuition fee already exists for this student, session and term")
	ErrFeeHasPayments   = errors.New("tuition fee has payments and cannot be deleted")
	ErrBalanceChanged   = errors.New("tuition fee balance changed concurrently")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrReceiptExists    = errors.New("a payment with this receipt number already exists")
	ErrPayrollNotFound  = errors.New("payroll entry not found")
	ErrPayrollExists    = errors.New("payroll for this staff member, month and year already exists")
	ErrPayrollPaid      = errors.New("payroll entry is already paid")
	ErrExpenseNotFound  = errors.New("expense not found")
	errExpenseTooOld    = errors.New("expense date cannot be more than 2 years in the past")
	errPayrollYearRange = "year must be between %d and %d"
)

type (
	Repository interface {
		// WithinTx runs `fn` in a single transaction, rolled back if `fn` fails.
		WithinTx(ctx context.Context, fn func(tx Repository) error) error

		CreateFee(ctx context.Context, fee TuitionFee) (TuitionFee, error)
		GetFee(ctx context.Context, id int) (TuitionFee, error)
		// LockFee reads a fee and holds it against concurrent writers until the transaction ends.
		LockFee(ctx context.Context, id int) (TuitionFee, error)
		QueryFees(ctx context.Context, filter FeeFilter, ordering []core.DBOrdering) ([]TuitionFee, error)
		// AddFeePayment increments AmountPaid by `amount` and stores next's Status and PaidDate.
		// It fails with ErrBalanceChanged if the increment would take AmountPaid past AmountDue.
		AddFeePayment(ctx context.Context, next TuitionFee, amount decimal.Decimal) (TuitionFee, error)
		DeleteFee(ctx context.Context, id int) error

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id int) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
		CountPayments(ctx context.Context, feeID int) (int, error)

		CreatePayroll(ctx context.Context, p Payroll) (Payroll, error)
		GetPayroll(ctx context.Context, id int) (Payroll, error)
		LockPayroll(ctx context.Context, id int) (Payroll, error)
		QueryPayrolls(ctx context.Context, filter PayrollFilter) ([]Payroll, error)
		MarkPayrollPaid(ctx context.Context, id int, paidOn null.Time) (Payroll, error)

		CreateExpense(ctx context.Context, e Expense) (Expense, error)
		QueryExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, error)
	}

	Service struct {
		repo     Repository
		calendar academic.Repository
		profiles profile.Repository
		mailSvc  core.EmailService
		events   core.EventPublisher
		logger   core.Logger
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
	return &Service{
		repo:     repo,
		calendar: calendar,
		profiles: profiles,
		mailSvc:  mailSvc,
		events:   events,
		logger:   logger,
	}
}

func actorID(actor user.User) null.Int {
	return null.NewInt(actor.ID, actor.ID != 0)
}

func maxAmountErr(field string, amount decimal.Decimal, max float64) error {
	if amount.GreaterThan(decimal.NewFromFloat(max)) {
		return core.NewFieldValidationError(field, "%s cannot exceed %s", field, decimal.NewFromFloat(max).StringFixed(2))
	}
	return nil
}

// Tuition fees

func (svc *Service) CreateFee(ctx context.Context, actor user.User, nf NewFee) (TuitionFee, error) {
	if err := user.Authorize(actor, user.CanManageFees); err != nil {
		return TuitionFee{}, err
	}
	nf.AmountDue = core.Round2(nf.AmountDue)
	nf.DueDate = core.DateOf(nf.DueDate)
	if err := core.Validate.Struct(nf); err != nil {
		return TuitionFee{}, err
	}
	if err := maxAmountErr("amount_due", nf.AmountDue, core.Conf.Ledger.MaxFeeAmount); err != nil {
		return TuitionFee{}, err
	}
	if _, err := svc.profiles.GetStudent(ctx, nf.StudentID); err != nil {
		if err == profile.ErrStudentNotFound {
			return TuitionFee{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return TuitionFee{}, err
	}
	if err := academic.CheckPeriod(ctx, svc.calendar, academic.Period{SessionID: nf.SessionID, TermID: nf.TermID}); err != nil {
		return TuitionFee{}, err
	}

	now := core.NowFunc().UTC()
	fee, err := svc.repo.CreateFee(ctx, TuitionFee{
		StudentID:  nf.StudentID,
		SessionID:  nf.SessionID,
		TermID:     nf.TermID,
		AmountDue:  nf.AmountDue,
		AmountPaid: decimal.Zero,
		DueDate:    nf.DueDate,
		Status:     StatusUnpaid,
		CreatedBy:  actorID(actor),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if err == ErrFeeExists {
			return TuitionFee{}, core.NewValidationError(err, core.FieldError{Field: "term_id", Error: err.Error()})
		}
		return TuitionFee{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventFeeCreated, actor.ID, fee))
	return fee, nil
}

func (svc *Service) GetFee(ctx context.Context, id int) (TuitionFee, error) {
	return svc.repo.GetFee(ctx, id)
}

func (svc *Service) QueryFees(ctx context.Context, filter FeeFilter, ordering ...core.DBOrdering) ([]TuitionFee, error) {
	return svc.repo.QueryFees(ctx, filter, ordering)
}

// DeleteFee removes a fee that never received a payment.
func (svc *Service) DeleteFee(ctx context.Context, actor user.User, id int) error {
	if err := user.Authorize(actor, user.CanManageFees); err != nil {
		return err
	}
	return svc.repo.WithinTx(ctx, func(tx Repository) error {
		if _, err := tx.LockFee(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountPayments(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return core.NewValidationError(ErrFeeHasPayments)
		}
		return tx.DeleteFee(ctx, id)
	})
}

// Payments

// ApplyPayment records a payment against a fee and updates the fee balance in one transaction.
// The fee row stays locked from the outstanding balance check until the increment is written.
func (svc *Service) ApplyPayment(ctx context.Context, actor user.User, feeID int, np NewPayment) (Payment, TuitionFee, error) {
	if err := user.Authorize(actor, user.CanRecordPayments); err != nil {
		return Payment{}, TuitionFee{}, err
	}
	np.Clean()
	if err := core.Validate.Struct(np); err != nil {
		return Payment{}, TuitionFee{}, err
	}
	if np.ReceiptNumber == "" {
		np.ReceiptNumber = newReceiptNumber()
	}

	var pmt Payment
	var fee TuitionFee
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		locked, err := tx.LockFee(ctx, feeID)
		if err != nil {
			return err
		}
		next, err := ApplyAmount(locked, np.Amount, core.Today())
		if err != nil {
			if e, ok := err.(ErrOverpayment); ok {
				return core.NewValidationError(e, core.FieldError{Field: "amount", Error: e.Error()})
			}
			return err
		}

		now := core.NowFunc().UTC()
		next.UpdatedAt = now
		if fee, err = tx.AddFeePayment(ctx, next, np.Amount); err != nil {
			return err
		}
		pmt, err = tx.CreatePayment(ctx, Payment{
			TuitionFeeID:  feeID,
			Amount:        np.Amount,
			PaymentDate:   np.PaymentDate,
			Method:        np.Method,
			ReceiptNumber: np.ReceiptNumber,
			Reference:     np.Reference,
			Notes:         np.Notes,
			CreatedBy:     actorID(actor),
			CreatedAt:     now,
		})
		if err == ErrReceiptExists {
			return core.NewValidationError(err, core.FieldError{Field: "receipt_number", Error: err.Error()})
		}
		return err
	})
	if err != nil {
		return Payment{}, TuitionFee{}, err
	}

	svc.publish(ctx, core.NewEvent(core.EventPaymentApplied, actor.ID, map[string]interface{}{
		"payment": pmt,
		"fee":     fee,
	}))
	svc.sendReceipt(ctx, pmt, fee)
	return pmt, fee, nil
}

func (svc *Service) GetPayment(ctx context.Context, id int) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

func newReceiptNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "RCT-" + id[:12]
}

type receiptData struct {
	StudentName   string
	Amount        decimal.Decimal
	Method        string
	PaymentDate   time.Time
	ReceiptNumber string
	FeeLabel      string
	AmountDue     decimal.Decimal
	AmountPaid    decimal.Decimal
	Outstanding   decimal.Decimal
	Status        string
}

func (svc *Service) sendReceipt(ctx context.Context, pmt Payment, fee TuitionFee) {
	if svc.mailSvc == nil {
		return
	}
	student, err := svc.profiles.GetStudent(ctx, fee.StudentID)
	if err != nil {
		svc.logError("loading student for receipt", err)
		return
	}
	if student.Email == "" {
		return
	}

	feeLabel := fmt.Sprintf("session %d, term %d", fee.SessionID, fee.TermID)
	if s, err := svc.calendar.GetSession(ctx, fee.SessionID); err == nil {
		if t, err := svc.calendar.GetTerm(ctx, fee.TermID); err == nil {
			feeLabel = s.Name + " " + t.Label()
		}
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.FullName(), Address: student.Email}},
		Subject:      "Payment receipt " + pmt.ReceiptNumber,
		TemplateName: "payment_receipt",
		TemplateData: receiptData{
			StudentName:   student.FullName(),
			Amount:        pmt.Amount,
			Method:        pmt.Method,
			PaymentDate:   pmt.PaymentDate,
			ReceiptNumber: pmt.ReceiptNumber,
			FeeLabel:      feeLabel,
			AmountDue:     fee.AmountDue,
			AmountPaid:    fee.AmountPaid,
			Outstanding:   fee.Outstanding(),
			Status:        fee.Status,
		},
	})
}

// Payroll

func (svc *Service) CreatePayroll(ctx context.Context, actor user.User, np NewPayroll) (Payroll, error) {
	if err := user.Authorize(actor, user.CanManagePayroll); err != nil {
		return Payroll{}, err
	}
	np.Amount = core.Round2(np.Amount)
	np.Notes = core.CleanString(np.Notes)
	if err := core.Validate.Struct(np); err != nil {
		return Payroll{}, err
	}
	if err := maxAmountErr("amount", np.Amount, core.Conf.Ledger.MaxPayrollAmount); err != nil {
		return Payroll{}, err
	}
	currYear := core.NowFunc().Year()
	if np.Year < currYear-2 || np.Year > currYear+1 {
		return Payroll{}, core.NewFieldValidationError("year", errPayrollYearRange, currYear-2, currYear+1)
	}
	if _, err := svc.profiles.GetStaff(ctx, np.StaffID); err != nil {
		if err == profile.ErrStaffNotFound {
			return Payroll{}, core.NewValidationError(err, core.FieldError{Field: "staff_id", Error: err.Error()})
		}
		return Payroll{}, err
	}

	p, err := svc.repo.CreatePayroll(ctx, Payroll{
		StaffID:   np.StaffID,
		Month:     np.Month,
		Year:      np.Year,
		Amount:    np.Amount,
		Notes:     np.Notes,
		CreatedBy: actorID(actor),
		CreatedAt: core.NowFunc().UTC(),
	})
	if err == ErrPayrollExists {
		return Payroll{}, core.NewValidationError(err, core.FieldError{Field: "month", Error: err.Error()})
	}
	return p, err
}

// MarkPayrollPaid settles a payroll entry. Settled entries stay settled.
func (svc *Service) MarkPayrollPaid(ctx context.Context, actor user.User, id int) (Payroll, error) {
	if err := user.Authorize(actor, user.CanManagePayroll); err != nil {
		return Payroll{}, err
	}
	var p Payroll
	err := svc.repo.WithinTx(ctx, func(tx Repository) error {
		locked, err := tx.LockPayroll(ctx, id)
		if err != nil {
			return err
		}
		if locked.Paid {
			return core.NewValidationError(ErrPayrollPaid)
		}
		p, err = tx.MarkPayrollPaid(ctx, id, null.TimeFrom(core.Today()))
		return err
	})
	if err != nil {
		return Payroll{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventPayrollPaid, actor.ID, p))
	return p, nil
}

func (svc *Service) QueryPayrolls(ctx context.Context, filter PayrollFilter) ([]Payroll, error) {
	return svc.repo.QueryPayrolls(ctx, filter)
}

// Expenses

func (svc *Service) CreateExpense(ctx context.Context, actor user.User, ne NewExpense) (Expense, error) {
	if err := user.Authorize(actor, user.CanManageExpenses); err != nil {
		return Expense{}, err
	}
	ne.Description = core.CleanString(ne.Description)
	ne.Category = core.CleanString(ne.Category, true /* lower */)
	ne.Amount = core.Round2(ne.Amount)
	ne.Date = core.DateOf(ne.Date)
	if err := core.Validate.Struct(ne); err != nil {
		return Expense{}, err
	}
	if err := maxAmountErr("amount", ne.Amount, core.Conf.Ledger.MaxExpenseAmount); err != nil {
		return Expense{}, err
	}
	if ne.Date.Before(core.Today().AddDate(-2, 0, 0)) {
		return Expense{}, core.NewValidationError(errExpenseTooOld, core.FieldError{Field: "date", Error: errExpenseTooOld.Error()})
	}

	return svc.repo.CreateExpense(ctx, Expense{
		Description: ne.Description,
		Amount:      ne.Amount,
		Date:        ne.Date,
		Category:    ne.Category,
		CreatedBy:   actorID(actor),
		CreatedAt:   core.NowFunc().UTC(),
	})
}

func (svc *Service) QueryExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, error) {
	return svc.repo.QueryExpenses(ctx, filter)
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
