package accounting

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
)

// Fee statuses
const (
	StatusUnpaid  = "unpaid"
	StatusPartial = "partial"
	StatusPaid    = "paid"
)

// Payment methods
const (
	MethodCash   = "cash"
	MethodBank   = "bank"
	MethodCard   = "card"
	MethodOnline = "online"
)

// Expense categories
const (
	CategorySupplies    = "supplies"
	CategoryMaintenance = "maintenance"
	CategorySalary      = "salary"
	CategoryUtility     = "utility"
	CategoryOther       = "other"
)

var (
	FeeStatuses       = []string{StatusUnpaid, StatusPartial, StatusPaid}
	PaymentMethods    = []string{MethodCash, MethodBank, MethodCard, MethodOnline}
	ExpenseCategories = []string{CategorySupplies, CategoryMaintenance, CategorySalary, CategoryUtility, CategoryOther}
)

// TuitionFee is what a student owes for one term of a session.
// AmountPaid, Status and PaidDate are only written by payment application.
type TuitionFee struct {
	ID         int             `json:"id" db:"id"`
	StudentID  int             `json:"student_id" db:"student_id"`
	SessionID  int             `json:"session_id" db:"session_id"`
	TermID     int             `json:"term_id" db:"term_id"`
	AmountDue  decimal.Decimal `json:"amount_due" db:"amount_due"`
	AmountPaid decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	Status     string          `json:"status" db:"status"`
	PaidDate   null.Time       `json:"paid_date" db:"paid_date"`
	CreatedBy  null.Int        `json:"created_by" db:"created_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

func (f TuitionFee) Outstanding() decimal.Decimal {
	return f.AmountDue.Sub(f.AmountPaid)
}

// PaymentPercentage is the share of AmountDue already paid, truncated to a whole percent.
func (f TuitionFee) PaymentPercentage() int64 {
	if !f.AmountDue.IsPositive() {
		return 0
	}
	return f.AmountPaid.Mul(decimal.NewFromInt(100)).Div(f.AmountDue).IntPart()
}

type Payment struct {
	ID            int             `json:"id" db:"id"`
	TuitionFeeID  int             `json:"tuition_fee_id" db:"tuition_fee_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate   time.Time       `json:"payment_date" db:"payment_date"`
	Method        string          `json:"method" db:"method"`
	ReceiptNumber string          `json:"receipt_number" db:"receipt_number"`
	Reference     string          `json:"reference" db:"reference"`
	Notes         string          `json:"notes" db:"notes"`
	CreatedBy     null.Int        `json:"created_by" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

type Payroll struct {
	ID        int             `json:"id" db:"id"`
	StaffID   int             `json:"staff_id" db:"staff_id"`
	Month     int             `json:"month" db:"month"`
	Year      int             `json:"year" db:"year"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Paid      bool            `json:"paid" db:"paid"`
	PaidDate  null.Time       `json:"paid_date" db:"paid_date"`
	Notes     string          `json:"notes" db:"notes"`
	CreatedBy null.Int        `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type Expense struct {
	ID          int             `json:"id" db:"id"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Date        time.Time       `json:"date" db:"date"`
	Category    string          `json:"category" db:"category"`
	CreatedBy   null.Int        `json:"created_by" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// NewFee contains information needed to bill a student for a term.
type NewFee struct {
	StudentID int             `json:"student_id" validate:"required,gt=0"`
	SessionID int             `json:"session_id" validate:"required,gt=0"`
	TermID    int             `json:"term_id" validate:"required,gt=0"`
	AmountDue decimal.Decimal `json:"amount_due" validate:"gt=0"`
	DueDate   time.Time       `json:"due_date" validate:"required,notpast"`
}

// NewPayment contains information needed to apply a payment to a TuitionFee.
type NewPayment struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required,notfuture"`
	Method        string          `json:"method" validate:"required,oneof=cash bank card online"`
	ReceiptNumber string          `json:"receipt_number" validate:"max=100"`
	Reference     string          `json:"reference" validate:"max=100"`
	Notes         string          `json:"notes"`
}

func (np *NewPayment) Clean() {
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.ReceiptNumber = core.CleanString(np.ReceiptNumber)
	np.Reference = core.CleanString(np.Reference)
	np.Notes = core.CleanString(np.Notes)
	np.PaymentDate = core.DateOf(np.PaymentDate)
	np.Amount = core.Round2(np.Amount)
}

type NewPayroll struct {
	StaffID int             `json:"staff_id" validate:"required,gt=0"`
	Month   int             `json:"month" validate:"required,min=1,max=12"`
	Year    int             `json:"year" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	Notes   string          `json:"notes"`
}

type NewExpense struct {
	Description string          `json:"description" validate:"required,min=3,max=200"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        time.Time       `json:"date" validate:"required,notfuture"`
	Category    string          `json:"category" validate:"required,oneof=supplies maintenance salary utility other"`
}

type FeeFilter struct {
	StudentID int
	SessionID int
	TermID    int
	Statuses  []string
	DueFrom   time.Time
	DueTo     time.Time
}

type PaymentFilter struct {
	TuitionFeeID int
	Methods      []string
	From         time.Time // payment_date, inclusive
	To           time.Time // payment_date, inclusive
}

type PayrollFilter struct {
	StaffID  int
	Year     int
	Month    int
	Paid     *bool
	PaidFrom time.Time
	PaidTo   time.Time
}

type ExpenseFilter struct {
	Categories []string
	From       time.Time
	To         time.Time
}
