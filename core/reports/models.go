package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period bounds a report, both days inclusive.
type Period struct {
	Name string    `json:"period_name"`
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtefield=From"`
}

type MethodTotal struct {
	Method string          `json:"method"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

type IncomeStatement struct {
	PeriodName        string                     `json:"period_name"`
	TotalRevenue      decimal.Decimal            `json:"total_revenue"`
	RevenueByMethod   []MethodTotal              `json:"revenue_by_method"`
	ExpenseCategories map[string]decimal.Decimal `json:"expense_categories"`
	TotalExpenses     decimal.Decimal            `json:"total_expenses"`
	NetIncome         decimal.Decimal            `json:"net_income"`
	ProfitMargin      decimal.Decimal            `json:"profit_margin"`
	GeneratedAt       time.Time                  `json:"generated_at"`
}

type BalanceSheet struct {
	PeriodName         string          `json:"period_name"`
	AsOf               time.Time       `json:"as_of"`
	CashOnHand         decimal.Decimal `json:"cash_on_hand"`
	AccountsReceivable decimal.Decimal `json:"accounts_receivable"`
	TotalAssets        decimal.Decimal `json:"total_assets"`
	UnpaidPayroll      decimal.Decimal `json:"unpaid_payroll"`
	TotalLiabilities   decimal.Decimal `json:"total_liabilities"`
	NetEquity          decimal.Decimal `json:"net_equity"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type CashFlow struct {
	PeriodName         string          `json:"period_name"`
	CashFromOperations decimal.Decimal `json:"cash_from_operations"`
	CashForExpenses    decimal.Decimal `json:"cash_for_expenses"`
	CashForPayroll     decimal.Decimal `json:"cash_for_payroll"`
	NetOperatingCash   decimal.Decimal `json:"net_operating_cash"`
	NetChangeInCash    decimal.Decimal `json:"net_change_in_cash"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type FeePaymentLine struct {
	PaymentID   int             `json:"payment_id"`
	StudentID   int             `json:"student_id"`
	StudentName string          `json:"student_name"`
	ClassName   string          `json:"student_class"`
	FeeID       int             `json:"fee_id"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	PaymentDate time.Time       `json:"payment_date"`
	Status      string          `json:"status"`
}

type ClassOutstanding struct {
	ClassName          string          `json:"class_name"`
	StudentCount       int             `json:"student_count"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	AverageOutstanding decimal.Decimal `json:"average_outstanding"`
}

type FeeCollection struct {
	PeriodName         string             `json:"period_name"`
	Payments           []FeePaymentLine   `json:"fee_payments"`
	TotalDue           decimal.Decimal    `json:"total_due"`
	TotalPaid          decimal.Decimal    `json:"total_paid"`
	TotalOutstanding   decimal.Decimal    `json:"total_outstanding"`
	CollectionRate     decimal.Decimal    `json:"collection_rate"`
	StudentsPaid       int                `json:"students_paid"`
	TotalStudents      int                `json:"total_students"`
	AveragePayment     decimal.Decimal    `json:"average_payment"`
	PaymentMethods     []MethodTotal      `json:"payment_methods"`
	StatusCounts       map[string]int     `json:"status_counts"`
	OutstandingByClass []ClassOutstanding `json:"outstanding_by_class"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

type CategoryTotal struct {
	Category   string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

type ExpenseReport struct {
	PeriodName  string          `json:"period_name"`
	Total       decimal.Decimal `json:"total_expenses"`
	ByCategory  []CategoryTotal `json:"expenses_by_category"`
	Count       int             `json:"count"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type ClassResultSummary struct {
	SessionID         int             `json:"session_id"`
	TermID            int             `json:"term_id"`
	ClassID           int             `json:"class_id"`
	Sheets            int             `json:"sheets"`
	Published         int             `json:"published"`
	AveragePercentage decimal.Decimal `json:"average_percentage"`
	HighestPercentage decimal.Decimal `json:"highest_percentage"`
	LowestPercentage  decimal.Decimal `json:"lowest_percentage"`
	GradeDistribution map[string]int  `json:"grade_distribution"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
