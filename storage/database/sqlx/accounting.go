package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/accounting"
)

const (
	feeColumns = `id, student_id, session_id, term_id, amount_due, amount_paid, due_date, status, paid_date,
		created_by, created_at, updated_at`
	paymentColumns = `id, tuition_fee_id, amount, payment_date, method, receipt_number, reference, notes,
		created_by, created_at`
	payrollColumns = `id, staff_id, month, year, amount, paid, paid_date, notes, created_by, created_at`
	expenseColumns = `id, description, amount, date, category, created_by, created_at`
)

var feeOrderings = map[string]string{
	"id":          "id",
	"student_id":  "student_id",
	"due_date":    "due_date",
	"created_at":  "created_at",
	"amount_due":  "amount_due",
	"amount_paid": "amount_paid",
	"status":      "status",
}

type accountingRepository struct {
	db   *sqlx.DB
	exec dbExecutor
}

var _ accounting.Repository = (*accountingRepository)(nil)

func NewAccountingRepository(db *sqlx.DB) accounting.Repository {
	return &accountingRepository{db: db, exec: db}
}

func (repo *accountingRepository) WithinTx(ctx context.Context, fn func(tx accounting.Repository) error) error {
	return withinTx(ctx, repo.db, repo.exec, func(tx *sqlx.Tx) error {
		return fn(&accountingRepository{db: repo.db, exec: tx})
	})
}

// Tuition fees

func (repo *accountingRepository) CreateFee(ctx context.Context, fee accounting.TuitionFee) (accounting.TuitionFee, error) {
	q := repo.exec.Rebind(`INSERT INTO tuition_fees
		(student_id, session_id, term_id, amount_due, amount_paid, due_date, status, paid_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q,
		fee.StudentID, fee.SessionID, fee.TermID, fee.AmountDue, fee.AmountPaid, fee.DueDate, fee.Status, fee.PaidDate,
		fee.CreatedBy, fee.CreatedAt, fee.UpdatedAt,
	).Scan(&fee.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return accounting.TuitionFee{}, accounting.ErrFeeExists
		}
		return accounting.TuitionFee{}, errors.Wrap(err, "inserting tuition fee")
	}
	return fee, nil
}

func (repo *accountingRepository) getFee(ctx context.Context, id int, lock bool) (accounting.TuitionFee, error) {
	q := `SELECT ` + feeColumns + ` FROM tuition_fees WHERE id = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	var fee accounting.TuitionFee
	if err := repo.exec.GetContext(ctx, &fee, repo.exec.Rebind(q), id); err != nil {
		return accounting.TuitionFee{}, notFound(err, accounting.ErrFeeNotFound)
	}
	return fee, nil
}

func (repo *accountingRepository) GetFee(ctx context.Context, id int) (accounting.TuitionFee, error) {
	return repo.getFee(ctx, id, false)
}

func (repo *accountingRepository) LockFee(ctx context.Context, id int) (accounting.TuitionFee, error) {
	return repo.getFee(ctx, id, true)
}

func (repo *accountingRepository) QueryFees(ctx context.Context, filter accounting.FeeFilter, ordering []core.DBOrdering) ([]accounting.TuitionFee, error) {
	var w where
	if filter.StudentID != 0 {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.SessionID != 0 {
		w.add("session_id = ?", filter.SessionID)
	}
	if filter.TermID != 0 {
		w.add("term_id = ?", filter.TermID)
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", pq.Array(filter.Statuses))
	}
	if !filter.DueFrom.IsZero() {
		w.add("due_date >= ?", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		w.add("due_date <= ?", filter.DueTo)
	}
	fees := make([]accounting.TuitionFee, 0)
	err := selectWhere(ctx, repo.exec, &fees, `SELECT `+feeColumns+` FROM tuition_fees`, &w, core.OrderBy(ordering, feeOrderings, "id ASC"))
	if err != nil {
		return nil, errors.Wrap(err, "querying tuition fees")
	}
	return fees, nil
}

// AddFeePayment increments amount_paid in SQL; the guard in the WHERE clause refuses to pass amount_due
// even if the row changed since it was read.
func (repo *accountingRepository) AddFeePayment(ctx context.Context, next accounting.TuitionFee, amount decimal.Decimal) (accounting.TuitionFee, error) {
	q := repo.exec.Rebind(`UPDATE tuition_fees
		SET amount_paid = amount_paid + ?, status = ?, paid_date = ?, updated_at = ?
		WHERE id = ? AND amount_paid + ? <= amount_due
		RETURNING ` + feeColumns)
	var fee accounting.TuitionFee
	err := repo.exec.GetContext(ctx, &fee, q, amount, next.Status, next.PaidDate, next.UpdatedAt, next.ID, amount)
	switch {
	case errors.Is(err, sql.ErrNoRows), pqCode(err) == pqCheckViolation:
		return accounting.TuitionFee{}, accounting.ErrBalanceChanged
	case err != nil:
		return accounting.TuitionFee{}, errors.Wrap(err, "applying payment to tuition fee")
	}
	return fee, nil
}

func (repo *accountingRepository) DeleteFee(ctx context.Context, id int) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(`DELETE FROM tuition_fees WHERE id = ?`), id)
	if pqCode(err) == pqForeignKeyViolation {
		return accounting.ErrFeeHasPayments
	}
	return rowsAffected(res, err, accounting.ErrFeeNotFound)
}

// Payments

func (repo *accountingRepository) CreatePayment(ctx context.Context, p accounting.Payment) (accounting.Payment, error) {
	q := repo.exec.Rebind(`INSERT INTO payments
		(tuition_fee_id, amount, payment_date, method, receipt_number, reference, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q,
		p.TuitionFeeID, p.Amount, p.PaymentDate, p.Method, p.ReceiptNumber, p.Reference, p.Notes, p.CreatedBy, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		switch pqCode(err) {
		case pqUniqueViolation:
			return accounting.Payment{}, accounting.ErrReceiptExists
		case pqForeignKeyViolation:
			return accounting.Payment{}, accounting.ErrFeeNotFound
		}
		return accounting.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo *accountingRepository) GetPayment(ctx context.Context, id int) (accounting.Payment, error) {
	var p accounting.Payment
	err := repo.exec.GetContext(ctx, &p, repo.exec.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`), id)
	if err != nil {
		return accounting.Payment{}, notFound(err, accounting.ErrPaymentNotFound)
	}
	return p, nil
}

func (repo *accountingRepository) QueryPayments(ctx context.Context, filter accounting.PaymentFilter) ([]accounting.Payment, error) {
	var w where
	if filter.TuitionFeeID != 0 {
		w.add("tuition_fee_id = ?", filter.TuitionFeeID)
	}
	if len(filter.Methods) > 0 {
		w.add("method = ANY(?)", pq.Array(filter.Methods))
	}
	if !filter.From.IsZero() {
		w.add("payment_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("payment_date <= ?", filter.To)
	}
	payments := make([]accounting.Payment, 0)
	if err := selectWhere(ctx, repo.exec, &payments, `SELECT `+paymentColumns+` FROM payments`, &w, ` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	return payments, nil
}

func (repo *accountingRepository) CountPayments(ctx context.Context, feeID int) (int, error) {
	var n int
	err := repo.exec.GetContext(ctx, &n, repo.exec.Rebind(`SELECT COUNT(*) FROM payments WHERE tuition_fee_id = ?`), feeID)
	return n, errors.Wrap(err, "counting payments")
}

// Payroll

func (repo *accountingRepository) CreatePayroll(ctx context.Context, p accounting.Payroll) (accounting.Payroll, error) {
	q := repo.exec.Rebind(`INSERT INTO payrolls (staff_id, month, year, amount, paid, paid_date, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q,
		p.StaffID, p.Month, p.Year, p.Amount, p.Paid, p.PaidDate, p.Notes, p.CreatedBy, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return accounting.Payroll{}, accounting.ErrPayrollExists
		}
		return accounting.Payroll{}, errors.Wrap(err, "inserting payroll")
	}
	return p, nil
}

func (repo *accountingRepository) getPayroll(ctx context.Context, id int, lock bool) (accounting.Payroll, error) {
	q := `SELECT ` + payrollColumns + ` FROM payrolls WHERE id = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	var p accounting.Payroll
	if err := repo.exec.GetContext(ctx, &p, repo.exec.Rebind(q), id); err != nil {
		return accounting.Payroll{}, notFound(err, accounting.ErrPayrollNotFound)
	}
	return p, nil
}

func (repo *accountingRepository) GetPayroll(ctx context.Context, id int) (accounting.Payroll, error) {
	return repo.getPayroll(ctx, id, false)
}

func (repo *accountingRepository) LockPayroll(ctx context.Context, id int) (accounting.Payroll, error) {
	return repo.getPayroll(ctx, id, true)
}

func (repo *accountingRepository) QueryPayrolls(ctx context.Context, filter accounting.PayrollFilter) ([]accounting.Payroll, error) {
	var w where
	if filter.StaffID != 0 {
		w.add("staff_id = ?", filter.StaffID)
	}
	if filter.Year != 0 {
		w.add("year = ?", filter.Year)
	}
	if filter.Month != 0 {
		w.add("month = ?", filter.Month)
	}
	if filter.Paid != nil {
		w.add("paid = ?", *filter.Paid)
	}
	if !filter.PaidFrom.IsZero() {
		w.add("paid_date >= ?", filter.PaidFrom)
	}
	if !filter.PaidTo.IsZero() {
		w.add("paid_date <= ?", filter.PaidTo)
	}
	payrolls := make([]accounting.Payroll, 0)
	if err := selectWhere(ctx, repo.exec, &payrolls, `SELECT `+payrollColumns+` FROM payrolls`, &w, ` ORDER BY year DESC, month DESC, id`); err != nil {
		return nil, errors.Wrap(err, "querying payrolls")
	}
	return payrolls, nil
}

func (repo *accountingRepository) MarkPayrollPaid(ctx context.Context, id int, paidOn null.Time) (accounting.Payroll, error) {
	q := repo.exec.Rebind(`UPDATE payrolls SET paid = TRUE, paid_date = ? WHERE id = ? AND NOT paid RETURNING ` + payrollColumns)
	var p accounting.Payroll
	if err := repo.exec.GetContext(ctx, &p, q, paidOn, id); err != nil {
		return accounting.Payroll{}, notFound(err, accounting.ErrPayrollPaid)
	}
	return p, nil
}

// Expenses

func (repo *accountingRepository) CreateExpense(ctx context.Context, e accounting.Expense) (accounting.Expense, error) {
	q := repo.exec.Rebind(`INSERT INTO expenses (description, amount, date, category, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q, e.Description, e.Amount, e.Date, e.Category, e.CreatedBy, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return accounting.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return e, nil
}

func (repo *accountingRepository) QueryExpenses(ctx context.Context, filter accounting.ExpenseFilter) ([]accounting.Expense, error) {
	var w where
	if len(filter.Categories) > 0 {
		w.add("category = ANY(?)", pq.Array(filter.Categories))
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To)
	}
	expenses := make([]accounting.Expense, 0)
	if err := selectWhere(ctx, repo.exec, &expenses, `SELECT `+expenseColumns+` FROM expenses`, &w, ` ORDER BY date DESC, id`); err != nil {
		return nil, errors.Wrap(err, "querying expenses")
	}
	return expenses, nil
}
