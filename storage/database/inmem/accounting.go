package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/accounting"
)

type accountingRepository struct {
	db   *DB
	inTx bool
}

var _ accounting.Repository = (*accountingRepository)(nil)

func NewAccountingRepository(db *DB) accounting.Repository {
	return &accountingRepository{db: db}
}

func (repo *accountingRepository) WithinTx(_ context.Context, fn func(tx accounting.Repository) error) error {
	return repo.db.withinTx(repo.inTx, func() error {
		return fn(&accountingRepository{db: repo.db, inTx: true})
	})
}

// Tuition fees

func (repo *accountingRepository) CreateFee(_ context.Context, fee accounting.TuitionFee) (accounting.TuitionFee, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.fees {
			if other.StudentID == fee.StudentID && other.SessionID == fee.SessionID && other.TermID == fee.TermID {
				return accounting.ErrFeeExists
			}
		}
		fee.ID = t.nextID()
		t.fees[fee.ID] = fee
		return nil
	})
	if err != nil {
		return accounting.TuitionFee{}, err
	}
	return fee, nil
}

func (repo *accountingRepository) GetFee(_ context.Context, id int) (fee accounting.TuitionFee, err error) {
	err = accounting.ErrFeeNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.fees[id]; ok {
			fee, err = found, nil
		}
	})
	return fee, err
}

// LockFee is a plain read: transactions are already serialized.
func (repo *accountingRepository) LockFee(ctx context.Context, id int) (accounting.TuitionFee, error) {
	return repo.GetFee(ctx, id)
}

var feeSorters = map[string]func(a, b accounting.TuitionFee) int{
	"id":          func(a, b accounting.TuitionFee) int { return a.ID - b.ID },
	"student_id":  func(a, b accounting.TuitionFee) int { return a.StudentID - b.StudentID },
	"due_date":    func(a, b accounting.TuitionFee) int { return a.DueDate.Compare(b.DueDate) },
	"created_at":  func(a, b accounting.TuitionFee) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"amount_due":  func(a, b accounting.TuitionFee) int { return a.AmountDue.Cmp(b.AmountDue) },
	"amount_paid": func(a, b accounting.TuitionFee) int { return a.AmountPaid.Cmp(b.AmountPaid) },
	"status":      func(a, b accounting.TuitionFee) int { return strings.Compare(a.Status, b.Status) },
}

func (repo *accountingRepository) QueryFees(_ context.Context, filter accounting.FeeFilter, ordering []core.DBOrdering) (fees []accounting.TuitionFee, err error) {
	repo.db.read(func(t *tables) {
		fees = rows(t.fees, func(f accounting.TuitionFee) bool {
			switch {
			case filter.StudentID != 0 && f.StudentID != filter.StudentID,
				filter.SessionID != 0 && f.SessionID != filter.SessionID,
				filter.TermID != 0 && f.TermID != filter.TermID,
				len(filter.Statuses) > 0 && !contains(filter.Statuses, f.Status):
				return false
			}
			return inRange(f.DueDate, filter.DueFrom, filter.DueTo)
		})
	})

	if len(ordering) > 0 {
		sort.SliceStable(fees, func(i, j int) bool {
			for _, ord := range ordering {
				cmp, ok := feeSorters[ord.Field]
				if !ok {
					continue
				}
				if c := cmp(fees[i], fees[j]); c != 0 {
					return (c < 0) == ord.Ascending
				}
			}
			return false
		})
	}
	return fees, nil
}

func (repo *accountingRepository) AddFeePayment(_ context.Context, next accounting.TuitionFee, amount decimal.Decimal) (fee accounting.TuitionFee, err error) {
	err = repo.db.write(func(t *tables) error {
		cur, ok := t.fees[next.ID]
		if !ok {
			return accounting.ErrFeeNotFound
		}
		paid := cur.AmountPaid.Add(amount)
		if paid.GreaterThan(cur.AmountDue) {
			return accounting.ErrBalanceChanged
		}
		cur.AmountPaid = paid
		cur.Status = next.Status
		cur.PaidDate = next.PaidDate
		cur.UpdatedAt = next.UpdatedAt
		t.fees[cur.ID] = cur
		fee = cur
		return nil
	})
	return fee, err
}

func (repo *accountingRepository) DeleteFee(_ context.Context, id int) error {
	return repo.db.write(func(t *tables) error {
		if _, ok := t.fees[id]; !ok {
			return accounting.ErrFeeNotFound
		}
		delete(t.fees, id)
		return nil
	})
}

// Payments

func (repo *accountingRepository) CreatePayment(_ context.Context, p accounting.Payment) (accounting.Payment, error) {
	err := repo.db.write(func(t *tables) error {
		if _, ok := t.fees[p.TuitionFeeID]; !ok {
			return accounting.ErrFeeNotFound
		}
		for _, other := range t.payments {
			if other.ReceiptNumber == p.ReceiptNumber {
				return accounting.ErrReceiptExists
			}
		}
		p.ID = t.nextID()
		t.payments[p.ID] = p
		return nil
	})
	if err != nil {
		return accounting.Payment{}, err
	}
	return p, nil
}

func (repo *accountingRepository) GetPayment(_ context.Context, id int) (p accounting.Payment, err error) {
	err = accounting.ErrPaymentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.payments[id]; ok {
			p, err = found, nil
		}
	})
	return p, err
}

func (repo *accountingRepository) QueryPayments(_ context.Context, filter accounting.PaymentFilter) (payments []accounting.Payment, err error) {
	repo.db.read(func(t *tables) {
		payments = rows(t.payments, func(p accounting.Payment) bool {
			if filter.TuitionFeeID != 0 && p.TuitionFeeID != filter.TuitionFeeID {
				return false
			}
			if len(filter.Methods) > 0 && !contains(filter.Methods, p.Method) {
				return false
			}
			return inRange(p.PaymentDate, filter.From, filter.To)
		})
	})
	return payments, nil
}

func (repo *accountingRepository) CountPayments(_ context.Context, feeID int) (n int, err error) {
	repo.db.read(func(t *tables) {
		for _, p := range t.payments {
			if p.TuitionFeeID == feeID {
				n++
			}
		}
	})
	return n, nil
}

// Payroll

func (repo *accountingRepository) CreatePayroll(_ context.Context, p accounting.Payroll) (accounting.Payroll, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.payrolls {
			if other.StaffID == p.StaffID && other.Month == p.Month && other.Year == p.Year {
				return accounting.ErrPayrollExists
			}
		}
		p.ID = t.nextID()
		t.payrolls[p.ID] = p
		return nil
	})
	if err != nil {
		return accounting.Payroll{}, err
	}
	return p, nil
}

func (repo *accountingRepository) GetPayroll(_ context.Context, id int) (p accounting.Payroll, err error) {
	err = accounting.ErrPayrollNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.payrolls[id]; ok {
			p, err = found, nil
		}
	})
	return p, err
}

func (repo *accountingRepository) LockPayroll(ctx context.Context, id int) (accounting.Payroll, error) {
	return repo.GetPayroll(ctx, id)
}

func (repo *accountingRepository) QueryPayrolls(_ context.Context, filter accounting.PayrollFilter) (payrolls []accounting.Payroll, err error) {
	repo.db.read(func(t *tables) {
		payrolls = rows(t.payrolls, func(p accounting.Payroll) bool {
			switch {
			case filter.StaffID != 0 && p.StaffID != filter.StaffID,
				filter.Year != 0 && p.Year != filter.Year,
				filter.Month != 0 && p.Month != filter.Month,
				filter.Paid != nil && p.Paid != *filter.Paid:
				return false
			}
			if filter.PaidFrom.IsZero() && filter.PaidTo.IsZero() {
				return true
			}
			return p.PaidDate.Valid && inRange(p.PaidDate.Time, filter.PaidFrom, filter.PaidTo)
		})
	})
	return payrolls, nil
}

func (repo *accountingRepository) MarkPayrollPaid(_ context.Context, id int, paidOn null.Time) (p accounting.Payroll, err error) {
	err = repo.db.write(func(t *tables) error {
		cur, ok := t.payrolls[id]
		if !ok {
			return accounting.ErrPayrollNotFound
		}
		if cur.Paid {
			return accounting.ErrPayrollPaid
		}
		cur.Paid = true
		cur.PaidDate = paidOn
		t.payrolls[id] = cur
		p = cur
		return nil
	})
	return p, err
}

// Expenses

func (repo *accountingRepository) CreateExpense(_ context.Context, e accounting.Expense) (accounting.Expense, error) {
	_ = repo.db.write(func(t *tables) error {
		e.ID = t.nextID()
		t.expenses[e.ID] = e
		return nil
	})
	return e, nil
}

func (repo *accountingRepository) QueryExpenses(_ context.Context, filter accounting.ExpenseFilter) (expenses []accounting.Expense, err error) {
	repo.db.read(func(t *tables) {
		expenses = rows(t.expenses, func(e accounting.Expense) bool {
			if len(filter.Categories) > 0 && !contains(filter.Categories, e.Category) {
				return false
			}
			return inRange(e.Date, filter.From, filter.To)
		})
	})
	return expenses, nil
}
