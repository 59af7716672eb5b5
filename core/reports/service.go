package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/accounting"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/results"
	"github.com/gladschool/portal/core/user"
)

var hundred = decimal.NewFromInt(100)

type (
	// Ledger is the read side of the accounting store.
	Ledger interface {
		GetFee(ctx context.Context, id int) (accounting.TuitionFee, error)
		QueryFees(ctx context.Context, filter accounting.FeeFilter, ordering []core.DBOrdering) ([]accounting.TuitionFee, error)
		QueryPayments(ctx context.Context, filter accounting.PaymentFilter) ([]accounting.Payment, error)
		QueryPayrolls(ctx context.Context, filter accounting.PayrollFilter) ([]accounting.Payroll, error)
		QueryExpenses(ctx context.Context, filter accounting.ExpenseFilter) ([]accounting.Expense, error)
	}

	// ResultSheets is the read side of the results store.
	ResultSheets interface {
		QueryResultSheets(ctx context.Context, filter results.SheetFilter) ([]results.ResultSheet, error)
	}

	Service struct {
		ledger   Ledger
		sheets   ResultSheets
		profiles profile.Repository
		calendar academic.Repository
	}
)

func NewService(ledger Ledger, sheets ResultSheets, profiles profile.Repository, calendar academic.Repository) *Service {
	return &Service{ledger: ledger, sheets: sheets, profiles: profiles, calendar: calendar}
}

func (svc *Service) check(actor user.User, cap user.Capability, p *Period) error {
	if err := user.Authorize(actor, cap); err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	p.From = core.DateOf(p.From)
	p.To = core.DateOf(p.To)
	return core.Validate.Struct(p)
}

func sumPayments(payments []accounting.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

func byMethod(payments []accounting.Payment) []MethodTotal {
	idx := make(map[string]*MethodTotal)
	for _, p := range payments {
		mt, ok := idx[p.Method]
		if !ok {
			mt = &MethodTotal{Method: p.Method, Total: decimal.Zero}
			idx[p.Method] = mt
		}
		mt.Total = mt.Total.Add(p.Amount)
		mt.Count++
	}
	out := make([]MethodTotal, 0, len(idx))
	for _, mt := range idx {
		mt.Total = core.Round2(mt.Total)
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return core.Round2(part.Div(whole).Mul(hundred))
}

// IncomeStatement compares fee revenue to expenses over the period.
func (svc *Service) IncomeStatement(ctx context.Context, actor user.User, p Period) (IncomeStatement, error) {
	if err := svc.check(actor, user.CanViewFinance, &p); err != nil {
		return IncomeStatement{}, err
	}
	payments, err := svc.ledger.QueryPayments(ctx, accounting.PaymentFilter{From: p.From, To: p.To})
	if err != nil {
		return IncomeStatement{}, err
	}
	expenses, err := svc.ledger.QueryExpenses(ctx, accounting.ExpenseFilter{From: p.From, To: p.To})
	if err != nil {
		return IncomeStatement{}, err
	}

	categories := make(map[string]decimal.Decimal, len(accounting.ExpenseCategories))
	for _, c := range accounting.ExpenseCategories {
		categories[c] = decimal.Zero
	}
	totalExpenses := decimal.Zero
	for _, e := range expenses {
		categories[e.Category] = categories[e.Category].Add(e.Amount)
		totalExpenses = totalExpenses.Add(e.Amount)
	}
	for c, v := range categories {
		categories[c] = core.Round2(v)
	}

	revenue := core.Round2(sumPayments(payments))
	net := revenue.Sub(core.Round2(totalExpenses))
	return IncomeStatement{
		PeriodName:        p.Name,
		TotalRevenue:      revenue,
		RevenueByMethod:   byMethod(payments),
		ExpenseCategories: categories,
		TotalExpenses:     core.Round2(totalExpenses),
		NetIncome:         net,
		ProfitMargin:      percentOf(net, revenue),
		GeneratedAt:       core.NowFunc().UTC(),
	}, nil
}

// BalanceSheet values collected cash up to `asOf` and the open receivables and payroll liabilities.
func (svc *Service) BalanceSheet(ctx context.Context, actor user.User, name string, asOf time.Time) (BalanceSheet, error) {
	if err := svc.check(actor, user.CanViewFinance, nil); err != nil {
		return BalanceSheet{}, err
	}
	asOf = core.DateOf(asOf)
	payments, err := svc.ledger.QueryPayments(ctx, accounting.PaymentFilter{To: asOf})
	if err != nil {
		return BalanceSheet{}, err
	}
	fees, err := svc.ledger.QueryFees(ctx, accounting.FeeFilter{Statuses: []string{accounting.StatusUnpaid, accounting.StatusPartial}}, nil)
	if err != nil {
		return BalanceSheet{}, err
	}
	unpaid := false
	payrolls, err := svc.ledger.QueryPayrolls(ctx, accounting.PayrollFilter{Paid: &unpaid})
	if err != nil {
		return BalanceSheet{}, err
	}

	receivables := decimal.Zero
	for _, f := range fees {
		receivables = receivables.Add(f.Outstanding())
	}
	liabilities := decimal.Zero
	for _, p := range payrolls {
		liabilities = liabilities.Add(p.Amount)
	}

	cash := core.Round2(sumPayments(payments))
	assets := cash.Add(core.Round2(receivables))
	return BalanceSheet{
		PeriodName:         name,
		AsOf:               asOf,
		CashOnHand:         cash,
		AccountsReceivable: core.Round2(receivables),
		TotalAssets:        assets,
		UnpaidPayroll:      core.Round2(liabilities),
		TotalLiabilities:   core.Round2(liabilities),
		NetEquity:          assets.Sub(core.Round2(liabilities)),
		GeneratedAt:        core.NowFunc().UTC(),
	}, nil
}

// CashFlow nets fee receipts against expenses and payroll settled during the period.
func (svc *Service) CashFlow(ctx context.Context, actor user.User, p Period) (CashFlow, error) {
	if err := svc.check(actor, user.CanViewFinance, &p); err != nil {
		return CashFlow{}, err
	}
	payments, err := svc.ledger.QueryPayments(ctx, accounting.PaymentFilter{From: p.From, To: p.To})
	if err != nil {
		return CashFlow{}, err
	}
	expenses, err := svc.ledger.QueryExpenses(ctx, accounting.ExpenseFilter{From: p.From, To: p.To})
	if err != nil {
		return CashFlow{}, err
	}
	paid := true
	payrolls, err := svc.ledger.QueryPayrolls(ctx, accounting.PayrollFilter{Paid: &paid, PaidFrom: p.From, PaidTo: p.To})
	if err != nil {
		return CashFlow{}, err
	}

	expenseTotal := decimal.Zero
	for _, e := range expenses {
		expenseTotal = expenseTotal.Add(e.Amount)
	}
	payrollTotal := decimal.Zero
	for _, pr := range payrolls {
		payrollTotal = payrollTotal.Add(pr.Amount)
	}

	in := core.Round2(sumPayments(payments))
	net := in.Sub(core.Round2(expenseTotal)).Sub(core.Round2(payrollTotal))
	return CashFlow{
		PeriodName:         p.Name,
		CashFromOperations: in,
		CashForExpenses:    core.Round2(expenseTotal),
		CashForPayroll:     core.Round2(payrollTotal),
		NetOperatingCash:   net,
		NetChangeInCash:    net,
		GeneratedAt:        core.NowFunc().UTC(),
	}, nil
}

// FeeCollection lists the period's payments with the state of the fees they settled.
// Due and outstanding totals count each fee once, however many payments it received.
func (svc *Service) FeeCollection(ctx context.Context, actor user.User, p Period) (FeeCollection, error) {
	if err := svc.check(actor, user.CanViewFinance, &p); err != nil {
		return FeeCollection{}, err
	}
	payments, err := svc.ledger.QueryPayments(ctx, accounting.PaymentFilter{From: p.From, To: p.To})
	if err != nil {
		return FeeCollection{}, err
	}

	rep := FeeCollection{
		PeriodName:       p.Name,
		Payments:         make([]FeePaymentLine, 0, len(payments)),
		TotalDue:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		StatusCounts:     map[string]int{accounting.StatusPaid: 0, accounting.StatusPartial: 0, accounting.StatusUnpaid: 0},
		PaymentMethods:   byMethod(payments),
		GeneratedAt:      core.NowFunc().UTC(),
	}

	fees := make(map[int]accounting.TuitionFee)
	students := make(map[int]profile.Student)
	classNames := make(map[int]string)
	type classAcc struct {
		students    map[int]bool
		outstanding decimal.Decimal
	}
	classes := make(map[string]*classAcc)
	var classOrder []string
	payingStudents := make(map[int]bool)

	for _, pmt := range payments {
		fee, seen := fees[pmt.TuitionFeeID]
		if !seen {
			if fee, err = svc.ledger.GetFee(ctx, pmt.TuitionFeeID); err != nil {
				return FeeCollection{}, err
			}
			fees[fee.ID] = fee
		}
		student, ok := students[fee.StudentID]
		if !ok {
			if student, err = svc.profiles.GetStudent(ctx, fee.StudentID); err != nil && err != profile.ErrStudentNotFound {
				return FeeCollection{}, err
			}
			students[fee.StudentID] = student
		}
		className := svc.className(ctx, student.ClassID, classNames)

		rep.Payments = append(rep.Payments, FeePaymentLine{
			PaymentID:   pmt.ID,
			StudentID:   fee.StudentID,
			StudentName: student.FullName(),
			ClassName:   className,
			FeeID:       fee.ID,
			AmountDue:   fee.AmountDue,
			AmountPaid:  pmt.Amount,
			Outstanding: fee.Outstanding(),
			PaymentDate: pmt.PaymentDate,
			Status:      fee.Status,
		})
		rep.TotalPaid = rep.TotalPaid.Add(pmt.Amount)

		if seen {
			continue
		}
		rep.TotalDue = rep.TotalDue.Add(fee.AmountDue)
		rep.TotalOutstanding = rep.TotalOutstanding.Add(fee.Outstanding())
		rep.StatusCounts[fee.Status]++
		if fee.Status == accounting.StatusPaid || fee.Status == accounting.StatusPartial {
			payingStudents[fee.StudentID] = true
		}
		acc, ok := classes[className]
		if !ok {
			acc = &classAcc{students: make(map[int]bool), outstanding: decimal.Zero}
			classes[className] = acc
			classOrder = append(classOrder, className)
		}
		acc.students[fee.StudentID] = true
		acc.outstanding = acc.outstanding.Add(fee.Outstanding())
	}

	rep.TotalDue = core.Round2(rep.TotalDue)
	rep.TotalOutstanding = core.Round2(rep.TotalOutstanding)
	rep.CollectionRate = percentOf(rep.TotalPaid, rep.TotalDue)
	rep.TotalPaid = core.Round2(rep.TotalPaid)
	rep.StudentsPaid = len(payingStudents)
	rep.TotalStudents = len(students)
	if n := len(rep.Payments); n > 0 {
		rep.AveragePayment = core.Round2(rep.TotalPaid.Div(decimal.NewFromInt(int64(n))))
	} else {
		rep.AveragePayment = decimal.Zero
	}

	sort.Strings(classOrder)
	rep.OutstandingByClass = make([]ClassOutstanding, 0, len(classOrder))
	for _, name := range classOrder {
		acc := classes[name]
		n := len(acc.students)
		avg := decimal.Zero
		if n > 0 {
			avg = core.Round2(acc.outstanding.Div(decimal.NewFromInt(int64(n))))
		}
		rep.OutstandingByClass = append(rep.OutstandingByClass, ClassOutstanding{
			ClassName:          name,
			StudentCount:       n,
			TotalOutstanding:   core.Round2(acc.outstanding),
			AverageOutstanding: avg,
		})
	}
	return rep, nil
}

func (svc *Service) className(ctx context.Context, classID int, cache map[int]string) string {
	if name, ok := cache[classID]; ok {
		return name
	}
	name := "N/A"
	if classID != 0 {
		if c, err := svc.calendar.GetClass(ctx, classID); err == nil {
			name = c.Name
		}
	}
	cache[classID] = name
	return name
}

// Expenses breaks the period's spending down by category.
func (svc *Service) Expenses(ctx context.Context, actor user.User, p Period) (ExpenseReport, error) {
	if err := svc.check(actor, user.CanViewFinance, &p); err != nil {
		return ExpenseReport{}, err
	}
	expenses, err := svc.ledger.QueryExpenses(ctx, accounting.ExpenseFilter{From: p.From, To: p.To})
	if err != nil {
		return ExpenseReport{}, err
	}

	totals := make(map[string]decimal.Decimal, len(accounting.ExpenseCategories))
	total := decimal.Zero
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
		total = total.Add(e.Amount)
	}
	rep := ExpenseReport{
		PeriodName:  p.Name,
		Total:       core.Round2(total),
		Count:       len(expenses),
		ByCategory:  make([]CategoryTotal, 0, len(accounting.ExpenseCategories)),
		GeneratedAt: core.NowFunc().UTC(),
	}
	for _, c := range accounting.ExpenseCategories {
		rep.ByCategory = append(rep.ByCategory, CategoryTotal{
			Category:   c,
			Amount:     core.Round2(totals[c]),
			Percentage: percentOf(totals[c], total),
		})
	}
	return rep, nil
}

// ClassResultSummary describes how a class did in a term, from its compiled result sheets.
func (svc *Service) ClassResultSummary(ctx context.Context, actor user.User, period academic.Period, classID int) (ClassResultSummary, error) {
	if err := svc.check(actor, user.CanViewResults, nil); err != nil {
		return ClassResultSummary{}, err
	}
	if err := academic.CheckPeriod(ctx, svc.calendar, period); err != nil {
		return ClassResultSummary{}, err
	}
	sheets, err := svc.sheets.QueryResultSheets(ctx, results.SheetFilter{SessionID: period.SessionID, TermID: period.TermID, ClassID: classID})
	if err != nil {
		return ClassResultSummary{}, err
	}

	sum := ClassResultSummary{
		SessionID:         period.SessionID,
		TermID:            period.TermID,
		ClassID:           classID,
		Sheets:            len(sheets),
		AveragePercentage: decimal.Zero,
		HighestPercentage: decimal.Zero,
		LowestPercentage:  decimal.Zero,
		GradeDistribution: map[string]int{"A": 0, "B": 0, "C": 0, "D": 0, "F": 0},
		GeneratedAt:       core.NowFunc().UTC(),
	}
	total := decimal.Zero
	for i, rs := range sheets {
		if rs.IsPublished {
			sum.Published++
		}
		if rs.OverallGrade != "" {
			sum.GradeDistribution[rs.OverallGrade]++
		}
		total = total.Add(rs.OverallPercentage)
		if i == 0 || rs.OverallPercentage.GreaterThan(sum.HighestPercentage) {
			sum.HighestPercentage = rs.OverallPercentage
		}
		if i == 0 || rs.OverallPercentage.LessThan(sum.LowestPercentage) {
			sum.LowestPercentage = rs.OverallPercentage
		}
	}
	if len(sheets) > 0 {
		sum.AveragePercentage = core.Round2(total.Div(decimal.NewFromInt(int64(len(sheets)))))
	}
	return sum, nil
}
