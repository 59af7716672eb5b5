package main

import (
	"context"
	"time"

	"github.com/gladschool/portal/core/accounting"
)

func (cli *commandLine) addFee(ctx context.Context, args []string) error {
	cmd := cli.newCommand("fee")
	studentID := cmd.Int("student", 0, "Student ID.")
	sessionID := cmd.Int("session", 0, "Session ID.")
	termID := cmd.Int("term", 0, "Term ID.")
	amount := cmd.String("amount", "", "Amount due.")
	due := cmd.String("due", "", "Due date (YYYY-MM-DD).")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *studentID == 0 || *sessionID == 0 || *termID == 0 || *amount == "" {
		return cmd.usage()
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	nf := accounting.NewFee{StudentID: *studentID, SessionID: *sessionID, TermID: *termID}
	if nf.AmountDue, err = parseAmount("amount", *amount); err != nil {
		return err
	}
	if nf.DueDate, err = parseDate("due", *due); err != nil {
		return err
	}
	fee, err := cli.ledger.CreateFee(ctx, actor, nf)
	if err != nil {
		return err
	}
	return cli.print(fee)
}

func (cli *commandLine) pay(ctx context.Context, args []string) error {
	cmd := cli.newCommand("pay")
	feeID := cmd.Int("fee", 0, "Tuition fee ID.")
	amount := cmd.String("amount", "", "Amount paid.")
	date := cmd.String("date", "", "Payment date (YYYY-MM-DD), defaults to today.")
	method := cmd.String("method", "cash", "One of cash, bank, card, online.")
	receipt := cmd.String("receipt", "", "Receipt number, generated when empty.")
	reference := cmd.String("reference", "", "Bank or gateway reference.")
	notes := cmd.String("notes", "", "Free-form notes.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *feeID == 0 || *amount == "" {
		return cmd.usage()
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	np := accounting.NewPayment{Method: *method, ReceiptNumber: *receipt, Reference: *reference, Notes: *notes}
	if np.Amount, err = parseAmount("amount", *amount); err != nil {
		return err
	}
	if np.PaymentDate, err = parseDate("date", *date); err != nil {
		return err
	}
	if np.PaymentDate.IsZero() {
		np.PaymentDate = time.Now()
	}
	pmt, fee, err := cli.ledger.ApplyPayment(ctx, actor, *feeID, np)
	if err != nil {
		return err
	}
	return cli.print(struct {
		Payment accounting.Payment    `json:"payment"`
		Fee     accounting.TuitionFee `json:"fee"`
	}{pmt, fee})
}

func (cli *commandLine) payroll(ctx context.Context, args []string) error {
	cmd := cli.newCommand("payroll")
	markPaid := cmd.Int("mark-paid", 0, "Payroll entry ID to mark as paid.")
	staffID := cmd.Int("staff", 0, "Staff ID.")
	month := cmd.Int("month", 0, "Month (1-12).")
	year := cmd.Int("year", 0, "Year.")
	amount := cmd.String("amount", "", "Amount.")
	notes := cmd.String("notes", "", "Free-form notes.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	if *markPaid != 0 {
		p, err := cli.ledger.MarkPayrollPaid(ctx, actor, *markPaid)
		if err != nil {
			return err
		}
		return cli.print(p)
	}
	if *staffID == 0 || *amount == "" {
		return cmd.usage()
	}

	np := accounting.NewPayroll{StaffID: *staffID, Month: *month, Year: *year, Notes: *notes}
	if np.Amount, err = parseAmount("amount", *amount); err != nil {
		return err
	}
	p, err := cli.ledger.CreatePayroll(ctx, actor, np)
	if err != nil {
		return err
	}
	return cli.print(p)
}

func (cli *commandLine) addExpense(ctx context.Context, args []string) error {
	cmd := cli.newCommand("expense")
	desc := cmd.String("description", "", "What the money was spent on.")
	amount := cmd.String("amount", "", "Amount.")
	date := cmd.String("date", "", "Expense date (YYYY-MM-DD), defaults to today.")
	category := cmd.String("category", "other", "One of supplies, maintenance, salary, utility, other.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *desc == "" || *amount == "" {
		return cmd.usage()
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	ne := accounting.NewExpense{Description: *desc, Category: *category}
	if ne.Amount, err = parseAmount("amount", *amount); err != nil {
		return err
	}
	if ne.Date, err = parseDate("date", *date); err != nil {
		return err
	}
	if ne.Date.IsZero() {
		ne.Date = time.Now()
	}
	e, err := cli.ledger.CreateExpense(ctx, actor, ne)
	if err != nil {
		return err
	}
	return cli.print(e)
}
