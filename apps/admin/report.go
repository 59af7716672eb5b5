package main

import (
	"context"
	"time"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/reports"
)

func (cli *commandLine) report(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	cmd := cli.newCommand("report " + args[0])
	name := cmd.String("name", "", "Period name printed on the report.")
	from := cmd.String("from", "", "First day (YYYY-MM-DD).")
	to := cmd.String("to", "", "Last day (YYYY-MM-DD), defaults to today.")
	asOf := cmd.String("asof", "", "Balance sheet date (YYYY-MM-DD), defaults to today.")
	sessionID := cmd.Int("session", 0, "Session ID, for class.")
	termID := cmd.Int("term", 0, "Term ID, for class.")
	classID := cmd.Int("class", 0, "Class ID, for class.")
	if err := cmd.parse(args[1:]); err != nil {
		return err
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	p := reports.Period{Name: *name}
	if p.From, err = parseDate("from", *from); err != nil {
		return err
	}
	if p.To, err = parseDate("to", *to); err != nil {
		return err
	}
	if p.To.IsZero() {
		p.To = time.Now()
	}

	var report interface{}
	switch args[0] {
	case "income":
		report, err = cli.reports.IncomeStatement(ctx, actor, p)
	case "balance":
		date, perr := parseDate("asof", *asOf)
		if perr != nil {
			return perr
		}
		if date.IsZero() {
			date = time.Now()
		}
		report, err = cli.reports.BalanceSheet(ctx, actor, *name, date)
	case "cashflow":
		report, err = cli.reports.CashFlow(ctx, actor, p)
	case "fees":
		report, err = cli.reports.FeeCollection(ctx, actor, p)
	case "expenses":
		report, err = cli.reports.Expenses(ctx, actor, p)
	case "class":
		if *classID == 0 {
			return cmd.usage()
		}
		period := academic.Period{SessionID: *sessionID, TermID: *termID}
		report, err = cli.reports.ClassResultSummary(ctx, actor, period, *classID)
	default:
		cli.printUsage()
		return errHelp
	}
	if err != nil {
		return err
	}
	return cli.print(report)
}
