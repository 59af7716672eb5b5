package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/accounting"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/reports"
	"github.com/gladschool/portal/core/results"
	"github.com/gladschool/portal/core/user"
)

const dateLayout = "2006-01-02"

var (
	errHelp = errors.New("help provided")

	// systemActor acts for the operator when no -as user is given.
	systemActor = user.User{Name: "admin CLI", Username: "admin-cli", Role: user.RoleAdmin, IsActive: true}
)

type commandLine struct {
	db       *sql.DB
	users    *user.Service
	profiles profile.Repository
	calendar *academic.Service
	ledger   *accounting.Service
	results  *results.Service
	reports  *reports.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprint(cli.out, `Usage:
  migrate COMMAND [ARGS]         - run a goose command (up, down, status, redo, up-to VERSION, ...)
  adduser -username -name -email -role
  student -admission -first -last [-email] [-class]
  staff -number -name [-email] [-position]
  session -name -start -end [-current]
  term -session -name [-start] [-end] [-current]
  subject -name -code
  class -name [-level] [-subjects 1,2,3]
  assessment -name -type -max -weight | -id ID -active=BOOL
  fee -student -session -term -amount -due
  pay -fee -amount [-date] -method [-receipt] [-reference] [-notes]
  payroll -staff -month -year -amount [-notes] | -mark-paid ID
  expense -description -amount -date -category
  results record|upload|compile|sheets|publish|unpublish|attendance [FLAGS]
  report income|balance|cashflow|fees|expenses|class [FLAGS]

Every command but migrate accepts -as USERNAME to act as that user.
`)
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()
	cmd, rest := args[1], args[2:]

	switch cmd {
	case "migrate":
		if len(rest) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(rest)
	case "adduser":
		return cli.addUser(ctx, rest)
	case "student":
		return cli.addStudent(ctx, rest)
	case "staff":
		return cli.addStaff(ctx, rest)
	case "session":
		return cli.addSession(ctx, rest)
	case "term":
		return cli.addTerm(ctx, rest)
	case "subject":
		return cli.addSubject(ctx, rest)
	case "class":
		return cli.addClass(ctx, rest)
	case "assessment":
		return cli.assessment(ctx, rest)
	case "fee":
		return cli.addFee(ctx, rest)
	case "pay":
		return cli.pay(ctx, rest)
	case "payroll":
		return cli.payroll(ctx, rest)
	case "expense":
		return cli.addExpense(ctx, rest)
	case "results":
		return cli.resultsCmd(ctx, rest)
	case "report":
		return cli.report(ctx, rest)
	default:
		cli.printUsage()
		return errHelp
	}
}

// command is a parsed subcommand with the acting user flag.
type command struct {
	*flag.FlagSet
	as *string
}

func (cli *commandLine) newCommand(name string) command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return command{FlagSet: fs, as: fs.String("as", "", "Username or email of the acting user.")}
}

func (c command) parse(args []string) error {
	if err := c.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (c command) usage() error {
	c.Usage()
	return errHelp
}

func (cli *commandLine) actor(ctx context.Context, c command) (user.User, error) {
	if *c.as == "" {
		return systemActor, nil
	}
	return cli.users.GetByUsernameOrEmail(ctx, *c.as)
}

func (cli *commandLine) print(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// flag value helpers

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("-%s: expected YYYY-MM-DD, got %q", field, s)
	}
	return t, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("-%s: invalid number %q", field, s)
	}
	return d, nil
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
