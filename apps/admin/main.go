package main

import (
	"errors"
	"log"
	"os"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/accounting"
	"github.com/gladschool/portal/core/reports"
	"github.com/gladschool/portal/core/results"
	"github.com/gladschool/portal/core/user"
	emailsvc "github.com/gladschool/portal/services/email"
	eventsvc "github.com/gladschool/portal/services/events"
	logsvc "github.com/gladschool/portal/services/logger"
	"github.com/gladschool/portal/storage/database"
	sqlxrepos "github.com/gladschool/portal/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.New(std, core.Conf)

	// set up DB
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		errAndDie(logger, database.CreateIfNotExist(core.Conf))
	}
	db, err := database.Open(core.Conf)
	errAndDie(logger, err)
	defer db.Close()

	events, closeEvents, err := eventsvc.New(core.Conf)
	errAndDie(logger, err)
	defer func() {
		if err := closeEvents(); err != nil {
			logger.Error("closing event publisher", err)
		}
	}()
	mailSvc := emailsvc.New(logger)

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(db)
	profiles := sqlxrepos.NewProfileRepository(db)
	calendar := sqlxrepos.NewAcademicRepository(db)
	ledger := sqlxrepos.NewAccountingRepository(db)
	resultsRepo := sqlxrepos.NewResultsRepository(db)

	cli := commandLine{
		db:       db.DB,
		users:    user.NewService(usrRepo),
		profiles: profiles,
		calendar: academic.NewService(calendar),
		ledger:   accounting.NewService(ledger, calendar, profiles, mailSvc, events, logger),
		results:  results.NewService(resultsRepo, calendar, profiles, mailSvc, events, logger),
		reports:  reports.NewService(ledger, resultsRepo, profiles, calendar),
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			std.Printf("\nerror: %s\n", err)
			for _, fe := range core.ValidationFields(err) {
				std.Printf("  %s: %s\n", fe.Field, fe.Error)
			}
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error())
	}
}
