package logsvc

import (
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/user"
)

// RollbarLogger reports to Rollbar and echoes everything through a StdLogger.
type RollbarLogger struct {
	echo  *StdLogger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetServerRoot(conf.WorkDir)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{echo: NewStdLogger(std, conf.Debug), debug: conf.Debug}
}

// report converts the logger arguments into what rollbar.Log understands:
// the acting user.User becomes the Rollbar person and a core.Event becomes custom data.
func report(level, msg string, args []interface{}) {
	items := make([]interface{}, 0, len(args)+1)
	items = append(items, msg)
	var person bool
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if !person {
				rollbar.SetPerson(strconv.Itoa(v.ID), v.Username, v.Email)
				person = true
			}
		case core.Event:
			items = append(items, map[string]interface{}{
				"event":       v.Name,
				"actor_id":    v.ActorID,
				"occurred_at": v.OccurredAt,
			})
		default:
			items = append(items, arg)
		}
	}
	if !person {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, items...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	report(rollbar.DEBUG, msg, args)
	l.echo.Debug(msg, args...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	report(rollbar.INFO, msg, args)
	l.echo.Info(msg, args...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	report(rollbar.WARN, msg, args)
	l.echo.Warn(msg, args...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	report(rollbar.ERR, msg, args)
	l.echo.Error(msg, args...)
}

// Fatal waits for queued reports before exiting.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.echo.Fatal(msg, args...)
}
