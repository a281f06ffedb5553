package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Close() {
	rollbar.Wait()
}

type coder interface {
	Code() string
}

// entry is a log call split into what rollbar and the std logger each want.
type entry struct {
	actor  *user.User
	errs   []error
	extras map[string]interface{}
	other  []interface{}
}

// expected args: error, map[string]interface{}, user.User (the acting staff member)
func newEntry(args []interface{}) entry {
	var e entry
	for _, arg := range args {
		switch val := arg.(type) {
		case user.User:
			if e.actor == nil {
				usr := val
				e.actor = &usr
			}
		case error:
			e.errs = append(e.errs, val)
			if c, ok := val.(coder); ok {
				e.extra("code", c.Code())
			}
		case map[string]interface{}:
			for k, v := range val {
				e.extra(k, v)
			}
		default:
			e.other = append(e.other, arg)
		}
	}
	return e
}

func (e *entry) extra(key string, val interface{}) {
	if e.extras == nil {
		e.extras = make(map[string]interface{})
	}
	e.extras[key] = val
}

// rollbar keeps a single error and a single extras map per report.
func (e entry) rollbarArgs(msg string) []interface{} {
	args := []interface{}{msg}
	if len(e.errs) > 0 {
		args = append(args, e.errs[0])
	}
	if len(e.extras) > 0 {
		args = append(args, e.extras)
	}
	return args
}

func (l RollbarLogger) report(level, msg string, args []interface{}) entry {
	e := newEntry(args)
	if e.actor != nil {
		rollbar.SetPerson(e.actor.ID, e.actor.Username, e.actor.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, e.rollbarArgs(msg)...)

	l.std.Println(msg)
	for _, err := range e.errs {
		l.std.Printf("%+v\n", err)
	}
	if len(e.extras) > 0 {
		l.std.Printf("%v\n", e.extras)
	}
	for _, arg := range e.other {
		l.std.Printf("%+v\n", arg)
	}
	return e
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.report(rollbar.DEBUG, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
