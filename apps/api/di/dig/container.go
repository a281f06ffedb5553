package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/Rwiron/saintmassori-sub002/apps/api/echo"
	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
	emailsvc "github.com/Rwiron/saintmassori-sub002/services/email"
	exportsvc "github.com/Rwiron/saintmassori-sub002/services/export"
	logsvc "github.com/Rwiron/saintmassori-sub002/services/logger"
	"github.com/Rwiron/saintmassori-sub002/storage/cache"
	"github.com/Rwiron/saintmassori-sub002/storage/database"
	sqlxrepos "github.com/Rwiron/saintmassori-sub002/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParam gathers what the HTTP server needs.
type ServerParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Users      *user.Service
	Calendar   *academic.Service
	Directory  *school.Service
	Tariffs    *tariff.Service
	Billing    *billing.Service
	Export     *exportsvc.Service
}

// BillingParam gathers what the billing service needs.
type BillingParam struct {
	dig.In
	Conf      *core.Config
	Logger    core.Logger
	Tx        core.Transactor
	Repo      billing.Repository
	Calendar  *academic.Service
	Directory *school.Service
	Tariffs   *tariff.Service
	Cache     billing.BalanceCache `optional:"true"`
	MailSvc   core.EmailService
}

func newRollbarLogger(conf *core.Config, std *log.Logger) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, log.New(os.Stdout, "API : ", log.LstdFlags))
}

func newDBLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile))
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	tariff.InitValidators(validate, translator)
	return validate
}

// newBalanceCache connects to Redis when an address is configured; balances are not cached otherwise.
func newBalanceCache(conf *core.Config, logger core.Logger) billing.BalanceCache {
	if conf.Redis.Address == "" {
		return nil
	}
	client, err := cache.Open(context.Background(), conf.Redis)
	if err != nil {
		logger.Error(fmt.Sprintf("balance cache disabled: %v", err), err)
		return nil
	}
	return cache.NewRedisCache(client, conf.Redis.BalanceTTL)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newBillingService(p BillingParam) *billing.Service {
	return billing.NewService(billing.Deps{
		Conf:      p.Conf,
		Logger:    p.Logger,
		Tx:        p.Tx,
		Repo:      p.Repo,
		Calendar:  p.Calendar,
		Directory: p.Directory,
		Tariffs:   p.Tariffs,
		Cache:     p.Cache,
		MailSvc:   p.MailSvc,
	})
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Users:      p.Users,
		Calendar:   p.Calendar,
		Directory:  p.Directory,
		Tariffs:    p.Tariffs,
		Billing:    p.Billing,
		Export:     p.Export,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(newBalanceCache))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewAcademicRepository, dig.As(new(academic.Repository))))
	must(c.Provide(sqlxrepos.NewSchoolRepository, dig.As(new(school.Repository))))
	must(c.Provide(sqlxrepos.NewTariffRepository, dig.As(new(tariff.Repository))))
	must(c.Provide(sqlxrepos.NewBillingRepository, dig.As(new(billing.Repository))))

	must(c.Provide(user.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(tariff.NewService))
	must(c.Provide(newBillingService))
	must(c.Provide(exportsvc.NewService))
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
