// Package testutil wires the services on the in-memory store (or postgres) and creates fixtures for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
	emailsvc "github.com/Rwiron/saintmassori-sub002/services/email"
	logsvc "github.com/Rwiron/saintmassori-sub002/services/logger"
	"github.com/Rwiron/saintmassori-sub002/storage/database"
	inmemdb "github.com/Rwiron/saintmassori-sub002/storage/database/inmem"
	sqlxrepos "github.com/Rwiron/saintmassori-sub002/storage/database/sqlx"
)

// DatabaseURLEnv names the variable holding the postgres URL of the tests that need a real database.
const DatabaseURLEnv = "TEST_DATABASE_URL"

var tables = []string{
	"bill_item_payment", "payment", "bill_item", "bill", "billing_counter",
	"class_tariff", "tariff", "student", "class", "grade", "term", "academic_year", `"user"`,
}

type (
	Options struct {
		Conf  *core.Config
		Now   func() time.Time
		Cache billing.BalanceCache
		// SQL backs the services with postgres instead of the in-memory store.
		SQL *sqlx.DB
	}

	// Services holds every service of the app, backed by one store.
	Services struct {
		Conf      *core.Config
		Logger    core.Logger
		UserRepo  user.Repository
		Mail      *emailsvc.ConsoleServiceMock
		Users     *user.Service
		Calendar  *academic.Service
		Directory *school.Service
		Tariffs   *tariff.Service
		Billing   *billing.Service
	}
)

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewServices(opts ...Options) Services {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	conf := opt.Conf
	if conf == nil {
		conf = core.NewTestConfig()
	}
	logger := NewLogger(conf)
	core.ParseEmailTemplates(logger)

	var (
		tx          core.Transactor
		userRepo    user.Repository
		yearRepo    academic.Repository
		schoolRepo  school.Repository
		tariffRepo  tariff.Repository
		billingRepo billing.Repository
	)
	if opt.SQL != nil {
		tx = database.NewTransactor(opt.SQL)
		userRepo = sqlxrepos.NewUserRepository(opt.SQL)
		yearRepo = sqlxrepos.NewAcademicRepository(opt.SQL)
		schoolRepo = sqlxrepos.NewSchoolRepository(opt.SQL)
		tariffRepo = sqlxrepos.NewTariffRepository(opt.SQL)
		billingRepo = sqlxrepos.NewBillingRepository(opt.SQL)
	} else {
		db := inmemdb.Open()
		tx = db
		userRepo = inmemdb.NewUserRepository(db)
		yearRepo = inmemdb.NewAcademicRepository(db)
		schoolRepo = inmemdb.NewSchoolRepository(db)
		tariffRepo = inmemdb.NewTariffRepository(db)
		billingRepo = inmemdb.NewBillingRepository(db)
	}

	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	calendar := academic.NewService(yearRepo)
	directory := school.NewService(tx, schoolRepo)
	tariffs := tariff.NewService(tariffRepo, directory)

	return Services{
		Conf:      conf,
		Logger:    logger,
		UserRepo:  userRepo,
		Mail:      mail,
		Users:     user.NewService(userRepo),
		Calendar:  calendar,
		Directory: directory,
		Tariffs:   tariffs,
		Billing: billing.NewService(billing.Deps{
			Conf:      conf,
			Logger:    logger,
			Tx:        tx,
			Repo:      billingRepo,
			Calendar:  calendar,
			Directory: directory,
			Tariffs:   tariffs,
			Cache:     opt.Cache,
			MailSvc:   mail,
			Now:       opt.Now,
		}),
	}
}

// OpenDB connects to the database named by TEST_DATABASE_URL and migrates it; the tables are emptied
// when the test ends. The test is skipped when the variable is not set.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv(DatabaseURLEnv)
	if url == "" {
		t.Skipf("%s is not set", DatabaseURLEnv)
	}

	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = db.Ping(); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() {
		for _, table := range tables {
			if _, err := db.Exec("DELETE FROM " + table); err != nil {
				t.Errorf("emptying %s: %v", table, err)
			}
		}
		_ = db.Close()
	})
	return db
}

// NewValidator returns a validator with every custom rule of the app registered on it.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	tariff.InitValidators(validate, translator)
	return validate, translator
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Amount parses a decimal amount, e.g. "150.00".
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateYear creates an academic year open for billing.
func CreateYear(t *testing.T, svc *academic.Service, name string, start, end time.Time) academic.AcademicYear {
	year, err := svc.CreateYear(context.Background(), academic.NewAcademicYear{Name: name, StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("CreateYear() failed: %v", err)
	}
	return year
}

// CreateTerm creates a term open for billing.
func CreateTerm(t *testing.T, svc *academic.Service, yearID, name string, seq int, start, end time.Time) academic.Term {
	term, err := svc.CreateTerm(context.Background(), yearID, academic.NewTerm{Name: name, Sequence: seq, StartDate: start, EndDate: end})
	if err != nil {
		t.Fatalf("CreateTerm() failed: %v", err)
	}
	return term
}

func CreateGrade(t *testing.T, svc *school.Service, name string, level int) school.Grade {
	grade, err := svc.CreateGrade(context.Background(), school.NewGrade{Name: name, Level: level})
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return grade
}

func CreateClass(t *testing.T, svc *school.Service, gradeID, name string, capacity int) school.Class {
	class, err := svc.CreateClass(context.Background(), school.NewClass{GradeID: gradeID, Name: name, Capacity: capacity})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

// CreateStudent enrolls an active student in the class; an empty classID leaves them unassigned.
func CreateStudent(t *testing.T, svc *school.Service, classID, firstName, lastName, guardianEmail string) school.Student {
	student, err := svc.Enroll(context.Background(), school.NewStudent{
		FirstName:     firstName,
		LastName:      lastName,
		ClassID:       classID,
		GuardianName:  "Guardian of " + firstName,
		GuardianEmail: guardianEmail,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return student
}

// CreateTariff creates an active tariff and, when classIDs are given, assigns it to those classes.
func CreateTariff(
	t *testing.T,
	svc *tariff.Service,
	name, amount string,
	freq tariff.Frequency,
	typ tariff.Type,
	classIDs ...string,
) tariff.Tariff {
	ctx := context.Background()
	trf, err := svc.Create(ctx, tariff.NewTariff{
		Name:      name,
		Amount:    Amount(amount),
		Frequency: freq,
		Type:      typ,
	})
	if err != nil {
		t.Fatalf("CreateTariff() failed: %v", err)
	}
	for _, classID := range classIDs {
		if _, err = svc.AssignToClass(ctx, classID, trf.ID, true); err != nil {
			t.Fatalf("CreateTariff() failed: %v", err)
		}
	}
	return trf
}
