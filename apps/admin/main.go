package main

import (
	"log"
	"os"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
	logsvc "github.com/Rwiron/saintmassori-sub002/services/logger"
	"github.com/Rwiron/saintmassori-sub002/storage/database"
	sqlxrepos "github.com/Rwiron/saintmassori-sub002/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// set up services
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	usrRepo := sqlxrepos.NewUserRepository(db)
	calendar := academic.NewService(sqlxrepos.NewAcademicRepository(db))
	directory := school.NewService(database.NewTransactor(db), sqlxrepos.NewSchoolRepository(db))
	tariffs := tariff.NewService(sqlxrepos.NewTariffRepository(db), directory)
	billingSvc := billing.NewService(billing.Deps{
		Conf:      conf,
		Logger:    appLogger,
		Tx:        database.NewTransactor(db),
		Repo:      sqlxrepos.NewBillingRepository(db),
		Calendar:  calendar,
		Directory: directory,
		Tariffs:   tariffs,
	})

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrSvc:  user.NewService(usrRepo),
		usrRepo: usrRepo,
		billing: billingSvc,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
