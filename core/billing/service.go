package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

type (
	Repository interface {
		// CreateBill stores the bill and its items; it fails with a DuplicateBillError
		// when a live bill already exists for the student and period.
		CreateBill(ctx context.Context, bill Bill, exec ...core.DBExecutor) (Bill, error)
		// GetBill returns the bill with its items, their payment history and the bill payments.
		// With forUpdate, the bill row is locked until the end of the transaction.
		GetBill(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (Bill, error)
		// QueryBills returns the bills matching filter, without items nor payments.
		QueryBills(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Bill, error)
		// UpdateBill saves the bill and its items if its version did not change since it was read.
		UpdateBill(ctx context.Context, bill Bill, exec ...core.DBExecutor) (Bill, error)
		// CreatePayment stores the payment and its item allocations.
		CreatePayment(ctx context.Context, payment Payment, exec ...core.DBExecutor) (Payment, error)

		// ExistsLiveBill reports whether the student has a non-cancelled bill for the period.
		ExistsLiveBill(ctx context.Context, studentID, yearID, termID string, exec ...core.DBExecutor) (bool, error)
		// BilledTariffIDs returns the IDs of the tariffs carried by the student's non-cancelled bills.
		BilledTariffIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) (map[string]bool, error)
		// MarkOverdue flags the pending bills due before `today` that still have a balance,
		// and returns them.
		MarkOverdue(ctx context.Context, today time.Time, exec ...core.DBExecutor) ([]Bill, error)

		// NextCounter bumps the period's counter by one bill of `amount` and returns the new count.
		NextCounter(ctx context.Context, yearID, termID string, amount decimal.Decimal, exec ...core.DBExecutor) (int, error)
		QueryCounters(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]Counter, error)
		// StudentTotals aggregates the student's non-cancelled bills.
		StudentTotals(ctx context.Context, studentID string, exec ...core.DBExecutor) (Balance, error)
	}

	// BalanceCache caches student balances; every bill change invalidates its student's entry.
	BalanceCache interface {
		GetBalance(ctx context.Context, studentID string) (Balance, bool, error)
		SetBalance(ctx context.Context, b Balance) error
		InvalidateBalance(ctx context.Context, studentIDs ...string) error
	}

	Deps struct {
		Conf      *core.Config
		Logger    core.Logger
		Tx        core.Transactor
		Repo      Repository
		Calendar  *academic.Service
		Directory *school.Service
		Tariffs   *tariff.Service
		Cache     BalanceCache      // optional
		MailSvc   core.EmailService // optional; guardians are notified when set and enabled
		Now       func() time.Time  // optional; defaults to time.Now
	}

	// Service generates bills, records payments and derives the bills' status.
	Service struct {
		conf      *core.Config
		logger    core.Logger
		tx        core.Transactor
		repo      Repository
		calendar  *academic.Service
		directory *school.Service
		tariffs   *tariff.Service
		cache     BalanceCache
		mailSvc   core.EmailService
		now       func() time.Time
		taxRate   decimal.Decimal
	}
)

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "conf"),
		vala.IsNotNil(deps.Logger, "logger"),
		vala.IsNotNil(deps.Tx, "tx"),
		vala.IsNotNil(deps.Repo, "repo"),
		vala.IsNotNil(deps.Calendar, "calendar"),
		vala.IsNotNil(deps.Directory, "directory"),
		vala.IsNotNil(deps.Tariffs, "tariffs"),
	).CheckAndPanic()

	svc := &Service{
		conf:      deps.Conf,
		logger:    deps.Logger,
		tx:        deps.Tx,
		repo:      deps.Repo,
		calendar:  deps.Calendar,
		directory: deps.Directory,
		tariffs:   deps.Tariffs,
		cache:     deps.Cache,
		mailSvc:   deps.MailSvc,
		now:       deps.Now,
	}
	if svc.cache == nil {
		svc.cache = noopCache{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	rate, err := decimal.NewFromString(deps.Conf.Billing.TaxRate)
	if deps.Conf.Billing.TaxRate != "" && err != nil {
		panic(fmt.Sprintf("billing: invalid tax rate %q: %v", deps.Conf.Billing.TaxRate, err))
	}
	svc.taxRate = rate
	return svc
}

func (svc *Service) Get(ctx context.Context, id string) (Bill, error) {
	return svc.repo.GetBill(ctx, id, false)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Bill, error) {
	return svc.repo.QueryBills(ctx, filter, ordering)
}

// Report returns the billing counters of the academic year.
func (svc *Service) Report(ctx context.Context, yearID string) ([]Counter, error) {
	if _, err := svc.calendar.GetYear(ctx, yearID); err != nil {
		return nil, err
	}
	return svc.repo.QueryCounters(ctx, yearID)
}

// StudentBalance returns what the student owes over their non-cancelled bills.
func (svc *Service) StudentBalance(ctx context.Context, studentID string) (Balance, error) {
	if b, ok, err := svc.cache.GetBalance(ctx, studentID); err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached balance of student %s", studentID), err)
	} else if ok {
		return b, nil
	}

	if _, err := svc.directory.GetStudent(ctx, studentID); err != nil {
		return Balance{}, err
	}
	b, err := svc.repo.StudentTotals(ctx, studentID)
	if err != nil {
		return Balance{}, errors.Wrap(err, "computing student balance")
	}
	b.StudentID = studentID
	b.Currency = svc.conf.Billing.Currency

	if err = svc.cache.SetBalance(ctx, b); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching balance of student %s", studentID), err)
	}
	return b, nil
}

func (svc *Service) invalidateBalances(ctx context.Context, studentIDs ...string) {
	if len(studentIDs) == 0 {
		return
	}
	if err := svc.cache.InvalidateBalance(ctx, studentIDs...); err != nil {
		svc.logger.Error("invalidating cached balances", err)
	}
}

type noopCache struct{}

func (noopCache) GetBalance(context.Context, string) (Balance, bool, error) { return Balance{}, false, nil }
func (noopCache) SetBalance(context.Context, Balance) error                 { return nil }
func (noopCache) InvalidateBalance(context.Context, ...string) error        { return nil }
