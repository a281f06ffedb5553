package dig_container

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
)

const overdueScanTimeout = 5 * time.Minute

type overdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

var _ overdueMarker = (*billing.Service)(nil) // interface compliance check

// overdueJob runs one overdue scan.
func overdueJob(svc overdueMarker, logger core.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), overdueScanTimeout)
		defer cancel()

		n, err := svc.MarkOverdue(ctx)
		if err != nil {
			logger.Error(fmt.Sprintf("overdue scan failed: %v", err), err)
			return
		}
		logger.Info(fmt.Sprintf("overdue scan: %d bill(s) marked overdue", n))
	}
}

// newScheduler schedules the overdue scan on conf.Billing.OverdueSchedule; the returned cron is not started.
// No job is registered when the schedule is empty.
func newScheduler(conf *core.Config, logger core.Logger, svc *billing.Service) (*cron.Cron, error) {
	return scheduleOverdue(conf.Billing.OverdueSchedule, logger, svc)
}

func scheduleOverdue(spec string, logger core.Logger, svc overdueMarker) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if spec == "" {
		return c, nil
	}
	if _, err := c.AddFunc(spec, overdueJob(svc, logger)); err != nil {
		return nil, errors.Wrapf(err, "scheduling overdue scan %q", spec)
	}
	return c, nil
}
