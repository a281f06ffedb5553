package billing

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
)

// Cancel voids an unpaid bill; the student may then be billed again for the period.
func (svc *Service) Cancel(ctx context.Context, billID string, req CancelRequest, cancelledBy string) (Bill, error) {
	now := svc.now().UTC()

	var bill Bill
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		bill, err = svc.repo.GetBill(ctx, billID, true, exec)
		if err != nil {
			return err
		}
		if !bill.Status.IsOpen() {
			return &InvalidStateTransitionError{BillID: bill.ID, From: bill.Status, To: StatusCancelled}
		}
		if !bill.PaidAmount.IsZero() {
			return &InvalidStateTransitionError{
				BillID: bill.ID,
				From:   bill.Status,
				To:     StatusCancelled,
				Reason: "bill has payments",
			}
		}

		bill.Status = StatusCancelled
		bill.CancelledAt = &now
		bill.CancelledBy = cancelledBy
		bill.CancelReason = req.Reason
		bill.UpdatedAt = now

		bill, err = svc.repo.UpdateBill(ctx, bill, exec)
		return errors.Wrap(err, "cancelling bill")
	})
	if err != nil {
		return Bill{}, err
	}

	svc.invalidateBalances(ctx, bill.StudentID)
	return bill, nil
}

// MarkOverdue flags the pending bills whose due date has passed and that still have a balance.
// It is idempotent and returns the number of bills that became overdue.
func (svc *Service) MarkOverdue(ctx context.Context) (int, error) {
	today := core.Date(svc.now().UTC())

	var bills []Bill
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		bills, err = svc.repo.MarkOverdue(ctx, today, exec)
		return errors.Wrap(err, "marking overdue bills")
	})
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.StudentID)
	}
	svc.invalidateBalances(ctx, ids...)
	svc.notifyOverdue(ctx, bills)

	if len(bills) > 0 {
		svc.logger.Info("bills marked overdue", map[string]interface{}{"count": len(bills), "date": today.Format("2006-01-02")})
	}
	return len(bills), nil
}
