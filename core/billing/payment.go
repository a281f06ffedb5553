package billing

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
)

// allocation is the part of a payment applied to the bill item at index `item`.
type allocation struct {
	item   int
	amount decimal.Decimal
}

// allocate spreads `amount` over the items of the bill.
// With a target item the whole amount goes to it; otherwise the items with an outstanding balance
// are settled lowest balance first, ties broken by line position.
func allocate(bill Bill, amount decimal.Decimal, itemID string) ([]allocation, error) {
	if !amount.IsPositive() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "payment amount must be greater than zero"})
	}
	if amount.GreaterThan(bill.Balance) {
		return nil, &OverpaymentError{BillID: bill.ID, Amount: amount, Balance: bill.Balance}
	}

	if itemID != "" {
		for i, item := range bill.Items {
			if item.ID != itemID {
				continue
			}
			if amount.GreaterThan(item.Balance) {
				return nil, &OverpaymentError{BillID: bill.ID, ItemID: item.ID, Amount: amount, Balance: item.Balance}
			}
			return []allocation{{item: i, amount: amount}}, nil
		}
		return nil, core.NewNotFoundError(BillItemResource, itemID)
	}

	order := make([]int, 0, len(bill.Items))
	for i, item := range bill.Items {
		if item.Balance.IsPositive() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := bill.Items[order[a]], bill.Items[order[b]]
		if ia.Balance.Equal(ib.Balance) {
			return ia.Position < ib.Position
		}
		return ia.Balance.LessThan(ib.Balance)
	})

	allocs := make([]allocation, 0, len(order))
	remaining := amount
	for _, i := range order {
		if !remaining.IsPositive() {
			break
		}
		part := decimal.Min(remaining, bill.Items[i].Balance)
		allocs = append(allocs, allocation{item: i, amount: part})
		remaining = remaining.Sub(part)
	}
	if remaining.IsPositive() {
		// item balances do not add up to the bill balance
		return nil, &OverpaymentError{BillID: bill.ID, Amount: amount, Balance: amount.Sub(remaining)}
	}
	return allocs, nil
}

// apply records the payment on the bill and its items, settling the bill when its balance reaches zero.
// payment.Allocations holds one ItemPayment per allocation, in the same order.
func apply(bill *Bill, payment Payment, allocs []allocation, now time.Time) {
	for i, a := range allocs {
		item := &bill.Items[a.item]
		item.PaidAmount = item.PaidAmount.Add(a.amount)
		item.Balance = item.NetAmount.Sub(item.PaidAmount)
		item.Status = ItemPartial
		if item.Balance.IsZero() {
			item.Status = ItemPaid
		}
		item.UpdatedAt = now
		item.PaymentHistory = append(item.PaymentHistory, payment.Allocations[i])
	}

	bill.PaidAmount = bill.PaidAmount.Add(payment.Amount)
	bill.Balance = bill.TotalAmount.Sub(bill.PaidAmount)
	bill.UpdatedAt = now
	bill.Payments = append(bill.Payments, payment)
	if bill.Balance.IsZero() {
		settle(bill, core.Date(payment.PaidAt))
	}
}

// RecordPayment applies a payment to an open (pending or overdue) bill.
// It fails with an OverpaymentError when the amount exceeds the bill's (or target item's) balance
// and with an InvalidStateTransitionError when the bill is paid or cancelled.
func (svc *Service) RecordPayment(ctx context.Context, billID string, req PaymentRequest, recordedBy string) (Bill, error) {
	now := svc.now().UTC()
	paidAt := req.PaidAt.UTC()
	if req.PaidAt.IsZero() {
		paidAt = now
	}
	amount := req.Amount.Round(2)

	var bill Bill
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		bill, err = svc.repo.GetBill(ctx, billID, true, exec)
		if err != nil {
			return err
		}
		if !bill.Status.IsOpen() {
			return &InvalidStateTransitionError{BillID: bill.ID, From: bill.Status, To: StatusPaid, Reason: "bill is not open for payments"}
		}

		allocs, err := allocate(bill, amount, req.ItemID)
		if err != nil {
			return err
		}

		payment, err := svc.repo.CreatePayment(ctx, Payment{
			BillID:      bill.ID,
			Amount:      amount,
			Method:      req.Method,
			Reference:   req.Reference,
			RecordedBy:  recordedBy,
			PaidAt:      paidAt,
			CreatedAt:   now,
			Allocations: allocationsFor(bill, allocs, paidAt, req.Reference),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}
		apply(&bill, payment, allocs, now)

		bill, err = svc.repo.UpdateBill(ctx, bill, exec)
		return errors.Wrap(err, "updating bill")
	})
	if err != nil {
		return Bill{}, err
	}

	svc.invalidateBalances(ctx, bill.StudentID)
	return bill, nil
}

// allocationsFor returns the item payments to store along with the payment; their PaymentID is set by the repository.
func allocationsFor(bill Bill, allocs []allocation, paidAt time.Time, reference string) []ItemPayment {
	ips := make([]ItemPayment, 0, len(allocs))
	for _, a := range allocs {
		ips = append(ips, ItemPayment{
			BillItemID: bill.Items[a.item].ID,
			Amount:     a.amount,
			PaidAt:     paidAt,
			Reference:  reference,
		})
	}
	return ips
}
