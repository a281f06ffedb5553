package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
)

type billingRepository struct {
	db *DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) *billingRepository {
	return &billingRepository{db: db}
}

func (repo *billingRepository) isLive(b billing.Bill, studentID, yearID, termID string) bool {
	return b.Status != billing.StatusCancelled &&
		b.StudentID == studentID && b.AcademicYearID == yearID && b.TermID == termID
}

func (repo *billingRepository) CreateBill(_ context.Context, bill billing.Bill, _ ...core.DBExecutor) (billing.Bill, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, b := range repo.db.bills {
		if repo.isLive(b, bill.StudentID, bill.AcademicYearID, bill.TermID) {
			return billing.Bill{}, &billing.DuplicateBillError{
				StudentID:      bill.StudentID,
				AcademicYearID: bill.AcademicYearID,
				TermID:         bill.TermID,
			}
		}
	}

	bill.ID = uuid.New().String()
	bill.Version = 1
	bill.LineItems = append([]billing.LineItem(nil), bill.LineItems...)
	items := make([]billing.BillItem, 0, len(bill.Items))
	for _, item := range bill.Items {
		item.ID = uuid.New().String()
		item.BillID = bill.ID
		item.PaymentHistory = nil
		repo.db.billItems[item.ID] = item
		items = append(items, item)
	}

	stored := bill
	stored.Items, stored.Payments = nil, nil
	repo.db.bills[bill.ID] = stored

	bill.Items = items
	bill.Payments = nil
	return bill, nil
}

// load assembles the bill with its items, their payment history and its payments.
// The caller must hold db.mu.
func (repo *billingRepository) load(b billing.Bill) billing.Bill {
	b.LineItems = append([]billing.LineItem(nil), b.LineItems...)

	history := make(map[string][]billing.ItemPayment)
	allocations := make(map[string][]billing.ItemPayment)
	for _, ip := range repo.db.itemPayments {
		history[ip.BillItemID] = append(history[ip.BillItemID], ip)
		allocations[ip.PaymentID] = append(allocations[ip.PaymentID], ip)
	}

	b.Items = make([]billing.BillItem, 0)
	for _, item := range repo.db.billItems {
		if item.BillID != b.ID {
			continue
		}
		item.PaymentHistory = history[item.ID]
		sort.SliceStable(item.PaymentHistory, func(i, j int) bool {
			return item.PaymentHistory[i].PaidAt.Before(item.PaymentHistory[j].PaidAt)
		})
		b.Items = append(b.Items, item)
	}
	sort.Slice(b.Items, func(i, j int) bool { return b.Items[i].Position < b.Items[j].Position })

	b.Payments = make([]billing.Payment, 0)
	for _, p := range repo.db.payments {
		if p.BillID == b.ID {
			p.Allocations = allocations[p.ID]
			b.Payments = append(b.Payments, p)
		}
	}
	sort.Slice(b.Payments, func(i, j int) bool { return b.Payments[i].CreatedAt.Before(b.Payments[j].CreatedAt) })
	return b
}

func (repo *billingRepository) GetBill(_ context.Context, id string, _ bool, _ ...core.DBExecutor) (billing.Bill, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	b, ok := repo.db.bills[id]
	if !ok {
		return billing.Bill{}, core.NewNotFoundError(billing.BillResource, id)
	}
	return repo.load(b), nil
}

func (repo *billingRepository) QueryBills(_ context.Context, filter *billing.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]billing.Bill, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bills := make([]billing.Bill, 0)
	for _, b := range repo.db.bills {
		if filter != nil {
			if filter.StudentID != "" && b.StudentID != filter.StudentID {
				continue
			}
			if filter.ClassID != "" {
				if s, ok := repo.db.students[b.StudentID]; !ok || s.ClassID != filter.ClassID {
					continue
				}
			}
			if filter.AcademicYearID != "" && b.AcademicYearID != filter.AcademicYearID {
				continue
			}
			if filter.TermID != "" && b.TermID != filter.TermID {
				continue
			}
			if filter.Status != "" && b.Status != filter.Status {
				continue
			}
		}
		bills = append(bills, b)
	}

	// latest first by default
	sort.Slice(bills, func(i, j int) bool {
		if bills[i].CreatedAt.Equal(bills[j].CreatedAt) {
			return bills[i].Number > bills[j].Number
		}
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	for _, ord := range ordering {
		asc := ord.Ascending
		less := func(a, b billing.Bill) bool { return false }
		switch ord.Field {
		case "number":
			less = func(a, b billing.Bill) bool { return a.Number < b.Number }
		case "due_date":
			less = func(a, b billing.Bill) bool { return a.DueDate.Before(b.DueDate) }
		case "issue_date":
			less = func(a, b billing.Bill) bool { return a.IssueDate.Before(b.IssueDate) }
		case "total_amount":
			less = func(a, b billing.Bill) bool { return a.TotalAmount.LessThan(b.TotalAmount) }
		case "balance":
			less = func(a, b billing.Bill) bool { return a.Balance.LessThan(b.Balance) }
		case "status":
			less = func(a, b billing.Bill) bool { return a.Status < b.Status }
		}
		sort.SliceStable(bills, func(i, j int) bool {
			if asc {
				return less(bills[i], bills[j])
			}
			return less(bills[j], bills[i])
		})
	}
	return bills, nil
}

func (repo *billingRepository) UpdateBill(_ context.Context, bill billing.Bill, _ ...core.DBExecutor) (billing.Bill, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.bills[bill.ID]
	if !ok {
		return billing.Bill{}, core.NewNotFoundError(billing.BillResource, bill.ID)
	}
	if orig.Version != bill.Version {
		return billing.Bill{}, billing.ErrStaleBill
	}
	bill.Version++

	for _, item := range bill.Items {
		stored := item
		stored.PaymentHistory = nil
		repo.db.billItems[item.ID] = stored
	}
	stored := bill
	stored.LineItems = append([]billing.LineItem(nil), bill.LineItems...)
	stored.Items, stored.Payments = nil, nil
	repo.db.bills[bill.ID] = stored
	return bill, nil
}

func (repo *billingRepository) CreatePayment(_ context.Context, payment billing.Payment, _ ...core.DBExecutor) (billing.Payment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bills[payment.BillID]; !ok {
		return billing.Payment{}, core.NewNotFoundError(billing.BillResource, payment.BillID)
	}
	payment.ID = uuid.New().String()
	allocs := make([]billing.ItemPayment, 0, len(payment.Allocations))
	for _, ip := range payment.Allocations {
		ip.ID = uuid.New().String()
		ip.PaymentID = payment.ID
		repo.db.itemPayments = append(repo.db.itemPayments, ip)
		allocs = append(allocs, ip)
	}
	payment.Allocations = allocs

	stored := payment
	stored.Allocations = nil
	repo.db.payments[payment.ID] = stored
	return payment, nil
}

func (repo *billingRepository) ExistsLiveBill(_ context.Context, studentID, yearID, termID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, b := range repo.db.bills {
		if repo.isLive(b, studentID, yearID, termID) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *billingRepository) BilledTariffIDs(_ context.Context, studentID string, _ ...core.DBExecutor) (map[string]bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make(map[string]bool)
	for _, b := range repo.db.bills {
		if b.StudentID != studentID || b.Status == billing.StatusCancelled {
			continue
		}
		for _, li := range b.LineItems {
			ids[li.TariffID] = true
		}
	}
	return ids, nil
}

func (repo *billingRepository) MarkOverdue(_ context.Context, today time.Time, _ ...core.DBExecutor) ([]billing.Bill, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := time.Now().UTC()
	bills := make([]billing.Bill, 0)
	for id, b := range repo.db.bills {
		if !b.IsOverdueAt(today) {
			continue
		}
		b.Status = billing.StatusOverdue
		b.Version++
		b.UpdatedAt = now
		repo.db.bills[id] = b
		bills = append(bills, b)
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].Number < bills[j].Number })
	return bills, nil
}

func (repo *billingRepository) NextCounter(_ context.Context, yearID, termID string, amount decimal.Decimal, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := counterKey{yearID: yearID, termID: termID}
	c, ok := repo.db.counters[key]
	if !ok {
		c = billing.Counter{AcademicYearID: yearID, TermID: termID, AmountIssued: decimal.Zero}
	}
	c.BillsIssued++
	c.AmountIssued = c.AmountIssued.Add(amount)
	c.UpdatedAt = time.Now().UTC()
	repo.db.counters[key] = c
	return c.BillsIssued, nil
}

func (repo *billingRepository) QueryCounters(_ context.Context, yearID string, _ ...core.DBExecutor) ([]billing.Counter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counters := make([]billing.Counter, 0)
	for key, c := range repo.db.counters {
		if key.yearID == yearID {
			counters = append(counters, c)
		}
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].TermID < counters[j].TermID })
	return counters, nil
}

func (repo *billingRepository) StudentTotals(_ context.Context, studentID string, _ ...core.DBExecutor) (billing.Balance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bal := billing.Balance{
		StudentID:   studentID,
		TotalBilled: decimal.Zero,
		TotalPaid:   decimal.Zero,
		TotalOwed:   decimal.Zero,
	}
	for _, b := range repo.db.bills {
		if b.StudentID != studentID || b.Status == billing.StatusCancelled {
			continue
		}
		bal.TotalBilled = bal.TotalBilled.Add(b.TotalAmount)
		bal.TotalPaid = bal.TotalPaid.Add(b.PaidAmount)
		bal.TotalOwed = bal.TotalOwed.Add(b.Balance)
		if b.Status.IsOpen() {
			bal.OpenBills++
		}
	}
	return bal, nil
}
