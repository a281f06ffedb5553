package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openBill(balances ...string) Bill {
	bill := Bill{ID: "bill", Status: StatusPending, TotalAmount: decimal.Zero, PaidAmount: decimal.Zero}
	for i, b := range balances {
		amount := dec(b)
		bill.Items = append(bill.Items, BillItem{
			ID:         string(rune('a' + i)),
			Position:   i + 1,
			Amount:     amount,
			NetAmount:  amount,
			PaidAmount: decimal.Zero,
			Balance:    amount,
			Status:     ItemPending,
		})
		bill.TotalAmount = bill.TotalAmount.Add(amount)
	}
	bill.Balance = bill.TotalAmount
	return bill
}

func Test_allocate(t *testing.T) {
	type alloc struct {
		item   string
		amount string
	}
	tests := []struct {
		name    string
		bill    Bill
		amount  string
		itemID  string
		want    []alloc
		wantErr func(error) bool
	}{
		{
			name:   "lowest balance first",
			bill:   openBill("100", "50"),
			amount: "60",
			want:   []alloc{{"b", "50"}, {"a", "10"}},
		},
		{
			name:   "ties broken by position",
			bill:   openBill("40", "40", "10"),
			amount: "50",
			want:   []alloc{{"c", "10"}, {"a", "40"}},
		},
		{
			name:   "full payment",
			bill:   openBill("100", "50"),
			amount: "150",
			want:   []alloc{{"b", "50"}, {"a", "100"}},
		},
		{
			name:   "target item",
			bill:   openBill("100", "50"),
			amount: "70",
			itemID: "a",
			want:   []alloc{{"a", "70"}},
		},
		{
			name:    "exceeds bill balance",
			bill:    openBill("100", "50"),
			amount:  "150.01",
			wantErr: IsOverpayment,
		},
		{
			name:    "exceeds target item balance",
			bill:    openBill("100", "50"),
			amount:  "60",
			itemID:  "b",
			wantErr: IsOverpayment,
		},
		{
			name:    "unknown target item",
			bill:    openBill("100", "50"),
			amount:  "10",
			itemID:  "z",
			wantErr: func(err error) bool { return core.IsNotFound(err, BillItemResource) },
		},
		{
			name:    "zero amount",
			bill:    openBill("100"),
			amount:  "0",
			wantErr: func(err error) bool { _, ok := err.(*core.ValidationError); return ok },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocs, err := allocate(tt.bill, dec(tt.amount), tt.itemID)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			got := make([]alloc, 0, len(allocs))
			for _, a := range allocs {
				got = append(got, alloc{item: tt.bill.Items[a.item].ID, amount: a.amount.StringFixed(0)})
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_apply(t *testing.T) {
	now := time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC)
	bill := openBill("100", "50")

	allocs, err := allocate(bill, dec("60"), "")
	require.NoError(t, err)
	payment := Payment{ID: "p1", Amount: dec("60"), PaidAt: now, Allocations: []ItemPayment{
		{ID: "ip1", BillItemID: "b", PaymentID: "p1", Amount: dec("50"), PaidAt: now},
		{ID: "ip2", BillItemID: "a", PaymentID: "p1", Amount: dec("10"), PaidAt: now},
	}}
	apply(&bill, payment, allocs, now)

	assert.Equal(t, StatusPending, bill.Status)
	assert.True(t, bill.PaidAmount.Equal(dec("60")))
	assert.True(t, bill.Balance.Equal(dec("90")))
	assert.Nil(t, bill.PaidDate)
	assert.Equal(t, ItemPartial, bill.Items[0].Status)
	assert.True(t, bill.Items[0].Balance.Equal(dec("90")))
	assert.Equal(t, ItemPaid, bill.Items[1].Status)
	assert.Len(t, bill.Items[0].PaymentHistory, 1)
	assert.Len(t, bill.Payments, 1)

	allocs, err = allocate(bill, dec("90"), "")
	require.NoError(t, err)
	payment = Payment{ID: "p2", Amount: dec("90"), PaidAt: now, Allocations: []ItemPayment{
		{ID: "ip3", BillItemID: "a", PaymentID: "p2", Amount: dec("90"), PaidAt: now},
	}}
	apply(&bill, payment, allocs, now)

	assert.Equal(t, StatusPaid, bill.Status)
	assert.True(t, bill.Balance.IsZero())
	require.NotNil(t, bill.PaidDate)
	assert.Equal(t, core.Date(now), *bill.PaidDate)
	assert.Equal(t, ItemPaid, bill.Items[0].Status)
}

var (
	smallTariffs = []tariff.Tariff{
		{ID: "a", Name: "Library", Amount: dec("1"), Frequency: tariff.PerTerm, Type: tariff.Other},
		{ID: "b", Name: "Sports", Amount: dec("1"), Frequency: tariff.PerTerm, Type: tariff.ActivityFee},
		{ID: "c", Name: "Insurance", Amount: dec("1"), Frequency: tariff.PerTerm, Type: tariff.Other},
		{ID: "d", Name: "Stationery", Amount: dec("1"), Frequency: tariff.PerTerm, Type: tariff.Other},
	}
	thirds = []tariff.Tariff{
		{ID: "a", Name: "Library", Amount: dec("0.33"), Frequency: tariff.PerTerm, Type: tariff.Other},
		{ID: "b", Name: "Sports", Amount: dec("0.33"), Frequency: tariff.PerTerm, Type: tariff.ActivityFee},
		{ID: "c", Name: "Insurance", Amount: dec("0.34"), Frequency: tariff.PerTerm, Type: tariff.Other},
	}
)

func Test_buildBill(t *testing.T) {
	year := academic.AcademicYear{ID: "y", StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}
	term := academic.Term{ID: "t", Sequence: 1}
	tariffs := []tariff.Tariff{
		{ID: "a", Name: "Tuition", Amount: dec("100"), Frequency: tariff.PerTerm, Type: tariff.Tuition},
		{ID: "b", Name: "Meals", Amount: dec("50"), Frequency: tariff.PerTerm, Type: tariff.Meal},
	}
	gen := func(discount, rate string) generation {
		return generation{
			req:       GenerateRequest{Discount: dec(discount)},
			period:    academic.Period{Year: year, Term: &term, IsFirstTerm: true},
			taxRate:   dec(rate),
			issueDate: time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC),
			dueDate:   time.Date(2024, 9, 24, 0, 0, 0, 0, time.UTC),
		}
	}

	tests := []struct {
		name         string
		gen          generation
		wantSubtotal string
		wantTax      string
		wantTotal    string
		wantNet      []string
		wantErr      bool
		tariffs      []tariff.Tariff
	}{
		{name: "no discount nor tax", gen: gen("0", "0"), wantSubtotal: "150.00", wantTax: "0.00", wantTotal: "150.00", wantNet: []string{"100.00", "50.00"}},
		{name: "discount and tax", gen: gen("30", "10"), wantSubtotal: "150.00", wantTax: "12.00", wantTotal: "132.00", wantNet: []string{"88.00", "44.00"}},
		{name: "rounding remainder to the larger fraction", gen: gen("0.01", "0"), wantSubtotal: "150.00", wantTax: "0.00", wantTotal: "149.99", wantNet: []string{"99.99", "50.00"}},
		{name: "discount above subtotal", gen: gen("150.01", "0"), wantErr: true},
		{name: "tax spread proportionally", gen: gen("0", "7"), wantSubtotal: "150.00", wantTax: "10.50", wantTotal: "160.50", wantNet: []string{"107.00", "53.50"}},
		{
			name: "discount leaving less than a cent per item", gen: gen("3.98", "0"), tariffs: smallTariffs,
			wantSubtotal: "4.00", wantTax: "0.00", wantTotal: "0.02", wantNet: []string{"0.01", "0.01", "0.00", "0.00"},
		},
		{
			name: "leftover cents to the largest remainders", gen: gen("0.01", "0"), tariffs: thirds,
			wantSubtotal: "1.00", wantTax: "0.00", wantTotal: "0.99", wantNet: []string{"0.33", "0.33", "0.33"},
		},
		{
			name: "leftover cents by line position on ties", gen: gen("1", "0"), tariffs: smallTariffs[:3],
			wantSubtotal: "3.00", wantTax: "0.00", wantTotal: "2.00", wantNet: []string{"0.67", "0.67", "0.66"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trfs := tt.tariffs
			if trfs == nil {
				trfs = tariffs
			}
			bill, err := buildBill(tt.gen, "s", trfs, time.Now().UTC())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubtotal, bill.Subtotal.StringFixed(2))
			assert.Equal(t, tt.wantTax, bill.Tax.StringFixed(2))
			assert.Equal(t, tt.wantTotal, bill.TotalAmount.StringFixed(2))
			assert.Equal(t, tt.wantTotal, bill.Balance.StringFixed(2))
			assert.Equal(t, StatusPending, bill.Status)

			sum := decimal.Zero
			net := make([]string, 0, len(bill.Items))
			for _, item := range bill.Items {
				assert.False(t, item.Balance.IsNegative(), "item %d balance %s", item.Position, item.Balance)
				assert.True(t, item.Balance.Equal(item.NetAmount))
				sum = sum.Add(item.NetAmount)
				net = append(net, item.NetAmount.StringFixed(2))
			}
			assert.Equal(t, tt.wantNet, net)
			assert.True(t, sum.Equal(bill.TotalAmount))
			assert.Len(t, bill.LineItems, len(trfs))
		})
	}
}

func Test_buildBill_settlesEveryItem(t *testing.T) {
	year := academic.AcademicYear{ID: "y", StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}
	gen := generation{
		req:       GenerateRequest{Discount: dec("3.98")},
		period:    academic.Period{Year: year},
		taxRate:   decimal.Zero,
		issueDate: time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC),
		dueDate:   time.Date(2024, 9, 24, 0, 0, 0, 0, time.UTC),
	}
	now := time.Date(2024, 9, 12, 8, 0, 0, 0, time.UTC)

	bill, err := buildBill(gen, "s", smallTariffs, now)
	require.NoError(t, err)
	for i := range bill.Items {
		bill.Items[i].ID = string(rune('a' + i))
	}

	allocs, err := allocate(bill, dec("0.02"), "")
	require.NoError(t, err)
	apply(&bill, Payment{Amount: dec("0.02"), PaidAt: now, Allocations: allocationsFor(bill, allocs, now, "")}, allocs, now)

	assert.Equal(t, StatusPaid, bill.Status)
	assert.True(t, bill.Balance.IsZero())
	for _, item := range bill.Items {
		assert.Equal(t, ItemPaid, item.Status, "item %d", item.Position)
		assert.True(t, item.Balance.IsZero(), "item %d balance %s", item.Position, item.Balance)
	}
}

func Test_billNumber(t *testing.T) {
	year := academic.AcademicYear{StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2024-T2-00007", billNumber(academic.Period{Year: year, Term: &academic.Term{Sequence: 2}}, 7))
	assert.Equal(t, "2024-Y-00012", billNumber(academic.Period{Year: year}, 12))
}
