package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

// These tests run the services on postgres; they are skipped unless TEST_DATABASE_URL is set.

func TestBillingRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	clock := testutil.Date(2024, time.September, 10).Add(9 * time.Hour)
	svcs := testutil.NewServices(testutil.Options{SQL: db, Now: func() time.Time { return clock }})

	bursar := testutil.CreateUser(t, svcs.UserRepo, "Bursar", "bursar", "bursar@test.rw", "", []string{user.RoleAdminBursar}, true)
	year := testutil.CreateYear(t, svcs.Calendar, "2024-2025", testutil.Date(2024, time.September, 2), testutil.Date(2025, time.July, 11))
	term := testutil.CreateTerm(t, svcs.Calendar, year.ID, "Term 1", 1, testutil.Date(2024, time.September, 2), testutil.Date(2024, time.December, 13))
	grade := testutil.CreateGrade(t, svcs.Directory, "Primary 1", 1)
	class := testutil.CreateClass(t, svcs.Directory, grade.ID, "P1 A", 30)
	testutil.CreateTariff(t, svcs.Tariffs, "Tuition", "100", tariff.PerTerm, tariff.Tuition, class.ID)
	testutil.CreateTariff(t, svcs.Tariffs, "Meals", "50", tariff.PerTerm, tariff.Meal, class.ID)
	aline := testutil.CreateStudent(t, svcs.Directory, class.ID, "Aline", "Uwase", "")
	testutil.CreateStudent(t, svcs.Directory, class.ID, "Eric", "Mugisha", "")

	req := billing.GenerateRequest{Scope: billing.Scope{ClassID: class.ID}, AcademicYearID: year.ID, TermID: term.ID}
	bills, err := svcs.Billing.Generate(ctx, req, bursar.ID)
	require.NoError(t, err)
	require.Len(t, bills, 2)

	_, err = svcs.Billing.Generate(ctx, req, bursar.ID)
	assert.True(t, billing.IsDuplicateBill(err), "got %v", err)

	var bill billing.Bill
	for _, b := range bills {
		if b.StudentID == aline.ID {
			bill = b
		}
	}
	require.NotEmpty(t, bill.ID)
	assert.Equal(t, bursar.ID, bill.CreatedBy)

	t.Run("payments", func(t *testing.T) {
		got, err := svcs.Billing.RecordPayment(ctx, bill.ID, billing.PaymentRequest{Amount: testutil.Amount("60"), Reference: "RCPT-1"}, bursar.ID)
		require.NoError(t, err)
		assert.Equal(t, "90.00", got.Balance.StringFixed(2))
		assert.Equal(t, 2, got.Version)

		got, err = svcs.Billing.Get(ctx, bill.ID)
		require.NoError(t, err)
		require.Len(t, got.Payments, 1)
		require.Len(t, got.Payments[0].Allocations, 2)
		assert.Equal(t, "60.00", got.Payments[0].Amount.StringFixed(2))
		assert.Equal(t, billing.ItemPaid, got.Items[1].Status, "the smallest item is paid first")
		assert.Equal(t, billing.ItemPartial, got.Items[0].Status)
		require.Len(t, got.Items[0].PaymentHistory, 1)
		assert.Equal(t, "RCPT-1", got.Items[0].PaymentHistory[0].Reference)

		_, err = svcs.Billing.RecordPayment(ctx, bill.ID, billing.PaymentRequest{Amount: testutil.Amount("90.01")}, bursar.ID)
		assert.True(t, billing.IsOverpayment(err), "got %v", err)
	})

	t.Run("overdue", func(t *testing.T) {
		clock = testutil.Date(2024, time.October, 1)
		n, err := svcs.Billing.MarkOverdue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = svcs.Billing.MarkOverdue(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		overdue, err := svcs.Billing.Query(ctx, &billing.QueryFilter{Status: billing.StatusOverdue, ClassID: class.ID}, nil)
		require.NoError(t, err)
		assert.Len(t, overdue, 2)
	})

	t.Run("balance", func(t *testing.T) {
		bal, err := svcs.Billing.StudentBalance(ctx, aline.ID)
		require.NoError(t, err)
		assert.Equal(t, "150.00", bal.TotalBilled.StringFixed(2))
		assert.Equal(t, "60.00", bal.TotalPaid.StringFixed(2))
		assert.Equal(t, "90.00", bal.TotalOwed.StringFixed(2))
		assert.Equal(t, 1, bal.OpenBills)
	})

	t.Run("report", func(t *testing.T) {
		counters, err := svcs.Billing.Report(ctx, year.ID)
		require.NoError(t, err)
		require.Len(t, counters, 1)
		assert.Equal(t, term.ID, counters[0].TermID)
		assert.Equal(t, 2, counters[0].BillsIssued)
		assert.Equal(t, "300.00", counters[0].AmountIssued.StringFixed(2))
	})

	t.Run("unknown bill", func(t *testing.T) {
		_, err := svcs.Billing.Get(ctx, "not-a-uuid")
		assert.True(t, core.IsNotFound(err, billing.BillResource))
	})
}
