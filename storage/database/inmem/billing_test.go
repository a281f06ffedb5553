package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core/billing"
	inmemdb "github.com/Rwiron/saintmassori-sub002/storage/database/inmem"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

func TestBillingRepository_UpdateBill(t *testing.T) {
	repo := inmemdb.NewBillingRepository(inmemdb.Open())
	ctx := context.Background()
	now := time.Now().UTC()

	bill, err := repo.CreateBill(ctx, billing.Bill{
		StudentID:      "student",
		AcademicYearID: "year",
		Subtotal:       testutil.Amount("100"),
		TotalAmount:    testutil.Amount("100"),
		PaidAmount:     testutil.Amount("0"),
		Balance:        testutil.Amount("100"),
		Status:         billing.StatusPending,
		Items: []billing.BillItem{{
			Position:   1,
			Name:       "Tuition",
			Amount:     testutil.Amount("100"),
			NetAmount:  testutil.Amount("100"),
			PaidAmount: testutil.Amount("0"),
			Balance:    testutil.Amount("100"),
			Status:     billing.ItemPending,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bill.Version)

	first, err := repo.GetBill(ctx, bill.ID, true)
	require.NoError(t, err)
	second, err := repo.GetBill(ctx, bill.ID, true)
	require.NoError(t, err)

	first.Status = billing.StatusCancelled
	updated, err := repo.UpdateBill(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	second.Status = billing.StatusOverdue
	_, err = repo.UpdateBill(ctx, second)
	assert.Equal(t, billing.ErrStaleBill, err)

	stored, err := repo.GetBill(ctx, bill.ID, false)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, stored.Status, "the stale write is discarded")
	assert.Equal(t, 2, stored.Version)

	_, err = repo.UpdateBill(ctx, billing.Bill{ID: "nope", Version: 1})
	assert.Error(t, err)
}
