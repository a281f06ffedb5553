package tariff_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

func names(tariffs []tariff.Tariff) []string {
	var res []string
	for _, t := range tariffs {
		res = append(res, t.Name)
	}
	return res
}

func TestFrequency_AppliesTo(t *testing.T) {
	tests := []struct {
		freq                tariff.Frequency
		termBill, firstTerm bool
		want                bool
	}{
		{tariff.PerYear, false, false, true},
		{tariff.PerYear, true, true, true},
		{tariff.PerYear, true, false, false},
		{tariff.PerTerm, true, false, true},
		{tariff.PerMonth, true, false, true},
		{tariff.OneTime, true, false, true},
		{tariff.Frequency("weekly"), true, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.freq.AppliesTo(tt.termBill, tt.firstTerm), "%s(%v, %v)", tt.freq, tt.termBill, tt.firstTerm)
	}
}

func TestFrequency_Occurrences(t *testing.T) {
	assert.Equal(t, 4, tariff.PerMonth.Occurrences(4))
	assert.Equal(t, 1, tariff.PerMonth.Occurrences(0))
	for _, f := range []tariff.Frequency{tariff.PerTerm, tariff.PerYear, tariff.OneTime} {
		assert.Equal(t, 1, f.Occurrences(11), string(f))
	}
}

func TestNewTariff_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	nt := tariff.NewTariff{Name: " Tuition ", Amount: testutil.Amount("100.005"), Frequency: tariff.PerTerm, Type: tariff.Tuition}
	require.NoError(t, nt.Validate(validate))
	assert.Equal(t, "Tuition", nt.Name)
	assert.True(t, testutil.Amount("100.01").Equal(nt.Amount))

	invalid := []tariff.NewTariff{
		{Name: "Bus", Amount: decimal.Zero, Frequency: tariff.PerTerm, Type: tariff.Transport},
		{Name: "Bus", Amount: testutil.Amount("10"), Frequency: "weekly", Type: tariff.Transport},
		{Name: "Bus", Amount: testutil.Amount("10"), Frequency: tariff.PerTerm, Type: "bus"},
		{Name: "  ", Amount: testutil.Amount("10"), Frequency: tariff.PerTerm, Type: tariff.Transport},
	}
	for i := range invalid {
		assert.Error(t, invalid[i].Validate(validate), "case %d", i)
	}
}

func TestService_CRUD(t *testing.T) {
	svcs := testutil.NewServices()
	svc := svcs.Tariffs
	ctx := context.Background()
	tuition := testutil.CreateTariff(t, svc, "Tuition", "300", tariff.PerTerm, tariff.Tuition)
	bus := testutil.CreateTariff(t, svc, "Bus", "50", tariff.PerMonth, tariff.Transport)
	testutil.CreateTariff(t, svc, "Uniform", "75", tariff.OneTime, tariff.Other)
	assert.True(t, tuition.IsActive)

	inactive := false
	desc := "Kigali routes"
	updated, err := svc.Update(ctx, bus.ID, tariff.UpdateTariff{
		Description: &desc,
		Amount:      decimal.NewNullDecimal(testutil.Amount("60")),
		IsActive:    &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bus", updated.Name)
	assert.Equal(t, desc, updated.Description)
	assert.True(t, testutil.Amount("60").Equal(updated.Amount))
	assert.False(t, updated.IsActive)

	_, err = svc.Update(ctx, "nope", tariff.UpdateTariff{Name: "x"})
	assert.True(t, core.IsNotFound(err, tariff.Resource))

	active := true
	tests := []struct {
		name     string
		filter   *tariff.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{"default ordering", nil, nil, []string{"Tuition", "Bus", "Uniform"}},
		{"by name", nil, []core.DBOrdering{{Field: "name", Ascending: true}}, []string{"Bus", "Tuition", "Uniform"}},
		{"by amount desc", nil, []core.DBOrdering{{Field: "amount"}}, []string{"Tuition", "Uniform", "Bus"}},
		{"search", &tariff.QueryFilter{Search: "uni"}, nil, []string{"Uniform"}},
		{"type", &tariff.QueryFilter{Type: tariff.Transport}, nil, []string{"Bus"}},
		{"frequency", &tariff.QueryFilter{Frequency: tariff.PerTerm}, nil, []string{"Tuition"}},
		{"active", &tariff.QueryFilter{IsActive: &active}, nil, []string{"Tuition", "Uniform"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tariffs, err := svc.Query(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(tariffs))
			if tt.ordering != nil {
				assert.Equal(t, tt.want, names(tariffs))
			}
		})
	}

	require.NoError(t, svc.Delete(ctx, tuition.ID))
	_, err = svc.Get(ctx, tuition.ID)
	assert.True(t, core.IsNotFound(err, tariff.Resource))
	tariffs, err := svc.Query(ctx, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Bus", "Uniform"}, names(tariffs))
	assert.True(t, core.IsNotFound(svc.Delete(ctx, tuition.ID), tariff.Resource))
}

func TestService_AssignToClass(t *testing.T) {
	svcs := testutil.NewServices()
	svc := svcs.Tariffs
	ctx := context.Background()
	grade := testutil.CreateGrade(t, svcs.Directory, "P1", 1)
	class := testutil.CreateClass(t, svcs.Directory, grade.ID, "P1 A", 30)
	tuition := testutil.CreateTariff(t, svc, "Tuition", "300", tariff.PerTerm, tariff.Tuition, class.ID)
	bus := testutil.CreateTariff(t, svc, "Bus", "50", tariff.PerMonth, tariff.Transport, class.ID)
	meal := testutil.CreateTariff(t, svc, "Meal", "40", tariff.PerTerm, tariff.Meal, class.ID)
	unrelated := testutil.CreateTariff(t, svc, "Uniform", "75", tariff.OneTime, tariff.Other)

	_, err := svc.AssignToClass(ctx, "nope", tuition.ID, true)
	assert.True(t, core.IsNotFound(err, "class"))
	_, err = svc.AssignToClass(ctx, class.ID, "nope", true)
	assert.True(t, core.IsNotFound(err, tariff.Resource))

	ct, err := svc.AssignToClass(ctx, class.ID, bus.ID, false)
	require.NoError(t, err)
	assert.False(t, ct.IsActive)
	require.NotNil(t, ct.Tariff)
	assert.Equal(t, "Bus", ct.Tariff.Name)

	inactive := false
	_, err = svc.Update(ctx, meal.ID, tariff.UpdateTariff{IsActive: &inactive})
	require.NoError(t, err)

	active, err := svc.ActiveForClass(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tuition"}, names(active), "inactive bindings and tariffs are not billed")

	bindings, err := svc.ClassTariffs(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, bindings, 3)
	assert.Equal(t, bus.ID, bindings[0].TariffID, "sorted by tariff name")
	for _, b := range bindings {
		assert.NotEqual(t, unrelated.ID, b.TariffID)
	}

	require.NoError(t, svc.Delete(ctx, tuition.ID))
	active, err = svc.ActiveForClass(ctx, class.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
	bindings, err = svc.ClassTariffs(ctx, class.ID)
	require.NoError(t, err)
	assert.Len(t, bindings, 2, "deleted tariffs are hidden")

	_, err = svc.ClassTariffs(ctx, "nope")
	assert.Error(t, err)
}
