package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

type tariffRepository struct {
	db *DB
}

var _ tariff.Repository = (*tariffRepository)(nil) // interface compliance check

func NewTariffRepository(db *DB) *tariffRepository {
	return &tariffRepository{db: db}
}

func (repo *tariffRepository) CreateTariff(_ context.Context, t tariff.Tariff, _ ...core.DBExecutor) (tariff.Tariff, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	t.ID = uuid.New().String()
	repo.db.tariffs[t.ID] = t
	return t, nil
}

func sortTariffs(tariffs []tariff.Tariff) {
	sort.SliceStable(tariffs, func(i, j int) bool {
		if tariffs[i].CreatedAt.Equal(tariffs[j].CreatedAt) {
			return tariffs[i].Name < tariffs[j].Name
		}
		return tariffs[i].CreatedAt.Before(tariffs[j].CreatedAt)
	})
}

func (repo *tariffRepository) QueryTariffs(_ context.Context, filter *tariff.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]tariff.Tariff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tariffs := make([]tariff.Tariff, 0, len(repo.db.tariffs))
	for _, t := range repo.db.tariffs {
		if t.IsDeleted() {
			continue
		}
		if filter != nil {
			if filter.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(filter.Search)) {
				continue
			}
			if filter.Type != "" && t.Type != filter.Type {
				continue
			}
			if filter.Frequency != "" && t.Frequency != filter.Frequency {
				continue
			}
			if filter.IsActive != nil && t.IsActive != *filter.IsActive {
				continue
			}
		}
		tariffs = append(tariffs, t)
	}

	sortTariffs(tariffs)
	for _, ord := range ordering {
		asc := ord.Ascending
		switch ord.Field {
		case "name":
			sort.SliceStable(tariffs, func(i, j int) bool {
				if asc {
					return tariffs[i].Name < tariffs[j].Name
				}
				return tariffs[i].Name > tariffs[j].Name
			})
		case "amount":
			sort.SliceStable(tariffs, func(i, j int) bool {
				if asc {
					return tariffs[i].Amount.LessThan(tariffs[j].Amount)
				}
				return tariffs[i].Amount.GreaterThan(tariffs[j].Amount)
			})
		}
	}
	return tariffs, nil
}

func (repo *tariffRepository) GetTariff(_ context.Context, id string, _ ...core.DBExecutor) (tariff.Tariff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.tariffs[id]; ok && !t.IsDeleted() {
		return t, nil
	}
	return tariff.Tariff{}, core.NewNotFoundError(tariff.Resource, id)
}

func (repo *tariffRepository) UpdateTariff(_ context.Context, t tariff.Tariff, _ ...core.DBExecutor) (tariff.Tariff, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tariffs[t.ID]; !ok {
		return tariff.Tariff{}, core.NewNotFoundError(tariff.Resource, t.ID)
	}
	repo.db.tariffs[t.ID] = t
	return t, nil
}

func (repo *tariffRepository) UpsertClassTariff(_ context.Context, ct tariff.ClassTariff, _ ...core.DBExecutor) (tariff.ClassTariff, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := classTariffKey{classID: ct.ClassID, tariffID: ct.TariffID}
	if orig, ok := repo.db.classTariffs[key]; ok {
		ct.CreatedAt = orig.CreatedAt
	}
	ct.Tariff = nil
	repo.db.classTariffs[key] = ct
	return ct, nil
}

func (repo *tariffRepository) QueryClassTariffs(_ context.Context, classID string, _ ...core.DBExecutor) ([]tariff.ClassTariff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cts := make([]tariff.ClassTariff, 0)
	for key, ct := range repo.db.classTariffs {
		if key.classID != classID {
			continue
		}
		t, ok := repo.db.tariffs[key.tariffID]
		if !ok || t.IsDeleted() {
			continue
		}
		ct.Tariff = &t
		cts = append(cts, ct)
	}
	sort.Slice(cts, func(i, j int) bool { return cts[i].Tariff.Name < cts[j].Tariff.Name })
	return cts, nil
}

func (repo *tariffRepository) ActiveTariffsForClass(_ context.Context, classID string, _ ...core.DBExecutor) ([]tariff.Tariff, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	tariffs := make([]tariff.Tariff, 0)
	for key, ct := range repo.db.classTariffs {
		if key.classID != classID || !ct.IsActive {
			continue
		}
		if t, ok := repo.db.tariffs[key.tariffID]; ok && t.IsActive && !t.IsDeleted() {
			tariffs = append(tariffs, t)
		}
	}
	sortTariffs(tariffs)
	return tariffs, nil
}
