package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

var tariffColumns = []string{
	"id", "name", "description", "amount", "frequency", "type", "is_active", "created_at", "updated_at", "deleted_at",
}

type tariffRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Frequency   string          `db:"frequency"`
	Type        string          `db:"type"`
	IsActive    bool            `db:"is_active"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	DeletedAt   null.Time       `db:"deleted_at"`
}

func (row tariffRow) tariff() tariff.Tariff {
	t := tariff.Tariff{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Amount:      row.Amount,
		Frequency:   tariff.Frequency(row.Frequency),
		Type:        tariff.Type(row.Type),
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.DeletedAt.Valid {
		deleted := row.DeletedAt.Time.UTC()
		t.DeletedAt = &deleted
	}
	return t
}

type classTariffRow struct {
	ClassID   string    `db:"class_id"`
	TariffID  string    `db:"tariff_id"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Tariff tariffRow `db:"tariff"`
}

type tariffRepository struct {
	repository
}

var _ tariff.Repository = (*tariffRepository)(nil) // interface compliance check

func NewTariffRepository(exec core.DBExecutor) *tariffRepository {
	return &tariffRepository{repository{exec: exec}}
}

// tariffSelect selects the non-deleted tariffs as `t`; a non-empty alias prefixes the selected column names.
func tariffSelect(alias string) sq.SelectBuilder {
	cols := make([]string, 0, len(tariffColumns))
	for _, col := range tariffColumns {
		if alias == "" {
			cols = append(cols, "t."+col)
		} else {
			cols = append(cols, `t.`+col+` AS "`+alias+`.`+col+`"`)
		}
	}
	return psql.Select(cols...).From("tariff t").Where("t.deleted_at IS NULL")
}

func (repo tariffRepository) CreateTariff(ctx context.Context, t tariff.Tariff, exec ...core.DBExecutor) (tariff.Tariff, error) {
	t.ID = uuid.New().String()
	query := psql.Insert("tariff").Columns(tariffColumns...).Values(
		t.ID, t.Name, t.Description, t.Amount, string(t.Frequency), string(t.Type), t.IsActive,
		t.CreatedAt, t.UpdatedAt, null.TimeFromPtr(t.DeletedAt),
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return tariff.Tariff{}, errors.Wrap(err, "inserting tariff")
	}
	return t, nil
}

func (repo tariffRepository) QueryTariffs(ctx context.Context, filter *tariff.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]tariff.Tariff, error) {
	query := tariffSelect("")

	if filter != nil {
		if filter.Search != "" {
			query = query.Where(sq.ILike{"t.name": likePattern(filter.Search)})
		}
		if filter.Type != "" {
			query = query.Where(sq.Eq{"t.type": string(filter.Type)})
		}
		if filter.Frequency != "" {
			query = query.Where(sq.Eq{"t.frequency": string(filter.Frequency)})
		}
		if filter.IsActive != nil {
			query = query.Where(sq.Eq{"t.is_active": *filter.IsActive})
		}
	}

	order := orderBy(ordering, map[string]string{"name": "t.name", "amount": "t.amount"})
	query = query.OrderBy(append(order, "t.created_at ASC", "t.name ASC")...)

	var rows []tariffRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting tariffs")
	}
	return tariffsFromRows(rows), nil
}

func tariffsFromRows(rows []tariffRow) []tariff.Tariff {
	tariffs := make([]tariff.Tariff, 0, len(rows))
	for _, row := range rows {
		tariffs = append(tariffs, row.tariff())
	}
	return tariffs
}

func (repo tariffRepository) GetTariff(ctx context.Context, id string, exec ...core.DBExecutor) (tariff.Tariff, error) {
	if !isUUID(id) {
		return tariff.Tariff{}, core.NewNotFoundError(tariff.Resource, id)
	}
	var row tariffRow
	if err := repo.selectOne(ctx, repo.getExec(exec), &row, tariffSelect("").Where(sq.Eq{"t.id": id})); err != nil {
		return tariff.Tariff{}, trapNoRowsErr(err, tariff.Resource, id, "selecting tariff")
	}
	return row.tariff(), nil
}

func (repo tariffRepository) UpdateTariff(ctx context.Context, t tariff.Tariff, exec ...core.DBExecutor) (tariff.Tariff, error) {
	query := psql.Update("tariff").SetMap(map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"amount":      t.Amount,
		"frequency":   string(t.Frequency),
		"type":        string(t.Type),
		"is_active":   t.IsActive,
		"updated_at":  t.UpdatedAt,
		"deleted_at":  null.TimeFromPtr(t.DeletedAt),
	}).Where(sq.Eq{"id": t.ID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return tariff.Tariff{}, errors.Wrap(err, "updating tariff")
	}
	if n == 0 {
		return tariff.Tariff{}, core.NewNotFoundError(tariff.Resource, t.ID)
	}
	return t, nil
}

func (repo tariffRepository) UpsertClassTariff(ctx context.Context, ct tariff.ClassTariff, exec ...core.DBExecutor) (tariff.ClassTariff, error) {
	query := psql.Insert("class_tariff").
		Columns("class_id", "tariff_id", "is_active", "created_at", "updated_at").
		Values(ct.ClassID, ct.TariffID, ct.IsActive, ct.CreatedAt, ct.UpdatedAt).
		Suffix("ON CONFLICT (class_id, tariff_id) DO UPDATE SET is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING created_at")

	var createdAt time.Time
	if err := repo.selectOne(ctx, repo.getExec(exec), &createdAt, query); err != nil {
		return tariff.ClassTariff{}, errors.Wrap(err, "upserting class tariff")
	}
	ct.CreatedAt = createdAt.UTC()
	ct.Tariff = nil
	return ct, nil
}

func (repo tariffRepository) QueryClassTariffs(ctx context.Context, classID string, exec ...core.DBExecutor) ([]tariff.ClassTariff, error) {
	if !isUUID(classID) {
		return []tariff.ClassTariff{}, nil
	}
	query := tariffSelect("tariff").
		Columns("ct.class_id", "ct.tariff_id", "ct.is_active", "ct.created_at", "ct.updated_at").
		Join("class_tariff ct ON ct.tariff_id = t.id").
		Where(sq.Eq{"ct.class_id": classID}).
		OrderBy("t.name ASC")

	var rows []classTariffRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting class tariffs")
	}
	cts := make([]tariff.ClassTariff, 0, len(rows))
	for _, row := range rows {
		t := row.Tariff.tariff()
		cts = append(cts, tariff.ClassTariff{
			ClassID:   row.ClassID,
			TariffID:  row.TariffID,
			IsActive:  row.IsActive,
			CreatedAt: row.CreatedAt.UTC(),
			UpdatedAt: row.UpdatedAt.UTC(),
			Tariff:    &t,
		})
	}
	return cts, nil
}

func (repo tariffRepository) ActiveTariffsForClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]tariff.Tariff, error) {
	if !isUUID(classID) {
		return []tariff.Tariff{}, nil
	}
	query := tariffSelect("").
		Join("class_tariff ct ON ct.tariff_id = t.id").
		Where(sq.Eq{"ct.class_id": classID, "ct.is_active": true, "t.is_active": true}).
		OrderBy("t.created_at ASC", "t.name ASC")

	var rows []tariffRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting class tariffs")
	}
	return tariffsFromRows(rows), nil
}
