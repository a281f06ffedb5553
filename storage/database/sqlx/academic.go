package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
)

var (
	yearColumns = []string{"id", "name", "start_date", "end_date", "is_billing_open", "created_at", "updated_at"}
	termColumns = []string{
		"id", "academic_year_id", "name", "sequence", "start_date", "end_date", "is_billing_open", "created_at", "updated_at",
	}
)

type yearRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	StartDate     time.Time `db:"start_date"`
	EndDate       time.Time `db:"end_date"`
	IsBillingOpen bool      `db:"is_billing_open"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (row yearRow) year() academic.AcademicYear {
	return academic.AcademicYear{
		ID:            row.ID,
		Name:          row.Name,
		StartDate:     core.Date(row.StartDate),
		EndDate:       core.Date(row.EndDate),
		IsBillingOpen: row.IsBillingOpen,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type termRow struct {
	ID             string    `db:"id"`
	AcademicYearID string    `db:"academic_year_id"`
	Name           string    `db:"name"`
	Sequence       int       `db:"sequence"`
	StartDate      time.Time `db:"start_date"`
	EndDate        time.Time `db:"end_date"`
	IsBillingOpen  bool      `db:"is_billing_open"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (row termRow) term() academic.Term {
	return academic.Term{
		ID:             row.ID,
		AcademicYearID: row.AcademicYearID,
		Name:           row.Name,
		Sequence:       row.Sequence,
		StartDate:      core.Date(row.StartDate),
		EndDate:        core.Date(row.EndDate),
		IsBillingOpen:  row.IsBillingOpen,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type academicRepository struct {
	repository
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{repository{exec: exec}}
}

func (repo academicRepository) CreateYear(ctx context.Context, year academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	year.ID = uuid.New().String()
	query := psql.Insert("academic_year").Columns(yearColumns...).Values(
		year.ID, year.Name, year.StartDate, year.EndDate, year.IsBillingOpen, year.CreatedAt, year.UpdatedAt,
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return academic.AcademicYear{}, errors.Wrap(err, "inserting academic year")
	}
	return year, nil
}

func (repo academicRepository) QueryYears(ctx context.Context, exec ...core.DBExecutor) ([]academic.AcademicYear, error) {
	var rows []yearRow
	query := psql.Select(yearColumns...).From("academic_year").OrderBy("start_date DESC")
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting academic years")
	}
	years := make([]academic.AcademicYear, 0, len(rows))
	for _, row := range rows {
		years = append(years, row.year())
	}
	return years, nil
}

func (repo academicRepository) GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	if !isUUID(id) {
		return academic.AcademicYear{}, core.NewNotFoundError(academic.YearResource, id)
	}
	var row yearRow
	query := psql.Select(yearColumns...).From("academic_year").Where(sq.Eq{"id": id})
	if err := repo.selectOne(ctx, repo.getExec(exec), &row, query); err != nil {
		return academic.AcademicYear{}, trapNoRowsErr(err, academic.YearResource, id, "selecting academic year")
	}
	return row.year(), nil
}

func (repo academicRepository) UpdateYear(ctx context.Context, year academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	query := psql.Update("academic_year").SetMap(map[string]interface{}{
		"name":            year.Name,
		"start_date":      year.StartDate,
		"end_date":        year.EndDate,
		"is_billing_open": year.IsBillingOpen,
		"updated_at":      year.UpdatedAt,
	}).Where(sq.Eq{"id": year.ID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return academic.AcademicYear{}, errors.Wrap(err, "updating academic year")
	}
	if n == 0 {
		return academic.AcademicYear{}, core.NewNotFoundError(academic.YearResource, year.ID)
	}
	return year, nil
}

func (repo academicRepository) CreateTerm(ctx context.Context, term academic.Term, exec ...core.DBExecutor) (academic.Term, error) {
	term.ID = uuid.New().String()
	query := psql.Insert("term").Columns(termColumns...).Values(
		term.ID, term.AcademicYearID, term.Name, term.Sequence, term.StartDate, term.EndDate,
		term.IsBillingOpen, term.CreatedAt, term.UpdatedAt,
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return academic.Term{}, errors.Wrap(err, "inserting term")
	}
	return term, nil
}

func (repo academicRepository) QueryTerms(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]academic.Term, error) {
	var rows []termRow
	query := psql.Select(termColumns...).From("term").
		Where(sq.Eq{"academic_year_id": yearID}).
		OrderBy("start_date ASC")
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting terms")
	}
	terms := make([]academic.Term, 0, len(rows))
	for _, row := range rows {
		terms = append(terms, row.term())
	}
	return terms, nil
}

func (repo academicRepository) GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Term, error) {
	if !isUUID(id) {
		return academic.Term{}, core.NewNotFoundError(academic.TermResource, id)
	}
	var row termRow
	query := psql.Select(termColumns...).From("term").Where(sq.Eq{"id": id})
	if err := repo.selectOne(ctx, repo.getExec(exec), &row, query); err != nil {
		return academic.Term{}, trapNoRowsErr(err, academic.TermResource, id, "selecting term")
	}
	return row.term(), nil
}

func (repo academicRepository) UpdateTerm(ctx context.Context, term academic.Term, exec ...core.DBExecutor) (academic.Term, error) {
	query := psql.Update("term").SetMap(map[string]interface{}{
		"name":            term.Name,
		"sequence":        term.Sequence,
		"start_date":      term.StartDate,
		"end_date":        term.EndDate,
		"is_billing_open": term.IsBillingOpen,
		"updated_at":      term.UpdatedAt,
	}).Where(sq.Eq{"id": term.ID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return academic.Term{}, errors.Wrap(err, "updating term")
	}
	if n == 0 {
		return academic.Term{}, core.NewNotFoundError(academic.TermResource, term.ID)
	}
	return term, nil
}
