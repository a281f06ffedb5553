package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) CreateYear(_ context.Context, year academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	year.ID = uuid.New().String()
	repo.db.years[year.ID] = year
	return year, nil
}

func (repo *academicRepository) QueryYears(_ context.Context, _ ...core.DBExecutor) ([]academic.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	years := make([]academic.AcademicYear, 0, len(repo.db.years))
	for _, y := range repo.db.years {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.After(years[j].StartDate) })
	return years, nil
}

func (repo *academicRepository) GetYear(_ context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if y, ok := repo.db.years[id]; ok {
		return y, nil
	}
	return academic.AcademicYear{}, core.NewNotFoundError(academic.YearResource, id)
}

func (repo *academicRepository) UpdateYear(_ context.Context, year academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.years[year.ID]; !ok {
		return academic.AcademicYear{}, core.NewNotFoundError(academic.YearResource, year.ID)
	}
	repo.db.years[year.ID] = year
	return year, nil
}

func (repo *academicRepository) CreateTerm(_ context.Context, term academic.Term, _ ...core.DBExecutor) (academic.Term, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	term.ID = uuid.New().String()
	repo.db.terms[term.ID] = term
	return term, nil
}

func (repo *academicRepository) QueryTerms(_ context.Context, yearID string, _ ...core.DBExecutor) ([]academic.Term, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	terms := make([]academic.Term, 0)
	for _, t := range repo.db.terms {
		if t.AcademicYearID == yearID {
			terms = append(terms, t)
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].StartDate.Before(terms[j].StartDate) })
	return terms, nil
}

func (repo *academicRepository) GetTerm(_ context.Context, id string, _ ...core.DBExecutor) (academic.Term, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.terms[id]; ok {
		return t, nil
	}
	return academic.Term{}, core.NewNotFoundError(academic.TermResource, id)
}

func (repo *academicRepository) UpdateTerm(_ context.Context, term academic.Term, _ ...core.DBExecutor) (academic.Term, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.terms[term.ID]; !ok {
		return academic.Term{}, core.NewNotFoundError(academic.TermResource, term.ID)
	}
	repo.db.terms[term.ID] = term
	return term, nil
}
