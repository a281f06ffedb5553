package academic

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
)

const (
	YearResource = "academic year"
	TermResource = "term"
)

var (
	errYearNameTaken     = "an academic year with this name already exists"
	errTermOutsideYear   = "term must fall within its academic year"
	errTermSequenceTaken = "a term with this sequence already exists in the academic year"
	errTermOverlaps      = "term overlaps another term of the academic year"
	errTermOtherYear     = "term does not belong to the academic year"
	errYearClosed        = "academic year is closed for billing"
	errTermClosed        = "term is closed for billing"
)

type (
	Repository interface {
		CreateYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		// QueryYears returns all the academic years, latest first.
		QueryYears(ctx context.Context, exec ...core.DBExecutor) ([]AcademicYear, error)
		GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (AcademicYear, error)
		UpdateYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)

		CreateTerm(ctx context.Context, term Term, exec ...core.DBExecutor) (Term, error)
		// QueryTerms returns the terms of the academic year ordered by start date.
		QueryTerms(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]Term, error)
		GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (Term, error)
		UpdateTerm(ctx context.Context, term Term, exec ...core.DBExecutor) (Term, error)
	}

	// Service owns the academic calendar: the periods bills are issued for.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{repo: repo}
}

func (svc *Service) checkYearName(ctx context.Context, name string) error {
	years, err := svc.repo.QueryYears(ctx)
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	for _, y := range years {
		if strings.EqualFold(y.Name, name) {
			return core.NewValidationError(nil, core.FieldError{Field: "name", Error: errYearNameTaken})
		}
	}
	return nil
}

func (svc *Service) CreateYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	now := time.Now().UTC()
	year := AcademicYear{
		Name:          ny.Name,
		StartDate:     ny.StartDate,
		EndDate:       ny.EndDate,
		IsBillingOpen: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	year, err := svc.repo.CreateYear(ctx, year)
	return year, errors.Wrap(err, "creating academic year")
}

func (svc *Service) QueryYears(ctx context.Context) ([]AcademicYear, error) {
	return svc.repo.QueryYears(ctx)
}

func (svc *Service) GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (AcademicYear, error) {
	return svc.repo.GetYear(ctx, id, exec...)
}

func (svc *Service) SetYearBilling(ctx context.Context, id string, open bool) (AcademicYear, error) {
	year, err := svc.repo.GetYear(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}
	year.IsBillingOpen = open
	year.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateYear(ctx, year)
}

func (svc *Service) CreateTerm(ctx context.Context, yearID string, nt NewTerm) (Term, error) {
	year, err := svc.repo.GetYear(ctx, yearID)
	if err != nil {
		return Term{}, err
	}
	if nt.StartDate.Before(year.StartDate) || nt.EndDate.After(year.EndDate) {
		return Term{}, core.NewValidationError(nil, core.FieldError{Field: "start_date", Error: errTermOutsideYear})
	}

	terms, err := svc.repo.QueryTerms(ctx, yearID)
	if err != nil {
		return Term{}, errors.Wrap(err, "querying terms")
	}
	for _, t := range terms {
		if t.Sequence == nt.Sequence {
			return Term{}, core.NewValidationError(nil, core.FieldError{Field: "sequence", Error: errTermSequenceTaken})
		}
		if !nt.StartDate.After(t.EndDate) && !nt.EndDate.Before(t.StartDate) {
			return Term{}, core.NewValidationError(nil, core.FieldError{Field: "start_date", Error: errTermOverlaps})
		}
	}

	now := time.Now().UTC()
	term := Term{
		AcademicYearID: yearID,
		Name:           nt.Name,
		Sequence:       nt.Sequence,
		StartDate:      nt.StartDate,
		EndDate:        nt.EndDate,
		IsBillingOpen:  true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	term, err = svc.repo.CreateTerm(ctx, term)
	return term, errors.Wrap(err, "creating term")
}

func (svc *Service) QueryTerms(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]Term, error) {
	if _, err := svc.repo.GetYear(ctx, yearID, exec...); err != nil {
		return nil, err
	}
	return svc.repo.QueryTerms(ctx, yearID, exec...)
}

func (svc *Service) GetTerm(ctx context.Context, id string, exec ...core.DBExecutor) (Term, error) {
	return svc.repo.GetTerm(ctx, id, exec...)
}

func (svc *Service) SetTermBilling(ctx context.Context, id string, open bool) (Term, error) {
	term, err := svc.repo.GetTerm(ctx, id)
	if err != nil {
		return Term{}, err
	}
	term.IsBillingOpen = open
	term.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTerm(ctx, term)
}

// Period is a resolved billing period: an academic year and, for term bills, one of its terms.
type Period struct {
	Year AcademicYear
	Term *Term
	// IsFirstTerm is set when Term is the earliest term of Year.
	IsFirstTerm bool
}

// Start returns the first day of the period.
func (p Period) Start() time.Time {
	if p.Term != nil {
		return p.Term.StartDate
	}
	return p.Year.StartDate
}

// End returns the last day of the period.
func (p Period) End() time.Time {
	if p.Term != nil {
		return p.Term.EndDate
	}
	return p.Year.EndDate
}

// Months returns the number of calendar months the period touches, at least 1.
func (p Period) Months() int {
	start, end := p.Start(), p.End()
	n := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

// TermID returns the period's term ID, "" for annual periods.
func (p Period) TermID() string {
	if p.Term != nil {
		return p.Term.ID
	}
	return ""
}

// CheckBillable resolves the billing period (yearID, termID); termID may be empty for annual bills.
// It fails with a core.NotFoundError for unknown references and a core.ValidationError when
// the term belongs to another year or the period is closed for billing.
func (svc *Service) CheckBillable(ctx context.Context, yearID, termID string, exec ...core.DBExecutor) (Period, error) {
	year, err := svc.repo.GetYear(ctx, yearID, exec...)
	if err != nil {
		return Period{}, err
	}
	if !year.IsBillingOpen {
		return Period{}, core.NewValidationError(nil, core.FieldError{Field: "academic_year_id", Error: errYearClosed})
	}
	period := Period{Year: year}
	if termID == "" {
		return period, nil
	}

	term, err := svc.repo.GetTerm(ctx, termID, exec...)
	if err != nil {
		return Period{}, err
	}
	if term.AcademicYearID != year.ID {
		return Period{}, core.NewValidationError(nil, core.FieldError{Field: "term_id", Error: errTermOtherYear})
	}
	if !term.IsBillingOpen {
		return Period{}, core.NewValidationError(nil, core.FieldError{Field: "term_id", Error: errTermClosed})
	}

	terms, err := svc.repo.QueryTerms(ctx, yearID, exec...)
	if err != nil {
		return Period{}, errors.Wrap(err, "querying terms")
	}
	sort.SliceStable(terms, func(i, j int) bool { return terms[i].StartDate.Before(terms[j].StartDate) })
	period.Term = &term
	period.IsFirstTerm = len(terms) > 0 && terms[0].ID == term.ID
	return period, nil
}
