package academic

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Rwiron/saintmassori-sub002/core"
)

type AcademicYear struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsBillingOpen bool      `json:"is_billing_open"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

type Term struct {
	ID             string    `json:"id"`
	AcademicYearID string    `json:"academic_year_id"`
	Name           string    `json:"name"`
	Sequence       int       `json:"sequence"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	IsBillingOpen  bool      `json:"is_billing_open"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Contains reports whether the day `d` falls within the term.
func (t Term) Contains(d time.Time) bool {
	d = core.Date(d)
	return !d.Before(t.StartDate) && !d.After(t.EndDate)
}

type NewAcademicYear struct {
	Name      string    `json:"name" validate:"required,notblank"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (ny *NewAcademicYear) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ny.Name = core.CleanString(ny.Name)
	ny.StartDate = core.Date(ny.StartDate)
	ny.EndDate = core.Date(ny.EndDate)

	if err := validate.Struct(ny); err != nil {
		return err
	}
	return svc.checkYearName(ctx, ny.Name)
}

type NewTerm struct {
	Name      string    `json:"name" validate:"required,notblank"`
	Sequence  int       `json:"sequence" validate:"required,min=1"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.StartDate = core.Date(nt.StartDate)
	nt.EndDate = core.Date(nt.EndDate)
	return validate.Struct(nt)
}

type SetBilling struct {
	IsBillingOpen *bool `json:"is_billing_open" validate:"required"`
}
