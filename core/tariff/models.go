package tariff

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
)

type Tariff struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Frequency   Frequency       `json:"frequency"`
	Type        Type            `json:"type"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`           // UTC
	UpdatedAt   time.Time       `json:"updated_at"`           // UTC
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"` // UTC
}

func (t Tariff) IsDeleted() bool {
	return t.DeletedAt != nil
}

// ClassTariff binds a tariff to a class; only active bindings are billed.
type ClassTariff struct {
	ClassID   string    `json:"class_id"`
	TariffID  string    `json:"tariff_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	Tariff *Tariff `json:"tariff,omitempty"`
}

type NewTariff struct {
	Name        string          `json:"name" validate:"required,notblank"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Frequency   Frequency       `json:"frequency" validate:"required,frequency"`
	Type        Type            `json:"type" validate:"required,tarifftype"`
	IsActive    *bool           `json:"is_active"`
}

func (nt *NewTariff) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.Amount = nt.Amount.Round(2)
	return validate.Struct(nt)
}

// UpdateTariff defines what may be changed on an existing Tariff; zero fields are left untouched.
type UpdateTariff struct {
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Amount      decimal.NullDecimal `json:"amount" validate:"omitempty,gt=0"`
	Frequency   Frequency           `json:"frequency" validate:"omitempty,frequency"`
	Type        Type                `json:"type" validate:"omitempty,tarifftype"`
	IsActive    *bool               `json:"is_active"`
}

func (upd *UpdateTariff) Validate(validate *validator.Validate) error {
	upd.Name = core.CleanString(upd.Name)
	if upd.Description != nil {
		desc := core.CleanString(*upd.Description)
		upd.Description = &desc
	}
	if upd.Amount.Valid {
		upd.Amount.Decimal = upd.Amount.Decimal.Round(2)
	}
	return validate.Struct(upd)
}

type AssignTariff struct {
	IsActive *bool `json:"is_active"`
}

type QueryFilter struct {
	Search    string    `query:"search"`
	Type      Type      `query:"type"`
	Frequency Frequency `query:"frequency"`
	IsActive  *bool     `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
