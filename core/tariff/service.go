package tariff

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/school"
)

const Resource = "tariff"

var (
	frequencyTag  = "frequency"
	frequencyText = "invalid billing frequency"

	typeTag  = "tarifftype"
	typeText = "invalid tariff type"
)

type (
	Repository interface {
		CreateTariff(ctx context.Context, t Tariff, exec ...core.DBExecutor) (Tariff, error)
		// QueryTariffs returns non-deleted tariffs matching filter.
		QueryTariffs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Tariff, error)
		// GetTariff fails with a core.NotFoundError for deleted tariffs.
		GetTariff(ctx context.Context, id string, exec ...core.DBExecutor) (Tariff, error)
		UpdateTariff(ctx context.Context, t Tariff, exec ...core.DBExecutor) (Tariff, error)

		UpsertClassTariff(ctx context.Context, ct ClassTariff, exec ...core.DBExecutor) (ClassTariff, error)
		// QueryClassTariffs returns the class bindings of non-deleted tariffs, with their Tariff.
		QueryClassTariffs(ctx context.Context, classID string, exec ...core.DBExecutor) ([]ClassTariff, error)
		// ActiveTariffsForClass returns the active, non-deleted tariffs bound to the class by an active binding,
		// ordered by creation date then name.
		ActiveTariffsForClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Tariff, error)
	}

	// Service is the tariff catalog and the class↔tariff assignment.
	Service struct {
		repo      Repository
		directory *school.Service
	}
)

func NewService(repo Repository, directory *school.Service) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(directory, "directory"),
	).CheckAndPanic()

	return &Service{repo: repo, directory: directory}
}

// InitValidators registers the tariff validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(frequencyTag, func(fl validator.FieldLevel) bool {
		return Frequency(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)

	_ = validate.RegisterValidation(typeTag, func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)
}

func (svc *Service) Create(ctx context.Context, nt NewTariff) (Tariff, error) {
	now := time.Now().UTC()
	t := Tariff{
		Name:        nt.Name,
		Description: nt.Description,
		Amount:      nt.Amount.Round(2),
		Frequency:   nt.Frequency,
		Type:        nt.Type,
		IsActive:    nt.IsActive == nil || *nt.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t, err := svc.repo.CreateTariff(ctx, t)
	return t, errors.Wrap(err, "creating tariff")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Tariff, error) {
	return svc.repo.QueryTariffs(ctx, filter, ordering)
}

func (svc *Service) Get(ctx context.Context, id string) (Tariff, error) {
	return svc.repo.GetTariff(ctx, id)
}

// Update changes the tariff for bills generated from now on; issued bills keep their snapshots.
func (svc *Service) Update(ctx context.Context, id string, upd UpdateTariff) (Tariff, error) {
	t, err := svc.repo.GetTariff(ctx, id)
	if err != nil {
		return Tariff{}, err
	}
	if upd.Name != "" {
		t.Name = upd.Name
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Amount.Valid {
		t.Amount = upd.Amount.Decimal.Round(2)
	}
	if upd.Frequency != "" {
		t.Frequency = upd.Frequency
	}
	if upd.Type != "" {
		t.Type = upd.Type
	}
	if upd.IsActive != nil {
		t.IsActive = *upd.IsActive
	}
	t.UpdatedAt = time.Now().UTC()

	t, err = svc.repo.UpdateTariff(ctx, t)
	return t, errors.Wrap(err, "updating tariff")
}

// Delete soft deletes the tariff: it stops being billed but stays referenced by issued bills.
func (svc *Service) Delete(ctx context.Context, id string) error {
	t, err := svc.repo.GetTariff(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t.IsActive = false
	t.DeletedAt = &now
	t.UpdatedAt = now
	_, err = svc.repo.UpdateTariff(ctx, t)
	return errors.Wrap(err, "deleting tariff")
}

// AssignToClass binds the tariff to the class, or updates the binding's activation flag.
func (svc *Service) AssignToClass(ctx context.Context, classID, tariffID string, active bool) (ClassTariff, error) {
	if _, err := svc.directory.GetClass(ctx, classID); err != nil {
		return ClassTariff{}, err
	}
	t, err := svc.repo.GetTariff(ctx, tariffID)
	if err != nil {
		return ClassTariff{}, err
	}

	now := time.Now().UTC()
	ct, err := svc.repo.UpsertClassTariff(ctx, ClassTariff{
		ClassID:   classID,
		TariffID:  tariffID,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return ClassTariff{}, errors.Wrap(err, "assigning tariff")
	}
	ct.Tariff = &t
	return ct, nil
}

func (svc *Service) ClassTariffs(ctx context.Context, classID string) ([]ClassTariff, error) {
	if _, err := svc.directory.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return svc.repo.QueryClassTariffs(ctx, classID)
}

// ActiveForClass returns the tariffs billed to the students of the class.
func (svc *Service) ActiveForClass(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Tariff, error) {
	return svc.repo.ActiveTariffsForClass(ctx, classID, exec...)
}
