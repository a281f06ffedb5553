package school

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
)

const (
	GradeResource   = "grade"
	ClassResource   = "class"
	StudentResource = "student"
)

var (
	studentStatusTag  = "studentstatus"
	studentStatusText = "invalid student status"

	errClassFull = "class is full"
)

type (
	Repository interface {
		CreateGrade(ctx context.Context, grade Grade, exec ...core.DBExecutor) (Grade, error)
		QueryGrades(ctx context.Context, exec ...core.DBExecutor) ([]Grade, error)
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)

		CreateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter, exec ...core.DBExecutor) ([]Class, error)
		// GetClass with forUpdate locks the class row until the end of the transaction.
		GetClass(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (Class, error)
		// AddEnrollment adds delta (may be negative) to the class' current enrollment.
		AddEnrollment(ctx context.Context, classID string, delta int, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, student Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available StudentFilter fields, ordered by last & first name.
		QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, student Student, exec ...core.DBExecutor) (Student, error)
	}

	// Service is the student, class & grade directory.
	Service struct {
		tx   core.Transactor
		repo Repository
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{tx: tx, repo: repo}
}

// InitValidators registers the directory validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(studentStatusTag, func(fl validator.FieldLevel) bool {
		return StudentStatus(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, studentStatusTag, studentStatusText)
}

func (svc *Service) CreateGrade(ctx context.Context, ng NewGrade) (Grade, error) {
	now := time.Now().UTC()
	grade, err := svc.repo.CreateGrade(ctx, Grade{Name: ng.Name, Level: ng.Level, CreatedAt: now, UpdatedAt: now})
	return grade, errors.Wrap(err, "creating grade")
}

func (svc *Service) QueryGrades(ctx context.Context) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx)
}

func (svc *Service) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error) {
	return svc.repo.GetGrade(ctx, id, exec...)
}

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if _, err := svc.repo.GetGrade(ctx, nc.GradeID); err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	class := Class{
		GradeID:   nc.GradeID,
		Name:      nc.Name,
		Capacity:  nc.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	class, err := svc.repo.CreateClass(ctx, class)
	return class, errors.Wrap(err, "creating class")
}

func (svc *Service) QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *Service) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error) {
	return svc.repo.GetClass(ctx, id, false, exec...)
}

// takeSeat locks the class and reserves a seat for an active student.
func (svc *Service) takeSeat(ctx context.Context, classID string, exec core.DBExecutor) error {
	class, err := svc.repo.GetClass(ctx, classID, true, exec)
	if err != nil {
		return err
	}
	if class.IsFull() {
		return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: errClassFull})
	}
	return svc.repo.AddEnrollment(ctx, classID, 1, exec)
}

func (svc *Service) Enroll(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	enrolledOn := core.Date(ns.EnrollmentDate)
	if enrolledOn.IsZero() {
		enrolledOn = core.Date(now)
	}
	student := Student{
		FirstName:      ns.FirstName,
		LastName:       ns.LastName,
		ClassID:        ns.ClassID,
		Status:         StatusActive,
		EnrollmentDate: enrolledOn,
		GuardianName:   ns.GuardianName,
		GuardianEmail:  ns.GuardianEmail,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if student.ClassID != "" {
			if err := svc.takeSeat(ctx, student.ClassID, exec); err != nil {
				return err
			}
		}
		var err error
		student, err = svc.repo.CreateStudent(ctx, student, exec)
		return errors.Wrap(err, "creating student")
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, exec...)
}

func (svc *Service) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error) {
	return svc.repo.GetStudent(ctx, id, exec...)
}

// update applies `change` to the student and keeps the class enrollment counters in sync with its seat.
func (svc *Service) update(ctx context.Context, id string, change func(s *Student)) (Student, error) {
	var student Student
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetStudent(ctx, id, exec)
		if err != nil {
			return err
		}
		student = orig
		change(&student)
		student.UpdatedAt = time.Now().UTC()

		if student.ClassID != "" && student.ClassID != orig.ClassID {
			if _, err = svc.repo.GetClass(ctx, student.ClassID, false, exec); err != nil {
				return err
			}
		}
		if orig.counts() && !(student.counts() && student.ClassID == orig.ClassID) {
			if err = svc.repo.AddEnrollment(ctx, orig.ClassID, -1, exec); err != nil {
				return errors.Wrap(err, "releasing seat")
			}
		}
		if student.counts() && !(orig.counts() && student.ClassID == orig.ClassID) {
			if err = svc.takeSeat(ctx, student.ClassID, exec); err != nil {
				return err
			}
		}

		student, err = svc.repo.UpdateStudent(ctx, student, exec)
		return errors.Wrap(err, "updating student")
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

// Move assigns the student to a class; an empty classID removes them from their class.
func (svc *Service) Move(ctx context.Context, id string, classID string) (Student, error) {
	classID = core.CleanString(classID)
	return svc.update(ctx, id, func(s *Student) { s.ClassID = classID })
}

func (svc *Service) ChangeStatus(ctx context.Context, id string, status StudentStatus) (Student, error) {
	if !status.IsValid() {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: studentStatusText})
	}
	return svc.update(ctx, id, func(s *Student) { s.Status = status })
}
