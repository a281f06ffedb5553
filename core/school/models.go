package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Rwiron/saintmassori-sub002/core"
)

type StudentStatus string

const (
	StatusActive      StudentStatus = "active"
	StatusInactive    StudentStatus = "inactive"
	StatusGraduated   StudentStatus = "graduated"
	StatusTransferred StudentStatus = "transferred"
)

var StudentStatuses = []StudentStatus{StatusActive, StatusInactive, StatusGraduated, StatusTransferred}

func (s StudentStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusGraduated, StatusTransferred:
		return true
	}
	return false
}

func (s StudentStatus) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusInactive:
		return "Inactive"
	case StatusGraduated:
		return "Graduated"
	case StatusTransferred:
		return "Transferred"
	}
	return string(s)
}

type Grade struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Class struct {
	ID                string    `json:"id"`
	GradeID           string    `json:"grade_id"`
	Name              string    `json:"name"`
	Capacity          int       `json:"capacity"`
	CurrentEnrollment int       `json:"current_enrollment"` // active students
	CreatedAt         time.Time `json:"created_at"`         // UTC
	UpdatedAt         time.Time `json:"updated_at"`         // UTC
}

func (c Class) IsFull() bool {
	return c.CurrentEnrollment >= c.Capacity
}

type Student struct {
	ID             string        `json:"id"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name"`
	ClassID        string        `json:"class_id,omitempty"` // empty when not assigned to a class
	Status         StudentStatus `json:"status"`
	EnrollmentDate time.Time     `json:"enrollment_date"`
	GuardianName   string        `json:"guardian_name"`
	GuardianEmail  string        `json:"guardian_email"`
	CreatedAt      time.Time     `json:"created_at"` // UTC
	UpdatedAt      time.Time     `json:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// counts reports whether the student holds a seat in their class.
func (s Student) counts() bool {
	return s.ClassID != "" && s.Status == StatusActive
}

type NewGrade struct {
	Name  string `json:"name" validate:"required,notblank"`
	Level int    `json:"level" validate:"min=0"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	return validate.Struct(ng)
}

type NewClass struct {
	GradeID  string `json:"grade_id" validate:"required"`
	Name     string `json:"name" validate:"required,notblank"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type NewStudent struct {
	FirstName      string    `json:"first_name" validate:"required,notblank"`
	LastName       string    `json:"last_name" validate:"required,notblank"`
	ClassID        string    `json:"class_id"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	GuardianName   string    `json:"guardian_name"`
	GuardianEmail  string    `json:"guardian_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	return validate.Struct(ns)
}

type MoveStudent struct {
	ClassID string `json:"class_id"` // empty unassigns the student
}

type ChangeStatus struct {
	Status StudentStatus `json:"status" validate:"required,studentstatus"`
}

type ClassFilter struct {
	GradeID string `query:"grade_id"`
}

type StudentFilter struct {
	Search  string        `query:"search"`
	ClassID string        `query:"class_id"`
	GradeID string        `query:"grade_id"`
	Status  StudentStatus `query:"status"`
}

func (sf *StudentFilter) Clean() {
	sf.Search = core.CleanString(sf.Search)
}
