package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/school"
)

var (
	gradeColumns   = []string{"id", "name", "level", "created_at", "updated_at"}
	classColumns   = []string{"id", "grade_id", "name", "capacity", "current_enrollment", "created_at", "updated_at"}
	studentColumns = []string{
		"id", "first_name", "last_name", "class_id", "status", "enrollment_date",
		"guardian_name", "guardian_email", "created_at", "updated_at",
	}
)

type gradeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Level     int       `db:"level"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type classRow struct {
	ID                string    `db:"id"`
	GradeID           string    `db:"grade_id"`
	Name              string    `db:"name"`
	Capacity          int       `db:"capacity"`
	CurrentEnrollment int       `db:"current_enrollment"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (row classRow) class() school.Class {
	return school.Class{
		ID:                row.ID,
		GradeID:           row.GradeID,
		Name:              row.Name,
		Capacity:          row.Capacity,
		CurrentEnrollment: row.CurrentEnrollment,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

type studentRow struct {
	ID             string      `db:"id"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	ClassID        null.String `db:"class_id"`
	Status         string      `db:"status"`
	EnrollmentDate time.Time   `db:"enrollment_date"`
	GuardianName   string      `db:"guardian_name"`
	GuardianEmail  string      `db:"guardian_email"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (row studentRow) student() school.Student {
	return school.Student{
		ID:             row.ID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		ClassID:        row.ClassID.String,
		Status:         school.StudentStatus(row.Status),
		EnrollmentDate: core.Date(row.EnrollmentDate),
		GuardianName:   row.GuardianName,
		GuardianEmail:  row.GuardianEmail,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CreateGrade(ctx context.Context, grade school.Grade, exec ...core.DBExecutor) (school.Grade, error) {
	grade.ID = uuid.New().String()
	query := psql.Insert("grade").Columns(gradeColumns...).
		Values(grade.ID, grade.Name, grade.Level, grade.CreatedAt, grade.UpdatedAt)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		if isUniqueViolation(err) {
			return school.Grade{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "already exists"})
		}
		return school.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return grade, nil
}

func (repo schoolRepository) QueryGrades(ctx context.Context, exec ...core.DBExecutor) ([]school.Grade, error) {
	var rows []gradeRow
	query := psql.Select(gradeColumns...).From("grade").OrderBy("level ASC", "name ASC")
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	grades := make([]school.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, school.Grade(row))
	}
	return grades, nil
}

func (repo schoolRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (school.Grade, error) {
	if !isUUID(id) {
		return school.Grade{}, core.NewNotFoundError(school.GradeResource, id)
	}
	var row gradeRow
	query := psql.Select(gradeColumns...).From("grade").Where(sq.Eq{"id": id})
	if err := repo.selectOne(ctx, repo.getExec(exec), &row, query); err != nil {
		return school.Grade{}, trapNoRowsErr(err, school.GradeResource, id, "selecting grade")
	}
	return school.Grade(row), nil
}

func (repo schoolRepository) CreateClass(ctx context.Context, class school.Class, exec ...core.DBExecutor) (school.Class, error) {
	class.ID = uuid.New().String()
	query := psql.Insert("class").Columns(classColumns...).Values(
		class.ID, class.GradeID, class.Name, class.Capacity, class.CurrentEnrollment, class.CreatedAt, class.UpdatedAt,
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		if isUniqueViolation(err) {
			return school.Class{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "already exists"})
		}
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return class, nil
}

func (repo schoolRepository) QueryClasses(ctx context.Context, filter school.ClassFilter, exec ...core.DBExecutor) ([]school.Class, error) {
	query := psql.Select(classColumns...).From("class").OrderBy("name ASC")
	if filter.GradeID != "" {
		if !isUUID(filter.GradeID) {
			return []school.Class{}, nil
		}
		query = query.Where(sq.Eq{"grade_id": filter.GradeID})
	}

	var rows []classRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (school.Class, error) {
	if !isUUID(id) {
		return school.Class{}, core.NewNotFoundError(school.ClassResource, id)
	}
	query := psql.Select(classColumns...).From("class").Where(sq.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	var row classRow
	if err := repo.selectOne(ctx, repo.getExec(exec), &row, query); err != nil {
		return school.Class{}, trapNoRowsErr(err, school.ClassResource, id, "selecting class")
	}
	return row.class(), nil
}

func (repo schoolRepository) AddEnrollment(ctx context.Context, classID string, delta int, exec ...core.DBExecutor) error {
	query := psql.Update("class").
		Set("current_enrollment", sq.Expr("GREATEST(current_enrollment + ?, 0)", delta)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": classID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return errors.Wrap(err, "updating class enrollment")
	}
	if n == 0 {
		return core.NewNotFoundError(school.ClassResource, classID)
	}
	return nil
}

func (repo schoolRepository) CreateStudent(ctx context.Context, student school.Student, exec ...core.DBExecutor) (school.Student, error) {
	student.ID = uuid.New().String()
	query := psql.Insert("student").Columns(studentColumns...).Values(
		student.ID, student.FirstName, student.LastName, nullString(student.ClassID), string(student.Status),
		student.EnrollmentDate, student.GuardianName, student.GuardianEmail, student.CreatedAt, student.UpdatedAt,
	)
	if _, err := repo.execute(ctx, repo.getExec(exec), query); err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return student, nil
}

func (repo schoolRepository) QueryStudents(ctx context.Context, filter school.StudentFilter, exec ...core.DBExecutor) ([]school.Student, error) {
	query := psql.Select(studentColumns...).From("student").OrderBy("last_name ASC", "first_name ASC", "id ASC")

	for _, id := range []string{filter.ClassID, filter.GradeID} {
		if id != "" && !isUUID(id) {
			return []school.Student{}, nil
		}
	}
	if filter.ClassID != "" {
		query = query.Where(sq.Eq{"class_id": filter.ClassID})
	}
	if filter.GradeID != "" {
		query = query.Where("class_id IN (SELECT id FROM class WHERE grade_id = ?)", filter.GradeID)
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Search != "" {
		query = query.Where("(first_name || ' ' || last_name) ILIKE ?", likePattern(filter.Search))
	}

	var rows []studentRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo schoolRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (school.Student, error) {
	if !isUUID(id) {
		return school.Student{}, core.NewNotFoundError(school.StudentResource, id)
	}
	var row studentRow
	query := psql.Select(studentColumns...).From("student").Where(sq.Eq{"id": id})
	if err := repo.selectOne(ctx, repo.getExec(exec), &row, query); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.StudentResource, id, "selecting student")
	}
	return row.student(), nil
}

func (repo schoolRepository) UpdateStudent(ctx context.Context, student school.Student, exec ...core.DBExecutor) (school.Student, error) {
	query := psql.Update("student").SetMap(map[string]interface{}{
		"first_name":     student.FirstName,
		"last_name":      student.LastName,
		"class_id":       nullString(student.ClassID),
		"status":         string(student.Status),
		"guardian_name":  student.GuardianName,
		"guardian_email": student.GuardianEmail,
		"updated_at":     student.UpdatedAt,
	}).Where(sq.Eq{"id": student.ID})

	n, err := repo.execute(ctx, repo.getExec(exec), query)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return school.Student{}, core.NewNotFoundError(school.StudentResource, student.ID)
	}
	return student, nil
}
