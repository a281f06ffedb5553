package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateGrade(_ context.Context, grade school.Grade, _ ...core.DBExecutor) (school.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	grade.ID = uuid.New().String()
	repo.db.grades[grade.ID] = grade
	return grade, nil
}

func (repo *schoolRepository) QueryGrades(_ context.Context, _ ...core.DBExecutor) ([]school.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]school.Grade, 0, len(repo.db.grades))
	for _, g := range repo.db.grades {
		grades = append(grades, g)
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].Level == grades[j].Level {
			return grades[i].Name < grades[j].Name
		}
		return grades[i].Level < grades[j].Level
	})
	return grades, nil
}

func (repo *schoolRepository) GetGrade(_ context.Context, id string, _ ...core.DBExecutor) (school.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return g, nil
	}
	return school.Grade{}, core.NewNotFoundError(school.GradeResource, id)
}

func (repo *schoolRepository) CreateClass(_ context.Context, class school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	class.ID = uuid.New().String()
	repo.db.classes[class.ID] = class
	return class, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter school.ClassFilter, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		if filter.GradeID != "" && c.GradeID != filter.GradeID {
			continue
		}
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ bool, _ ...core.DBExecutor) (school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return c, nil
	}
	return school.Class{}, core.NewNotFoundError(school.ClassResource, id)
}

func (repo *schoolRepository) AddEnrollment(_ context.Context, classID string, delta int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.classes[classID]
	if !ok {
		return core.NewNotFoundError(school.ClassResource, classID)
	}
	c.CurrentEnrollment += delta
	if c.CurrentEnrollment < 0 {
		c.CurrentEnrollment = 0
	}
	repo.db.classes[classID] = c
	return nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, student school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	student.ID = uuid.New().String()
	repo.db.students[student.ID] = student
	return student, nil
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.StudentFilter, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]school.Student, 0)
	for _, s := range repo.db.students {
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		if filter.GradeID != "" {
			if c, ok := repo.db.classes[s.ClassID]; !ok || c.GradeID != filter.GradeID {
				continue
			}
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.FullName()), strings.ToLower(filter.Search)) {
			continue
		}
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName == students[j].LastName {
			if students[i].FirstName == students[j].FirstName {
				return students[i].ID < students[j].ID
			}
			return students[i].FirstName < students[j].FirstName
		}
		return students[i].LastName < students[j].LastName
	})
	return students, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return s, nil
	}
	return school.Student{}, core.NewNotFoundError(school.StudentResource, id)
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, student school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[student.ID]; !ok {
		return school.Student{}, core.NewNotFoundError(school.StudentResource, student.ID)
	}
	repo.db.students[student.ID] = student
	return student, nil
}
