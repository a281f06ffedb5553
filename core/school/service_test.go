package school_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

func enrollment(t *testing.T, svc *school.Service, classID string) int {
	t.Helper()
	class, err := svc.GetClass(context.Background(), classID)
	require.NoError(t, err)
	return class.CurrentEnrollment
}

func TestService_Enroll(t *testing.T) {
	svc := testutil.NewServices().Directory
	ctx := context.Background()
	grade := testutil.CreateGrade(t, svc, "P1", 1)
	class := testutil.CreateClass(t, svc, grade.ID, "P1 A", 2)

	_, err := svc.CreateClass(ctx, school.NewClass{GradeID: "nope", Name: "P1 B", Capacity: 10})
	assert.True(t, core.IsNotFound(err, school.GradeResource))

	s1 := testutil.CreateStudent(t, svc, class.ID, "Alice", "Uwase", "")
	assert.Equal(t, school.StatusActive, s1.Status)
	assert.False(t, s1.EnrollmentDate.IsZero())
	testutil.CreateStudent(t, svc, class.ID, "Bob", "Mugisha", "")
	assert.Equal(t, 2, enrollment(t, svc, class.ID))

	_, err = svc.Enroll(ctx, school.NewStudent{FirstName: "Carl", LastName: "Ndayisaba", ClassID: class.ID})
	require.IsType(t, &core.ValidationError{}, err)
	assert.Equal(t, "class_id", err.(*core.ValidationError).Fields[0].Field)

	students, err := svc.QueryStudents(ctx, school.StudentFilter{})
	require.NoError(t, err)
	assert.Len(t, students, 2, "a rejected enrollment leaves nothing behind")

	unassigned := testutil.CreateStudent(t, svc, "", "Carl", "Ndayisaba", "")
	assert.Empty(t, unassigned.ClassID)

	_, err = svc.Enroll(ctx, school.NewStudent{FirstName: "Dan", LastName: "Keza", ClassID: "nope"})
	assert.True(t, core.IsNotFound(err, school.ClassResource))
}

func TestService_MoveAndChangeStatus(t *testing.T) {
	svc := testutil.NewServices().Directory
	ctx := context.Background()
	grade := testutil.CreateGrade(t, svc, "P1", 1)
	classA := testutil.CreateClass(t, svc, grade.ID, "P1 A", 1)
	classB := testutil.CreateClass(t, svc, grade.ID, "P1 B", 1)
	alice := testutil.CreateStudent(t, svc, classA.ID, "Alice", "Uwase", "")

	student, err := svc.Move(ctx, alice.ID, classB.ID)
	require.NoError(t, err)
	assert.Equal(t, classB.ID, student.ClassID)
	assert.Equal(t, 0, enrollment(t, svc, classA.ID))
	assert.Equal(t, 1, enrollment(t, svc, classB.ID))

	bob := testutil.CreateStudent(t, svc, classA.ID, "Bob", "Mugisha", "")
	_, err = svc.Move(ctx, bob.ID, classB.ID)
	assert.IsType(t, &core.ValidationError{}, err, "class B is full")
	assert.Equal(t, 1, enrollment(t, svc, classA.ID))

	_, err = svc.Move(ctx, bob.ID, "nope")
	assert.True(t, core.IsNotFound(err, school.ClassResource))

	_, err = svc.ChangeStatus(ctx, alice.ID, school.StatusGraduated)
	require.NoError(t, err)
	assert.Equal(t, 0, enrollment(t, svc, classB.ID), "inactive students release their seat")

	_, err = svc.Move(ctx, bob.ID, classB.ID)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, alice.ID, school.StatusActive)
	assert.IsType(t, &core.ValidationError{}, err, "no seat left to take back")

	student, err = svc.Move(ctx, bob.ID, "")
	require.NoError(t, err)
	assert.Empty(t, student.ClassID)
	assert.Equal(t, 0, enrollment(t, svc, classB.ID))

	_, err = svc.ChangeStatus(ctx, bob.ID, school.StudentStatus("expelled"))
	assert.IsType(t, &core.ValidationError{}, err)

	_, err = svc.ChangeStatus(ctx, "nope", school.StatusInactive)
	assert.True(t, core.IsNotFound(err, school.StudentResource))
}

func TestService_QueryStudents(t *testing.T) {
	svc := testutil.NewServices().Directory
	ctx := context.Background()
	p1 := testutil.CreateGrade(t, svc, "P1", 1)
	p2 := testutil.CreateGrade(t, svc, "P2", 2)
	classA := testutil.CreateClass(t, svc, p1.ID, "P1 A", 10)
	classB := testutil.CreateClass(t, svc, p2.ID, "P2 A", 10)
	alice := testutil.CreateStudent(t, svc, classA.ID, "Alice", "Uwase", "")
	bob := testutil.CreateStudent(t, svc, classB.ID, "Bob", "Mugisha", "")
	carl := testutil.CreateStudent(t, svc, classB.ID, "Carl", "Alinda", "")
	_, err := svc.ChangeStatus(ctx, carl.ID, school.StatusTransferred)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter school.StudentFilter
		want   []string
	}{
		{"all", school.StudentFilter{}, []string{carl.ID, bob.ID, alice.ID}},
		{"by class", school.StudentFilter{ClassID: classB.ID}, []string{carl.ID, bob.ID}},
		{"by grade", school.StudentFilter{GradeID: p1.ID}, []string{alice.ID}},
		{"by status", school.StudentFilter{Status: school.StatusActive}, []string{bob.ID, alice.ID}},
		{"search", school.StudentFilter{Search: "ali"}, []string{carl.ID, alice.ID}},
		{"no match", school.StudentFilter{Search: "zz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := svc.QueryStudents(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, s := range students {
				got = append(got, s.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	classes, err := svc.QueryClasses(ctx, school.ClassFilter{GradeID: p2.ID})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, classB.ID, classes[0].ID)
}
