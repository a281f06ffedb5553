package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
)

func Test_academicApi(t *testing.T) {
	env := setup(t)
	registrar := env.token(t, env.createUser(t, "registrar", user.RoleAdminRegistrar))
	bursar := env.token(t, env.createUser(t, "bursar", user.RoleAdminBursar))

	yearBody := []byte(`{"name":"2024-2025","start_date":"2024-09-02T00:00:00Z","end_date":"2025-07-11T00:00:00Z"}`)

	runHTTPTests(t, env, []httpTest{
		{
			name: "directory role required", method: http.MethodPost, path: "/v1/academic-years", body: yearBody, token: bursar,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "end before start", method: http.MethodPost, path: "/v1/academic-years", token: registrar,
			body:     []byte(`{"name":"2024-2025","start_date":"2025-07-11T00:00:00Z","end_date":"2024-09-02T00:00:00Z"}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "unknown year", path: "/v1/academic-years/nope", token: bursar, wantCode: http.StatusNotFound},
	})

	rec := env.do(http.MethodPost, "/v1/academic-years", registrar, yearBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var year academic.AcademicYear
	unmarshal(t, rec, &year)
	assert.True(t, year.IsBillingOpen)

	rec = env.do(http.MethodPost, "/v1/academic-years/"+year.ID+"/terms", registrar,
		[]byte(`{"name":"Term 1","sequence":1,"start_date":"2024-09-02T00:00:00Z","end_date":"2024-12-13T00:00:00Z"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var term academic.Term
	unmarshal(t, rec, &term)
	assert.Equal(t, year.ID, term.AcademicYearID)

	rec = env.do(http.MethodGet, "/v1/academic-years/"+year.ID+"/terms", bursar)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var terms []academic.Term
	unmarshal(t, rec, &terms)
	assert.Len(t, terms, 1)

	runHTTPTests(t, env, []httpTest{
		{
			name: "billing flag required", method: http.MethodPut, path: "/v1/terms/" + term.ID + "/billing", body: []byte(`{}`),
			token: registrar, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"is_billing_open":"this field is required"}`),
		},
	})

	rec = env.do(http.MethodPut, "/v1/terms/"+term.ID+"/billing", registrar, []byte(`{"is_billing_open":false}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &term)
	assert.False(t, term.IsBillingOpen)

	rec = env.do(http.MethodPut, "/v1/academic-years/"+year.ID+"/billing", registrar, []byte(`{"is_billing_open":false}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &year)
	assert.False(t, year.IsBillingOpen)
}

func Test_schoolApi(t *testing.T) {
	env := setup(t)
	registrar := env.token(t, env.createUser(t, "registrar", user.RoleAdminRegistrar))
	bursar := env.token(t, env.createUser(t, "bursar", user.RoleAdminBursar))

	rec := env.do(http.MethodPost, "/v1/grades", registrar, []byte(`{"name":"Primary 1","level":1}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grade school.Grade
	unmarshal(t, rec, &grade)

	rec = env.do(http.MethodPost, "/v1/classes", registrar, []byte(fmt.Sprintf(`{"grade_id":%q,"name":"P1 A","capacity":1}`, grade.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class school.Class
	unmarshal(t, rec, &class)

	runHTTPTests(t, env, []httpTest{
		{
			name: "directory role required", method: http.MethodPost, path: "/v1/grades", body: []byte(`{"name":"Primary 2"}`),
			token: bursar, wantCode: http.StatusForbidden,
		},
		{
			name: "blank first name", method: http.MethodPost, path: "/v1/students", token: registrar,
			body:     []byte(`{"first_name":"  ","last_name":"Uwase"}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "unknown class", path: "/v1/classes/nope", token: bursar, wantCode: http.StatusNotFound},
	})

	rec = env.do(http.MethodPost, "/v1/students", registrar, []byte(fmt.Sprintf(`{"first_name":"Aline","last_name":"Uwase","class_id":%q}`, class.ID)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var student school.Student
	unmarshal(t, rec, &student)
	assert.Equal(t, school.StatusActive, student.Status)

	rec = env.do(http.MethodGet, "/v1/classes/"+class.ID, bursar)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &class)
	assert.Equal(t, 1, class.CurrentEnrollment)

	rec = env.do(http.MethodGet, "/v1/students?search=aline", bursar)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var students []school.Student
	unmarshal(t, rec, &students)
	assert.Len(t, students, 1)

	runHTTPTests(t, env, []httpTest{
		{
			name: "invalid status", method: http.MethodPut, path: "/v1/students/" + student.ID + "/status", token: registrar,
			body: []byte(`{"status":"expelled"}`), wantCode: http.StatusBadRequest,
		},
	})

	rec = env.do(http.MethodPut, "/v1/students/"+student.ID+"/status", registrar, []byte(`{"status":"graduated"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &student)
	assert.Equal(t, school.StatusGraduated, student.Status)

	rec = env.do(http.MethodPut, "/v1/students/"+student.ID+"/class", registrar, []byte(`{"class_id":""}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var unassigned school.Student
	unmarshal(t, rec, &unassigned)
	assert.Equal(t, student.ID, unassigned.ID)
	assert.Empty(t, unassigned.ClassID)
}

func Test_tariffApi(t *testing.T) {
	env := setup(t)
	registrar := env.token(t, env.createUser(t, "registrar", user.RoleAdminRegistrar))
	bursar := env.token(t, env.createUser(t, "bursar", user.RoleAdminBursar))

	body := []byte(`{"name":"Tuition","amount":"100","frequency":"per_term","type":"tuition"}`)
	runHTTPTests(t, env, []httpTest{
		{
			name: "billing role required", method: http.MethodPost, path: "/v1/tariffs", body: body,
			token: registrar, wantCode: http.StatusForbidden,
		},
		{
			name: "unknown frequency", method: http.MethodPost, path: "/v1/tariffs", token: bursar,
			body:     []byte(`{"name":"Tuition","amount":"100","frequency":"weekly","type":"tuition"}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "options", path: "/v1/tariffs/options", token: registrar, wantCode: http.StatusOK, wantData: marshalObj(t, tariff.GetOptions())},
	})

	rec := env.do(http.MethodPost, "/v1/tariffs", bursar, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var trf tariff.Tariff
	unmarshal(t, rec, &trf)
	assert.True(t, trf.IsActive)
	assert.Equal(t, "100.00", trf.Amount.StringFixed(2))

	rec = env.do(http.MethodPut, "/v1/tariffs/"+trf.ID, bursar, []byte(`{"amount":"120.5"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &trf)
	assert.Equal(t, "120.50", trf.Amount.StringFixed(2))

	grade := env.createGrade(t)
	class := env.createClass(t, grade.ID)
	rec = env.do(http.MethodPut, "/v1/classes/"+class.ID+"/tariffs/"+trf.ID, bursar, []byte(`{}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var binding tariff.ClassTariff
	unmarshal(t, rec, &binding)
	assert.True(t, binding.IsActive)

	rec = env.do(http.MethodGet, "/v1/classes/"+class.ID+"/tariffs", registrar)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bindings []tariff.ClassTariff
	unmarshal(t, rec, &bindings)
	require.Len(t, bindings, 1)
	assert.Equal(t, trf.ID, bindings[0].TariffID)

	rec = env.do(http.MethodDelete, "/v1/tariffs/"+trf.ID, bursar)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(http.MethodGet, "/v1/tariffs/"+trf.ID, bursar)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (env testEnv) createGrade(t *testing.T) school.Grade {
	grade, err := env.svcs.Directory.CreateGrade(context.Background(), school.NewGrade{Name: "Primary 1", Level: 1})
	require.NoError(t, err)
	return grade
}

func (env testEnv) createClass(t *testing.T, gradeID string) school.Class {
	class, err := env.svcs.Directory.CreateClass(context.Background(), school.NewClass{GradeID: gradeID, Name: "P1 A", Capacity: 30})
	require.NoError(t, err)
	return class
}
