package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

type billingFixture struct {
	year    academic.AcademicYear
	term    academic.Term
	class   school.Class
	aline   school.Student
	eric    school.Student
	bursar  string
	regist  string
	outside string
}

func newBillingFixture(t *testing.T, env testEnv) billingFixture {
	svcs := env.svcs
	year := testutil.CreateYear(t, svcs.Calendar, "2024-2025", testutil.Date(2024, time.September, 2), testutil.Date(2025, time.July, 11))
	term := testutil.CreateTerm(t, svcs.Calendar, year.ID, "Term 1", 1, testutil.Date(2024, time.September, 2), testutil.Date(2024, time.December, 13))
	grade := testutil.CreateGrade(t, svcs.Directory, "Primary 1", 1)
	class := testutil.CreateClass(t, svcs.Directory, grade.ID, "P1 A", 30)
	testutil.CreateTariff(t, svcs.Tariffs, "Tuition", "100", tariff.PerTerm, tariff.Tuition, class.ID)
	testutil.CreateTariff(t, svcs.Tariffs, "Meals", "50", tariff.PerTerm, tariff.Meal, class.ID)

	return billingFixture{
		year:    year,
		term:    term,
		class:   class,
		aline:   testutil.CreateStudent(t, svcs.Directory, class.ID, "Aline", "Uwase", ""),
		eric:    testutil.CreateStudent(t, svcs.Directory, class.ID, "Eric", "Mugisha", ""),
		bursar:  env.token(t, env.createUser(t, "bursar", user.RoleAdminBursar)),
		regist:  env.token(t, env.createUser(t, "registrar", user.RoleAdminRegistrar)),
		outside: env.token(t, env.createUser(t, "guest")),
	}
}

func Test_billingApi(t *testing.T) {
	env := setup(t)
	fx := newBillingFixture(t, env)

	genBody := marshalObj(t, billing.GenerateRequest{
		Scope:          billing.Scope{ClassID: fx.class.ID},
		AcademicYearID: fx.year.ID,
		TermID:         fx.term.ID,
	})

	runHTTPTests(t, env, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/bills/generate", body: genBody,
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "admin required", method: http.MethodGet, path: "/v1/bills", token: fx.outside,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "billing role required", method: http.MethodPost, path: "/v1/bills/generate", body: genBody, token: fx.regist,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "scope required", method: http.MethodPost, path: "/v1/bills/generate", token: fx.bursar,
			body:     marshalObj(t, billing.GenerateRequest{AcademicYearID: fx.year.ID}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"scope":"exactly one of student_id, class_id or grade_id is required"}`),
		},
		{
			name: "unknown bill", path: "/v1/bills/nope", token: fx.regist,
			wantCode: http.StatusNotFound,
		},
		{name: "no bills yet", path: "/v1/bills", token: fx.regist, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "malformed filter", path: "/v1/bills", body: []byte(`{"status":1}`), token: fx.regist, wantCode: http.StatusBadRequest},
		{name: "malformed export filter", path: "/v1/bills/export", body: []byte(`{"status":1}`), token: fx.regist, wantCode: http.StatusBadRequest},
	})

	rec := env.do(http.MethodPost, "/v1/bills/generate", fx.bursar, genBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bills []billing.Bill
	unmarshal(t, rec, &bills)
	require.Len(t, bills, 2)

	var bill billing.Bill
	for _, b := range bills {
		assert.Equal(t, billing.StatusPending, b.Status)
		assert.Equal(t, "150.00", b.TotalAmount.StringFixed(2))
		if b.StudentID == fx.aline.ID {
			bill = b
		}
	}
	require.NotEmpty(t, bill.ID)

	t.Run("duplicate", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/bills/generate", fx.bursar, genBody)
		assert.Equal(t, http.StatusConflict, rec.Code)
		var got codedErr
		unmarshal(t, rec, &got)
		assert.Equal(t, billing.CodeDuplicateBill, got.Code)
	})

	t.Run("query", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/bills?student_id="+fx.aline.ID, fx.regist)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []billing.Bill
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, bill.ID, got[0].ID)

		rec = env.do(http.MethodGet, "/v1/bills/"+bill.ID, fx.regist)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("overpayment", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/bills/"+bill.ID+"/payments", fx.bursar, []byte(`{"amount":"150.01"}`))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var got codedErr
		unmarshal(t, rec, &got)
		assert.Equal(t, billing.CodeOverpayment, got.Code)
	})

	t.Run("payment", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/bills/"+bill.ID+"/payments", fx.bursar, []byte(`{"amount":"60","method":"Cash","reference":"RCPT-1"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got billing.Bill
		unmarshal(t, rec, &got)
		assert.Equal(t, "90.00", got.Balance.StringFixed(2))
		assert.Equal(t, billing.StatusPending, got.Status)
		require.Len(t, got.Payments, 1)
		assert.Equal(t, "cash", got.Payments[0].Method)
	})

	t.Run("cancel paid bill", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/bills/"+bill.ID+"/cancel", fx.bursar, []byte(`{"reason":"error"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		var got codedErr
		unmarshal(t, rec, &got)
		assert.Equal(t, billing.CodeInvalidStateTransition, got.Code)
	})

	t.Run("cancel unpaid bill", func(t *testing.T) {
		var other billing.Bill
		for _, b := range bills {
			if b.StudentID == fx.eric.ID {
				other = b
			}
		}
		rec := env.do(http.MethodPost, "/v1/bills/"+other.ID+"/cancel", fx.bursar, []byte(`{"reason":"left the school"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got billing.Bill
		unmarshal(t, rec, &got)
		assert.Equal(t, billing.StatusCancelled, got.Status)
		assert.Equal(t, "left the school", got.CancelReason)
	})

	t.Run("balance", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/students/"+fx.aline.ID+"/balance", fx.regist)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got billing.Balance
		unmarshal(t, rec, &got)
		assert.Equal(t, "150.00", got.TotalBilled.StringFixed(2))
		assert.Equal(t, "60.00", got.TotalPaid.StringFixed(2))
		assert.Equal(t, "90.00", got.TotalOwed.StringFixed(2))
		assert.Equal(t, 1, got.OpenBills)
	})

	t.Run("pdf", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/bills/"+bill.ID+"/pdf", fx.regist)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, mimePDF, rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("export", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/bills/export?class_id="+fx.class.ID+"&ordering=number", fx.regist)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, mimeXLSX, rec.Header().Get("Content-Type"))

		f, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Bills")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "P1 A", rows[1][2])
	})

	t.Run("mark overdue", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/bills/mark-overdue", fx.regist)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		today = testutil.Date(2024, time.December, 1)
		t.Cleanup(func() { today = testutil.Date(2024, time.September, 10) })

		rec = env.do(http.MethodPost, "/v1/bills/mark-overdue", fx.bursar)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, CountResponse{Count: 1})}, rec)

		rec = env.do(http.MethodGet, "/v1/bills/"+bill.ID, fx.regist)
		var got billing.Bill
		unmarshal(t, rec, &got)
		assert.Equal(t, billing.StatusOverdue, got.Status)
	})

	t.Run("report", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/reports/billing?academic_year_id="+fx.year.ID, fx.regist)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []billing.Counter
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, fx.term.ID, got[0].TermID)
		assert.Equal(t, 2, got[0].BillsIssued)
	})
}

func Test_billingApi_noApplicableTariff(t *testing.T) {
	env := setup(t)
	fx := newBillingFixture(t, env)
	grade := testutil.CreateGrade(t, env.svcs.Directory, "Primary 2", 2)
	empty := testutil.CreateClass(t, env.svcs.Directory, grade.ID, "P2 A", 30)
	student := testutil.CreateStudent(t, env.svcs.Directory, empty.ID, "Jean", "Habimana", "")

	body := []byte(fmt.Sprintf(`{"student_id":%q,"academic_year_id":%q,"term_id":%q}`, student.ID, fx.year.ID, fx.term.ID))
	rec := env.do(http.MethodPost, "/v1/bills/generate", fx.bursar, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var got codedErr
	unmarshal(t, rec, &got)
	assert.Equal(t, billing.CodeNoApplicableTariff, got.Code)
}
