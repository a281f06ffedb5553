package echoapi

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
)

func Test_appHTTPErrorHandler(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name string
		err  error
		httpTest
	}{
		{
			name:     "stale bill",
			err:      errors.Wrap(billing.ErrStaleBill, "updating bill"),
			httpTest: httpTest{wantCode: http.StatusConflict, wantData: []byte(`{"error":"bill was modified concurrently","code":"stale_bill"}`)},
		},
		{
			name:     "duplicate bill",
			err:      errors.Wrap(&billing.DuplicateBillError{StudentID: "s", AcademicYearID: "y"}, "generating bills"),
			httpTest: httpTest{wantCode: http.StatusConflict},
		},
		{
			name:     "not found",
			err:      errors.Wrap(core.NewNotFoundError(billing.BillResource, "x"), "getting bill"),
			httpTest: httpTest{wantCode: http.StatusNotFound},
		},
		{
			name:     "field errors",
			err:      core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "must be positive"}),
			httpTest: httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"amount":"must be positive"}`)},
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			httpTest: httpTest{wantCode: http.StatusInternalServerError, wantData: []byte(`{"error":"Internal Server Error"}`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/bills/x/payments", "")
			env.srv.app.HTTPErrorHandler(tt.err, env.srv.app.NewContext(req, rec))
			checkCodeAndData(t, tt.httpTest, rec)
		})
	}
}
