package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Rwiron/saintmassori-sub002/core/user"
	exportsvc "github.com/Rwiron/saintmassori-sub002/services/export"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// today is the clock of the billing service under test.
var today = testutil.Date(2024, time.September, 10)

type testEnv struct {
	srv  *Server
	svcs testutil.Services
}

func setup(t *testing.T) testEnv {
	t.Helper()
	svcs := testutil.NewServices(testutil.Options{Now: func() time.Time { return today }})

	validate, translator := testutil.NewValidator()

	srv := NewServer(&Options{
		Conf:           svcs.Conf,
		Logger:         svcs.Logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		Users:          svcs.Users,
		Calendar:       svcs.Calendar,
		Directory:      svcs.Directory,
		Tariffs:        svcs.Tariffs,
		Billing:        svcs.Billing,
		Export:         exportsvc.NewService(svcs.Conf),
	})
	return testEnv{srv: srv, svcs: svcs}
}

func (env testEnv) createUser(t *testing.T, uname string, roles ...string) user.User {
	return testutil.CreateUser(t, env.svcs.UserRepo, uname, uname, uname+"@test.rw", "Pa$$w0rd!", roles, true)
}

func (env testEnv) token(t *testing.T, usr user.User) string {
	token, err := env.srv.auth.GenerateToken(env.srv.auth.claimsFor(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (env testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type codedErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := env.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
