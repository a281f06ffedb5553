package user

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
)

type stdLogger struct{ *log.Logger }

func (l stdLogger) Debug(msg string, _ ...interface{}) { l.Println(msg) }
func (l stdLogger) Info(msg string, _ ...interface{})  { l.Println(msg) }
func (l stdLogger) Warn(msg string, _ ...interface{})  { l.Println(msg) }
func (l stdLogger) Error(msg string, _ ...interface{}) { l.Println(msg) }
func (l stdLogger) Fatal(msg string, _ ...interface{}) { l.Fatal(msg) }

func Test_passwordPolicyViolation(t *testing.T) {
	LoadCommonPasswords(stdLogger{log.New(os.Stdout, "TEST : ", 0)})

	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg123!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Bursar2024!", want: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd1", want: pwdNoCommonTag},
		{name: "valid", pwd: "Gr8-Tuition!Fee", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passwordPolicyViolation(tt.pwd, "Jane Doe", "bursar2024", "jane@school.rw"))
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	nu := NewUser{
		Name:            "  Jane  ",
		Password:        "Gr8-Tuition!Fee",
		PasswordConfirm: "Gr8-Tuition!Fee",
		Roles:           []string{"admin:janitor"},
	}
	err := validate.Struct(nu)
	require.Error(t, err)

	errs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	fields := make(map[string]string)
	for _, e := range errs {
		fields[e.Field()] = e.Translate(translator)
	}
	assert.Equal(t, allRolesText, fields["roles"])
	assert.Equal(t, usernameOrEmailText, fields["username"])
	assert.Equal(t, usernameOrEmailText, fields["email"])
}
