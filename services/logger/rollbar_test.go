package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/user"
)

func Test_newEntry(t *testing.T) {
	bursar := user.User{ID: "u1", Username: "bursar"}
	clerk := user.User{ID: "u2", Username: "clerk"}
	dup := &billing.DuplicateBillError{StudentID: "s1", AcademicYearID: "y1"}
	boom := errors.New("boom")

	tests := []struct {
		name       string
		args       []interface{}
		wantActor  string
		wantErrs   int
		wantExtras map[string]interface{}
		wantOther  int
	}{
		{name: "no args"},
		{
			name:      "first user is the actor",
			args:      []interface{}{bursar, clerk},
			wantActor: "u1",
		},
		{
			name:       "coded error adds its code",
			args:       []interface{}{dup},
			wantErrs:   1,
			wantExtras: map[string]interface{}{"code": billing.CodeDuplicateBill},
		},
		{
			name:       "maps are merged",
			args:       []interface{}{boom, map[string]interface{}{"bill": "B-1"}, map[string]interface{}{"amount": "10.00"}},
			wantErrs:   1,
			wantExtras: map[string]interface{}{"bill": "B-1", "amount": "10.00"},
		},
		{
			name:      "anything else is kept for std",
			args:      []interface{}{42, "note"},
			wantOther: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEntry(tt.args)
			if tt.wantActor == "" {
				assert.Nil(t, e.actor)
			} else if assert.NotNil(t, e.actor) {
				assert.Equal(t, tt.wantActor, e.actor.ID)
			}
			assert.Len(t, e.errs, tt.wantErrs)
			assert.Equal(t, tt.wantExtras, e.extras)
			assert.Len(t, e.other, tt.wantOther)
		})
	}
}

func Test_entry_rollbarArgs(t *testing.T) {
	first, second := errors.New("first"), errors.New("second")
	e := newEntry([]interface{}{first, second, map[string]interface{}{"bill": "B-1"}})

	args := e.rollbarArgs("paying bill")
	if assert.Len(t, args, 3) {
		assert.Equal(t, "paying bill", args[0])
		assert.Equal(t, first, args[1])
		assert.Equal(t, map[string]interface{}{"bill": "B-1"}, args[2])
	}
	assert.Equal(t, []interface{}{"msg"}, entry{}.rollbarArgs("msg"))
}

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	conf := &core.Config{TestMode: true}
	logger := NewRollbarLogger(log.New(&buf, "", 0), conf)

	logger.Warn("overdue sweep", user.User{ID: "u1", Username: "bursar"}, map[string]interface{}{"bills": 3})

	out := buf.String()
	assert.Contains(t, out, "overdue sweep\n")
	assert.Contains(t, out, "map[bills:3]")
	assert.NotContains(t, out, "bursar")
}
