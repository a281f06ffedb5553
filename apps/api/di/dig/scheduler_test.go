package dig_container

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/testutil"
)

type markerMock struct {
	calls int
	err   error
}

func (m *markerMock) MarkOverdue(context.Context) (int, error) {
	m.calls++
	return 3, m.err
}

func Test_scheduleOverdue(t *testing.T) {
	logger := testutil.NewLogger(core.NewTestConfig())

	tests := []struct {
		name     string
		spec     string
		wantJobs int
		wantErr  bool
	}{
		{name: "disabled", spec: "", wantJobs: 0},
		{name: "daily", spec: "0 2 * * *", wantJobs: 1},
		{name: "descriptor", spec: "@hourly", wantJobs: 1},
		{name: "invalid", spec: "every day", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := scheduleOverdue(tt.spec, logger, &markerMock{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, c.Entries(), tt.wantJobs)
		})
	}
}

func Test_overdueJob(t *testing.T) {
	logger := testutil.NewLogger(core.NewTestConfig())

	ok := &markerMock{}
	overdueJob(ok, logger)()
	assert.Equal(t, 1, ok.calls)

	failing := &markerMock{err: errors.New("db down")}
	assert.NotPanics(t, overdueJob(failing, logger))
	assert.Equal(t, 1, failing.calls)
}
