package sqlxrepos

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rwiron/saintmassori-sub002/core"
)

func Test_isUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: uniqueViolation, Constraint: billPeriodConstraint}
	tests := []struct {
		name        string
		err         error
		constraints []string
		want        bool
	}{
		{name: "any constraint", err: dup, want: true},
		{name: "wrapped", err: errors.Wrap(dup, "inserting bill"), constraints: []string{billPeriodConstraint}, want: true},
		{name: "other constraint", err: dup, constraints: []string{"bill_number_key"}, want: false},
		{name: "other code", err: &pq.Error{Code: "23503"}, want: false},
		{name: "not a pq error", err: sql.ErrConnDone, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err, tt.constraints...))
		})
	}
}

func Test_trapNoRowsErr(t *testing.T) {
	err := trapNoRowsErr(errors.WithStack(sql.ErrNoRows), "bill", "b1", "selecting bill")
	assert.True(t, core.IsNotFound(err, "bill"))

	err = trapNoRowsErr(sql.ErrConnDone, "bill", "b1", "selecting bill")
	assert.False(t, core.IsNotFound(err))
	assert.Equal(t, sql.ErrConnDone, errors.Cause(err))
}

func Test_likePattern(t *testing.T) {
	assert.Equal(t, "%uwase%", likePattern("uwase"))
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}

func Test_termKey(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, termKey(id))
	assert.Equal(t, uuid.Nil.String(), termKey(""))
	assert.Nil(t, termParam(""))
	assert.Equal(t, id, termParam(id))
}

func Test_nullUUID(t *testing.T) {
	id := uuid.New().String()
	assert.True(t, nullUUID(id).Valid)
	assert.False(t, nullUUID("system").Valid)
	assert.False(t, nullUUID("").Valid)
}

func Test_tariffSelect(t *testing.T) {
	q, _, err := tariffSelect("tariff").ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, `t.amount AS "tariff.amount"`)
	assert.Contains(t, q, "WHERE t.deleted_at IS NULL")

	q, _, err = tariffSelect("").ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, "t.amount,")
}

func Test_orderBy(t *testing.T) {
	got := orderBy([]core.DBOrdering{
		{Field: "due_date", Ascending: true},
		{Field: "password", Ascending: true},
		{Field: "balance"},
	}, billOrderings)
	assert.Equal(t, []string{"due_date ASC", "balance DESC"}, got)
}
