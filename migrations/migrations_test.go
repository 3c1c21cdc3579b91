package migrations_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasagram/streamlog/migrations"
)

type recordingExecer struct {
	statements []string
	failOn     int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	if r.failOn > 0 && len(r.statements) == r.failOn {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.CommandTag{}, nil
}

func TestNames(t *testing.T) {
	t.Parallel()

	names, err := migrations.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql"}, names)
}

func TestApply(t *testing.T) {
	t.Parallel()

	ex := &recordingExecer{}
	applied, err := migrations.Apply(context.Background(), ex)
	require.NoError(t, err)

	assert.Equal(t, []string{"0001_init.sql"}, applied)
	require.Len(t, ex.statements, 1)
	assert.True(t, strings.Contains(ex.statements[0], "streams"))
}

func TestApply_Error(t *testing.T) {
	t.Parallel()

	_, err := migrations.Apply(context.Background(), &recordingExecer{failOn: 1})
	assert.ErrorContains(t, err, "migration 0001_init.sql")
}
