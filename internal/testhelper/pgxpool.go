package testhelper

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/sasagram/streamlog/migrations"
)

func NewTestPgxConn(t *testing.T) *pgx.Conn {
	t.Helper()

	ctx := context.Background()

	connString := os.Getenv("DATABASE_URL")

	if connString == "" {
		t.Skipf("skipping due to missing environment variable %v", "DATABASE_URL")
	}

	config, err := pgx.ParseConfig(connString)
	require.NoError(t, err)
	config.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := pgx.ConnectConfig(ctx, config)
	require.NoError(t, err)

	_, err = migrations.Apply(ctx, conn)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close(ctx)
	})

	return conn
}

// NewTestTx opens a transaction that is rolled back when the test ends, so
// repositories built on it never leave rows behind.
func NewTestTx(t *testing.T) pgx.Tx {
	t.Helper()

	ctx := context.Background()
	conn := NewTestPgxConn(t)

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = tx.Rollback(ctx)
	})

	return tx
}
