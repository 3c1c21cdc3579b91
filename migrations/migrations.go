// Package migrations embeds the SQL schema applied by `streamlog migrate` and
// by the repository tests.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed *.sql
var files embed.FS

type Execer interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
}

// Names lists the embedded migrations in the order they are applied.
func Names() ([]string, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every migration in order. Each file is idempotent, so applying
// twice is harmless.
func Apply(ctx context.Context, conn Execer) ([]string, error) {
	names, err := Names()
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}

		if _, err := conn.Exec(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
	}

	return names, nil
}
