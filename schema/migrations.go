// Package schema contains embedded migration files for the remote task
// store.
package schema

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jrazmi/lexprep/infrastructure/postgresdb"
)

// MigrationsFS contains all SQL migration files from the pgmigrations
// directory.
//
//go:embed pgmigrations/*.sql
var MigrationsFS embed.FS

// Migrate applies every embedded migration in filename order. Statements
// are idempotent, so re-running on startup is safe.
func Migrate(ctx context.Context, pool *postgresdb.Pool) error {
	names, err := fs.Glob(MigrationsFS, "pgmigrations/*.sql")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := MigrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
	}
	return nil
}
