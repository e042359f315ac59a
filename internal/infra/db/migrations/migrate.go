package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql postgres/*.sql
var migrationFiles embed.FS

// Run applies the embedded migrations for dialect ("mysql" or "postgres").
// A nil database is a no-op.
func Run(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return nil
	}
	switch dialect {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dialect)
}
