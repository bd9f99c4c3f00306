package repo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Dialect определяет набор миграций.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// NewMigrator создаёт goose-провайдер для выбранной базы.
func NewMigrator(db *sql.DB, dialect Dialect) (*goose.Provider, error) {
	var gd goose.Dialect
	switch dialect {
	case DialectPostgres:
		gd = goose.DialectPostgres
	case DialectSQLite:
		gd = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("migrate: неизвестный диалект %q", dialect)
	}
	sub, err := fs.Sub(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(gd, db, sub)
}

// Migrate применяет все миграции.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	provider, err := NewMigrator(db, dialect)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
