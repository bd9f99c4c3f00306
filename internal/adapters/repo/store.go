package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/db"
)

// Store объединяет все репозитории одного хранилища.
type Store interface {
	domain.PostRepo
	domain.FollowerRepo
	domain.UploadRepo
	domain.RemarkRepo
	domain.ReportRepo
	domain.SyncJobStatusRepo
	domain.BusinessMetricRepo
	Close() error
}

// Options выбирает драйвер хранилища.
type Options struct {
	Driver     string
	PGDSN      string
	SQLitePath string
	// Migrate применяет миграции при открытии.
	Migrate bool
}

// Open подключает хранилище по драйверу postgres или sqlite.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch Dialect(opts.Driver) {
	case DialectPostgres:
		if opts.PGDSN == "" {
			return nil, fmt.Errorf("store: не задан PG_DSN")
		}
		pool, err := db.Connect(opts.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("store: postgres: %w", err)
		}
		if opts.Migrate {
			// Соединения *sql.DB берутся из пула и возвращаются в него.
			if err := Migrate(ctx, stdlib.OpenDBFromPool(pool), DialectPostgres); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return NewPostgres(pool), nil
	case DialectSQLite:
		conn, err := db.OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		if opts.Migrate {
			if err := Migrate(ctx, conn, DialectSQLite); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
		return NewSQLite(conn), nil
	default:
		return nil, fmt.Errorf("store: неизвестный драйвер %q", opts.Driver)
	}
}
