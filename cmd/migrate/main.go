package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"social-tracker/internal/adapters/repo"
	"social-tracker/internal/infra/config"
	"social-tracker/internal/infra/db"
	applog "social-tracker/internal/infra/log"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s up|down|status\n", filepath.Base(os.Args[0]))
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg := config.Load()
	logger := applog.NewLoggerTo(os.Stderr, cfg.AppEnv)

	conn, closeConn, err := open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("migrate: нет подключения к БД")
	}
	defer closeConn()

	provider, err := repo.NewMigrator(conn, repo.Dialect(cfg.Store.Driver))
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: не удалось загрузить миграции")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			fmt.Printf("applied %s (%s)\n", filepath.Base(r.Source.Path), r.Duration.Round(time.Millisecond))
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: up")
		}
		if len(results) == 0 {
			fmt.Println("no pending migrations")
		}
	case "down":
		r, err := provider.Down(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: down")
		}
		fmt.Printf("rolled back %s\n", filepath.Base(r.Source.Path))
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: status")
		}
		for _, s := range statuses {
			applied := "pending"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-8s %-40s %s\n", s.State, filepath.Base(s.Source.Path), applied)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func open(cfg config.AppConfig) (*sql.DB, func(), error) {
	switch repo.Dialect(cfg.Store.Driver) {
	case repo.DialectPostgres:
		pool, err := db.Connect(cfg.Store.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return stdlib.OpenDBFromPool(pool), pool.Close, nil
	case repo.DialectSQLite:
		conn, err := db.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() { _ = conn.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный STORE_DRIVER %q", cfg.Store.Driver)
	}
}
