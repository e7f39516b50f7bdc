// Package store opens the configured persistence backend and hands out its repositories.
package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"server-actions/backend/internal/config"
	"server-actions/backend/internal/db"
	"server-actions/backend/internal/db/migrate"
	"server-actions/backend/internal/db/sqlite"
	healthhandler "server-actions/backend/internal/health/handler"
	postrepo "server-actions/backend/internal/post/repository"
	userrepo "server-actions/backend/internal/user/repository"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users  userrepo.Repository
	Posts  postrepo.Repository
	Pinger healthhandler.Pinger

	close func() error
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the backend selected by cfg.StoreDriver. With AUTO_MIGRATE the schema is brought
// up to date first; an in-memory SQLite database is always migrated.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Store, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	if cfg.StoreDriver == config.StoreSQLite {
		return openSQLite(cfg.SQLitePath, cfg.AutoMigrate || cfg.SQLitePath == sqlite.Memory, log)
	}
	if cfg.AutoMigrate {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("store: migrations applied")
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("store: postgres")
	return &Store{
		Users:  userrepo.NewPostgresRepository(conn),
		Posts:  postrepo.NewPostgresRepository(conn),
		Pinger: conn,
		close:  conn.Close,
	}, nil
}

func openSQLite(path string, migrateSchema bool, log logrus.FieldLogger) (*Store, error) {
	gdb, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if migrateSchema {
		if err := sqlite.Migrate(gdb); err != nil {
			_ = sqlite.Close(gdb)
			return nil, err
		}
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		_ = sqlite.Close(gdb)
		return nil, err
	}
	log.WithField("path", path).Info("store: sqlite")
	return &Store{
		Users:  userrepo.NewGormRepository(gdb),
		Posts:  postrepo.NewGormRepository(gdb),
		Pinger: sqlDB,
		close:  func() error { return sqlite.Close(gdb) },
	}, nil
}
