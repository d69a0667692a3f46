package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"driverledger/config"
	"driverledger/pkg/logger"
	"driverledger/storage"
)

type Store struct {
	pool          *pgxpool.Pool
	log           logger.ILogger
	maxRecordSize int
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := cfg.PostgresURL()

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping Postgres", logger.Error(err))
		return nil, err
	}

	if err := Migrate(url, cfg.MigrationsPath, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return NewWithPool(pool, cfg.MaxRecordSize, log), nil
}

func NewWithPool(pool *pgxpool.Pool, maxRecordSize int, log logger.ILogger) *Store {
	return &Store{
		pool:          pool,
		log:           log,
		maxRecordSize: maxRecordSize,
	}
}

// Migrate applies every pending migration found under path (relative paths are
// resolved against the working directory).
func Migrate(url, path string, log logger.ILogger) error {
	if !filepath.IsAbs(path) {
		cwd, _ := os.Getwd()
		path = filepath.Join(cwd, path)
	}

	m, err := migrate.New("file://"+path, url)
	if err != nil {
		log.Error("migration init error", logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Registry() storage.IRegistryStorage {
	return NewRegistryRepo(s.pool, s.maxRecordSize, s.log)
}

// Reset drops every registry record. Development use only.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE TABLE registry_records")
	return err
}
