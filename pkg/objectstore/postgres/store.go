// Package postgres implements ObjectStore on top of PostgreSQL via GORM,
// a second backend for a multi-writer-capable
// deployment target where badger's single-process file lock would force
// serialized pulls. Schema changes are applied through golang-migrate's
// embedded SQL migrations (see migrate.go) rather than GORM's AutoMigrate,
// adapted from dual SQLite/Postgres support to Postgres-only since this
// package has no equivalent single-node default to fall back to.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/ostreesync/pkg/objectstore"
)

// Config carries the fields a Postgres object store needs, trimmed to what an
// object store needs (no SSL root cert handling — the examples' other
// backends don't need it either).
type Config struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// ApplyDefaults fills in zero-valued fields with sensible connection
// pool and SSL mode defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Store is a PostgreSQL-backed ObjectStore. Unlike badger, whose single
// BadgerDB handle already serializes writers, Store relies on Postgres's
// own MVCC isolation: a SELECT issued from the connection pool never
// observes another session's uncommitted INSERTs, so staged writes need
// no extra bookkeeping to stay invisible before Commit/Release — see
// transaction.go for why writes are still staged in memory regardless.
type Store struct {
	db *gorm.DB

	// parents extends Config's lookup past this store's own section,
	// set by repoconfig.OpenStore when the repo has a parent_repo_path.
	parents []objectstore.ConfigSource
}

// Open connects to Postgres, brings the schema up to the latest embedded
// migration, and returns a ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()

	if err := runMigrations(cfg.DSN()); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Healthcheck runs a trivial round-trip query (a cheap no-op read, not
// a schema touch).
func (s *Store) Healthcheck(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("SELECT 1").Error
}

// Truncate empties every table this package owns. It exists for the
// conformance suite, which opens several logical stores against one
// shared container and expects each to start empty.
func (s *Store) Truncate(ctx context.Context) error {
	for _, model := range allModels() {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

var _ objectstore.ObjectStore = (*Store)(nil)
