// Package badger implements ObjectStore on top of BadgerDB: the primary,
// on-disk backend. Every operation follows the same db.Update/db.View
// per-operation shape, the same key-prefix convention, and JSON-encoded
// values for small structured records.
package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/ostreesync/pkg/objectstore"
)

// Config carries a single on-disk path plus the handful of tuning knobs
// worth exposing, decoded from YAML/env via mapstructure.
type Config struct {
	Path       string `mapstructure:"path"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// Store is a BadgerDB-backed ObjectStore. Object, detached-metadata and
// ref writes are staged in memory on txn: Commit flushes all of them,
// Release flushes objects and detached metadata but drops refs. A durable
// "pending" marker records that a transaction was begun and not
// committed.
type Store struct {
	db *badgerdb.DB

	// parents extends Config's lookup past this store's own section,
	// set by repoconfig.OpenStore when the repo has a parent_repo_path.
	parents []objectstore.ConfigSource
}

// Open opens (or creates) a BadgerDB database at cfg.Path, the same
// decode-config-then-badger.Open shape used across this codebase's
// other store backends.
func Open(cfg Config) (*Store, error) {
	opts := badgerdb.DefaultOptions(cfg.Path)
	opts.InMemory = cfg.InMemory
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil // badger's own logger is disabled in favor of internal/logger

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %q: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Healthcheck verifies the database is still accessible: a
// no-op read transaction is enough, since BadgerDB surfaces closed/
// corrupted state as an error from View itself.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.View(func(_ *badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("badger healthcheck failed: %w", err)
	}
	return nil
}

var _ objectstore.ObjectStore = (*Store)(nil)
