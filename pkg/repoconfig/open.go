package repoconfig

import (
	"context"
	"fmt"

	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/objectstore/badger"
	"github.com/marmos91/ostreesync/pkg/objectstore/memory"
	"github.com/marmos91/ostreesync/pkg/objectstore/postgres"
	"github.com/marmos91/ostreesync/pkg/objectstore/s3content"
)

// configParentSetter is implemented by every backend's concrete Store
// type; OpenStore uses it to hand the resolved ancestor chain to
// whichever backend was selected, without needing to know its concrete
// type. It is applied before any s3content composition, since
// s3content.Store does not promote SetConfigParents.
type configParentSetter interface {
	SetConfigParents(parents []objectstore.ConfigSource)
}

// OpenStore builds the ObjectStore named by cfg.Store.Backend, composing
// it with an s3content tier when cfg.Store.Content is enabled, and wires
// cfg.ParentRepoPath (if set) into the store's Config parent-inherit
// chain: a remote unresolved at this store falls through to the parent
// repo's config file, then its own parent, and so on.
func OpenStore(ctx context.Context, cfg *Config) (objectstore.ObjectStore, error) {
	storeCfg := cfg.Store
	var store objectstore.ObjectStore

	switch storeCfg.Backend {
	case "memory":
		store = memory.New()
	case "badger":
		s, err := badger.Open(storeCfg.Badger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		store = s
	case "postgres":
		s, err := postgres.Open(ctx, storeCfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown store backend: %q", storeCfg.Backend)
	}

	if cfg.ParentRepoPath != "" {
		parents, err := ParentChain(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent_repo_path chain: %w", err)
		}
		if setter, ok := store.(configParentSetter); ok {
			setter.SetConfigParents(parents)
		}
	}

	if storeCfg.Content != nil && storeCfg.Content.Enabled {
		client, err := s3content.NewClient(ctx, storeCfg.Content.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to build s3 client: %w", err)
		}
		tier, err := s3content.NewTier(ctx, client, storeCfg.Content.Bucket, storeCfg.Content.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 content tier: %w", err)
		}
		store = s3content.New(store, tier)
	}

	return store, nil
}
