package repoconfig

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/ostreesync/pkg/objectstore"
)

// RemoteSource implements objectstore.ConfigSource over a config file's
// own `remotes:` map, letting a file-declared set of remotes act as one
// link in the parent-inherit chain alongside (or instead of) a store's
// internally persisted sections.
type RemoteSource struct {
	remotes map[string]RemoteSpec
}

// NewRemoteSource wraps cfg.Remotes as a ConfigSource.
func NewRemoteSource(cfg *Config) *RemoteSource {
	return &RemoteSource{remotes: cfg.Remotes}
}

// RemoteSection implements objectstore.ConfigSource.
func (s *RemoteSource) RemoteSection(_ context.Context, remoteName string) (map[string]string, bool, error) {
	spec, ok := s.remotes[remoteName]
	if !ok {
		return nil, false, nil
	}
	return spec.Section(), true, nil
}

var _ objectstore.ConfigSource = (*RemoteSource)(nil)

// SeedRemotes pushes every configured remote into store via
// SetRemoteSection, so a freshly opened store's own RemoteSection/Config
// lookups see the file-declared remotes without requiring a prior
// `ostreesync remote add` call against that exact store instance.
func SeedRemotes(ctx context.Context, cfg *Config, store interface {
	SetRemoteSection(ctx context.Context, remoteName string, section map[string]string) error
}) error {
	for name, spec := range cfg.Remotes {
		if err := store.SetRemoteSection(ctx, name, spec.Section()); err != nil {
			return err
		}
	}
	return nil
}

// ParentChain walks cfg.ParentRepoPath's config file, then that config's
// own ParentRepoPath, and so on, returning one RemoteSource per ancestor,
// nearest ancestor first. A config with no ParentRepoPath returns a nil
// chain. Detects a cycle rather than looping forever.
func ParentChain(cfg *Config) ([]objectstore.ConfigSource, error) {
	var chain []objectstore.ConfigSource
	seen := map[string]bool{}

	for next := cfg.ParentRepoPath; next != ""; {
		if seen[next] {
			return nil, fmt.Errorf("parent_repo_path cycle detected at %s", next)
		}
		seen[next] = true

		parentConfigPath := next
		if filepath.Ext(parentConfigPath) == "" {
			parentConfigPath = filepath.Join(next, "config.yaml")
		}

		parentCfg, err := Load(parentConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent config %s: %w", parentConfigPath, err)
		}

		chain = append(chain, NewRemoteSource(parentCfg))
		next = parentCfg.ParentRepoPath
	}

	return chain, nil
}
