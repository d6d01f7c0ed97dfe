package repoconfig_test

import (
	"context"
	"testing"

	"github.com/marmos91/ostreesync/pkg/repoconfig"
)

func TestOpenStoreWiresParentRepoPathIntoConfigChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	parentPath := dir + "/parent.yaml"

	parentCfg := repoconfig.DefaultConfig()
	parentCfg.Remotes = map[string]repoconfig.RemoteSpec{
		"origin": {URL: "https://parent.example.com/repo", Branches: []string{"stable"}},
	}
	if err := repoconfig.Save(parentCfg, parentPath); err != nil {
		t.Fatalf("Save parent: %v", err)
	}

	cfg := &repoconfig.Config{
		Store:          repoconfig.StoreConfig{Backend: "memory"},
		ParentRepoPath: parentPath,
	}

	store, err := repoconfig.OpenStore(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	resolved, err := store.Config(ctx, "origin")
	if err != nil {
		t.Fatalf("store.Config: %v", err)
	}
	if resolved.URL != "https://parent.example.com/repo" {
		t.Errorf("expected the remote declared only at the parent to resolve through the chain, got %q", resolved.URL)
	}
}

func TestOpenStoreWithNoParentRepoPathLeavesChainEmpty(t *testing.T) {
	ctx := context.Background()

	cfg := &repoconfig.Config{Store: repoconfig.StoreConfig{Backend: "memory"}}

	store, err := repoconfig.OpenStore(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	resolved, err := store.Config(ctx, "origin")
	if err != nil {
		t.Fatalf("store.Config: %v", err)
	}
	if resolved.URL != "" {
		t.Errorf("expected no source to declare the remote, got url %q", resolved.URL)
	}
}
