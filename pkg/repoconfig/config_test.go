package repoconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/ostreesync/pkg/repoconfig"
)

func TestLoadAppliesDefaultsWhenFileIsMinimal(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
store:
  backend: badger
  badger:
    path: ` + filepath.ToSlash(tmpDir) + `/repo
remotes:
  origin:
    url: "https://example.com/repo"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := repoconfig.Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default logging level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default logging format text, got %q", cfg.Logging.Format)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("expected badger backend, got %q", cfg.Store.Backend)
	}

	remote, ok := cfg.Remotes["origin"]
	if !ok {
		t.Fatalf("expected origin remote to be present")
	}
	if remote.URL != "https://example.com/repo" {
		t.Errorf("expected origin url preserved, got %q", remote.URL)
	}
}

func TestLoadMissingFileReturnsDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := repoconfig.Load(filepath.Join(tmpDir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("expected default backend badger, got %q", cfg.Store.Backend)
	}
	if len(cfg.Remotes) != 0 {
		t.Errorf("expected no remotes in default config, got %d", len(cfg.Remotes))
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := repoconfig.DefaultConfig()
	cfg.Store.Backend = "not-a-real-backend"
	if err := repoconfig.Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestValidateRejectsRemoteWithoutURL(t *testing.T) {
	cfg := repoconfig.DefaultConfig()
	cfg.Remotes = map[string]repoconfig.RemoteSpec{
		"origin": {},
	}
	if err := repoconfig.Validate(cfg); err == nil {
		t.Fatal("expected validation error for remote missing url")
	}
}

func TestRemoteSpecSectionRendersBranches(t *testing.T) {
	verify := false
	spec := repoconfig.RemoteSpec{
		URL:           "https://example.com/repo",
		GPGVerify:     &verify,
		TLSPermissive: true,
		Branches:      []string{"stable/main", "stable/devel"},
	}

	section := spec.Section()
	if section["url"] != spec.URL {
		t.Errorf("unexpected url: %q", section["url"])
	}
	if section["gpg-verify"] != "false" {
		t.Errorf("expected gpg-verify false, got %q", section["gpg-verify"])
	}
	if section["tls-permissive"] != "true" {
		t.Errorf("expected tls-permissive true, got %q", section["tls-permissive"])
	}
	if section["branches"] != "stable/main,stable/devel" {
		t.Errorf("unexpected branches: %q", section["branches"])
	}
}
