package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ostreesync/pkg/objectstore/memory"
)

func TestSetRemoteSectionFeedsConfig(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := t.Context()

	store.SetRemoteSection("origin", map[string]string{
		"url":         "https://updates.example.com/repo",
		"gpg-verify":  "false",
		"branches":    "stable, nightly",
	})

	cfg, err := store.Config(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://updates.example.com/repo", cfg.URL)
	assert.False(t, cfg.GPGVerify)
	assert.Equal(t, []string{"stable", "nightly"}, cfg.Branches)
}

func TestRemoteSectionReportsNotFoundWhenUnset(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := t.Context()

	_, found, err := store.RemoteSection(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}
