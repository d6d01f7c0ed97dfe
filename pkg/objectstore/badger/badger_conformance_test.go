package badger_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/objectstore/badger"
	"github.com/marmos91/ostreesync/pkg/objectstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.ObjectStore {
		t.Helper()
		store, err := badger.Open(badger.Config{Path: filepath.Join(t.TempDir(), "db")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
