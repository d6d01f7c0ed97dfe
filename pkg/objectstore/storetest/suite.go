package storetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ostreesync/pkg/objectmodel"
	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
)

// StoreFactory creates a fresh ObjectStore instance for each test. The
// factory receives *testing.T so backends that need a filesystem path or
// a container (badger, postgres) can use t.TempDir()/t.Cleanup().
type StoreFactory func(t *testing.T) objectstore.ObjectStore

// RunConformanceSuite runs the shared behavioural suite against the
// store produced by factory. Every test starts from a fresh store so
// ordering between subtests never matters.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("ObjectWrites", func(t *testing.T) { runObjectWriteTests(t, factory) })
	t.Run("RefResolution", func(t *testing.T) { runRefResolutionTests(t, factory) })
	t.Run("DetachedMetadata", func(t *testing.T) { runDetachedMetadataTests(t, factory) })
	t.Run("TransactionResume", func(t *testing.T) { runTransactionResumeTests(t, factory) })
	t.Run("Config", func(t *testing.T) { runConfigTests(t, factory) })
}

func runObjectWriteTests(t *testing.T, factory StoreFactory) {
	t.Run("HasObject false before write", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		has, err := store.HasObject(ctx, objectname.ObjectName{Digest: "absent", Type: objectname.ObjectTypeFile})
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("write then commit makes object visible", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		txn, resuming, err := store.TransactionBegin(ctx)
		require.NoError(t, err)
		assert.False(t, resuming)

		content := []byte("kernel image bytes")
		digest := objectname.Sum(content)
		name := objectname.ObjectName{Digest: digest, Type: objectname.ObjectTypeFile}

		gotDigest, err := store.WriteContentAsync(ctx, txn, name, content)
		require.NoError(t, err)
		assert.Equal(t, digest, gotDigest)

		require.NoError(t, txn.Commit(ctx))

		has, err := store.HasObject(ctx, name)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("write without commit stays invisible", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		txn, _, err := store.TransactionBegin(ctx)
		require.NoError(t, err)

		content := []byte("uncommitted")
		name := objectname.ObjectName{Digest: objectname.Sum(content), Type: objectname.ObjectTypeFile}
		_, err = store.WriteContentAsync(ctx, txn, name, content)
		require.NoError(t, err)

		has, err := store.HasObject(ctx, name)
		require.NoError(t, err)
		assert.False(t, has, "object must not be visible before Commit")

		require.NoError(t, txn.Release(ctx))
	})

	t.Run("WriteMetadataAsync then LoadMetadata round-trips", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		tree := &objectmodel.DirTree{
			Files: objectmodel.SortedFiles{{Name: "vmlinuz", Digest: "filedigest"}},
		}
		raw := objectmodel.EncodeDirTree(tree)
		name := objectname.ObjectName{Digest: objectmodel.DigestDirTree(tree), Type: objectname.ObjectTypeDirTree}

		txn, _, err := store.TransactionBegin(ctx)
		require.NoError(t, err)
		digest, err := store.WriteMetadataAsync(ctx, txn, name, raw)
		require.NoError(t, err)
		assert.Equal(t, name.Digest, digest)
		require.NoError(t, txn.Commit(ctx))

		loaded, err := store.LoadMetadata(ctx, name)
		require.NoError(t, err)
		got, ok := loaded.(*objectmodel.DirTree)
		require.True(t, ok)
		assert.Equal(t, tree.Files, got.Files)
	})

	t.Run("LoadMetadata on missing object is NotFound", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		_, err := store.LoadMetadata(ctx, objectname.ObjectName{Digest: "nope", Type: objectname.ObjectTypeDirMeta})
		require.Error(t, err)
	})
}

func runRefResolutionTests(t *testing.T, factory StoreFactory) {
	t.Run("unset ref is NotFound", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		_, err := store.ResolveRef(ctx, "origin", "main")
		require.Error(t, err)
	})

	t.Run("SetRef is only visible after Commit", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		txn, _, err := store.TransactionBegin(ctx)
		require.NoError(t, err)

		want := objectname.Digest("deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
		require.NoError(t, txn.SetRef(ctx, "origin", "main", want))

		_, err = store.ResolveRef(ctx, "origin", "main")
		assert.Error(t, err, "ref must not resolve before commit")

		require.NoError(t, txn.Commit(ctx))

		got, err := store.ResolveRef(ctx, "origin", "main")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func runDetachedMetadataTests(t *testing.T, factory StoreFactory) {
	t.Run("absent detached metadata reports found=false", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		_, found, err := store.LoadDetachedCommitMetadata(ctx, "nocommit")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("written detached metadata round-trips after commit", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		txn, _, err := store.TransactionBegin(ctx)
		require.NoError(t, err)

		meta := objectstore.DetachedMetadata{"ostree.endoflife": "2027-01-01"}
		require.NoError(t, store.WriteDetachedCommitMetadata(ctx, txn, "commit1", meta))
		require.NoError(t, txn.Commit(ctx))

		got, found, err := store.LoadDetachedCommitMetadata(ctx, "commit1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, meta, got)
	})
}

func runTransactionResumeTests(t *testing.T, factory StoreFactory) {
	t.Run("Release after partial write lets a later TransactionBegin observe it as resuming", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		txn, resuming, err := store.TransactionBegin(ctx)
		require.NoError(t, err)
		require.False(t, resuming)

		content := []byte("interrupted pull content")
		name := objectname.ObjectName{Digest: objectname.Sum(content), Type: objectname.ObjectTypeFile}
		_, err = store.WriteContentAsync(ctx, txn, name, content)
		require.NoError(t, err)

		require.NoError(t, txn.Release(ctx))

		resumedTxn, resuming, err := store.TransactionBegin(ctx)
		require.NoError(t, err)
		assert.True(t, resuming, "a previously released, uncommitted transaction must be reported as resumable")

		require.NoError(t, resumedTxn.Commit(ctx))

		has, err := store.HasObject(ctx, name)
		require.NoError(t, err)
		assert.True(t, has, "objects written before Release must survive for the resumed transaction")
	})
}

func runConfigTests(t *testing.T, factory StoreFactory) {
	t.Run("Config on unknown remote returns defaults", func(t *testing.T) {
		store := factory(t)
		ctx := t.Context()

		cfg, err := store.Config(ctx, "unknown")
		require.NoError(t, err)
		assert.Equal(t, "", cfg.URL)
		assert.True(t, cfg.GPGVerify, "gpg-verify must default to true when unset")
	})
}
