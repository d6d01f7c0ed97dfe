package pull

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ostreesync/pkg/objectmodel"
	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore/memory"
	"github.com/marmos91/ostreesync/pkg/pull/pulltest"
)

func newTestStore(t *testing.T, remoteName, url string) *memory.Store {
	t.Helper()
	store := memory.New()
	store.SetRemoteSection(remoteName, map[string]string{"url": url})
	return store
}

// TestPullFetchesFullTree covers a fresh repository
// pulling one commit over a clean tree should fetch every metadata and
// content object exactly once and land the ref.
func TestPullFetchesFullTree(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("archive-z2")

	fileDigest := builder.File([]byte("hello world"))
	tree := &objectmodel.DirTree{Files: objectmodel.SortedFiles{{Name: "hello.txt", Digest: fileDigest}}}
	treeDigest := builder.DirTree(tree)
	meta := &objectmodel.DirMeta{Mode: 0o755}
	metaDigest := builder.DirMeta(meta)
	commit := &objectmodel.Commit{Subject: "initial", TreeContents: treeDigest, TreeMeta: metaDigest}
	commitDigest := builder.Commit(commit)
	builder.DetachedMeta(commitDigest, map[string]string{"version": "1.0"})
	builder.Ref("stable", commitDigest)

	store := newTestStore(t, "origin", "https://example.test")

	result, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.NoError(t, err)

	assert.Equal(t, commitDigest, result.ResolvedRefs["stable"])
	assert.Greater(t, result.FetchedMeta, uint64(0))
	assert.Greater(t, result.FetchedContent, uint64(0))

	resolved, err := store.ResolveRef(ctx, "origin", "stable")
	require.NoError(t, err)
	assert.Equal(t, commitDigest, resolved)

	has, err := store.HasObject(ctx, objectname.ObjectName{Digest: fileDigest, Type: objectname.ObjectTypeFile})
	require.NoError(t, err)
	assert.True(t, has)

	detached, found, err := store.LoadDetachedCommitMetadata(ctx, commitDigest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1.0", detached["version"])
}

// TestPullSkipsAlreadyStoredObjects covers a second
// pull of the same ref against a store that already has everything should
// not re-request any object.
func TestPullSkipsAlreadyStoredObjects(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("archive-z2")

	fileDigest := builder.File([]byte("hello world"))
	tree := &objectmodel.DirTree{Files: objectmodel.SortedFiles{{Name: "hello.txt", Digest: fileDigest}}}
	treeDigest := builder.DirTree(tree)
	meta := &objectmodel.DirMeta{Mode: 0o755}
	metaDigest := builder.DirMeta(meta)
	commit := &objectmodel.Commit{Subject: "initial", TreeContents: treeDigest, TreeMeta: metaDigest}
	commitDigest := builder.Commit(commit)
	builder.Ref("stable", commitDigest)

	store := newTestStore(t, "origin", "https://example.test")

	_, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.NoError(t, err)

	fileHitsAfterFirst := remote.Hits(pulltest.ObjectPath(objectname.RelativeObjectPath(fileDigest, objectname.ObjectTypeFile)))
	assert.Equal(t, 1, fileHitsAfterFirst)

	_, err = Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.NoError(t, err)

	fileHitsAfterSecond := remote.Hits(pulltest.ObjectPath(objectname.RelativeObjectPath(fileDigest, objectname.ObjectTypeFile)))
	assert.Equal(t, fileHitsAfterFirst, fileHitsAfterSecond, "already-stored content must not be re-fetched")
}

// TestPullFailsOnCorruptedObject covers content whose
// bytes don't hash to the digest the directory tree names must fail the
// pull with an integrity error rather than silently accepting it.
func TestPullFailsOnCorruptedObject(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("archive-z2")

	claimedDigest := objectname.Sum([]byte("the real content"))
	builder.CorruptFile(claimedDigest, []byte("not the real content"))

	tree := &objectmodel.DirTree{Files: objectmodel.SortedFiles{{Name: "f.txt", Digest: claimedDigest}}}
	treeDigest := builder.DirTree(tree)
	meta := &objectmodel.DirMeta{}
	metaDigest := builder.DirMeta(meta)
	commit := &objectmodel.Commit{Subject: "corrupt", TreeContents: treeDigest, TreeMeta: metaDigest}
	commitDigest := builder.Commit(commit)
	builder.Ref("stable", commitDigest)

	store := newTestStore(t, "origin", "https://example.test")

	_, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.Error(t, err)
}

// TestPullRejectsNonArchiveZ2Mode covers a remote
// advertising an unsupported core.mode must be rejected before any
// object fetch is attempted.
func TestPullRejectsNonArchiveZ2Mode(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("bare")

	store := newTestStore(t, "origin", "https://example.test")

	_, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.Error(t, err)
}

// TestPullFallsBackWhenStaticDeltaDescriptorPresent covers a remote that
// advertises a static delta descriptor: the pull must notice it and still
// succeed by falling back to the object-by-object path, since decoding
// one is out of scope.
func TestPullFallsBackWhenStaticDeltaDescriptorPresent(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("archive-z2")
	remote.SetText(staticDeltaSuperblockPath, "superblock-placeholder")

	fileDigest := builder.File([]byte("content"))
	tree := &objectmodel.DirTree{Files: objectmodel.SortedFiles{{Name: "f.txt", Digest: fileDigest}}}
	treeDigest := builder.DirTree(tree)
	meta := &objectmodel.DirMeta{}
	metaDigest := builder.DirMeta(meta)
	commit := &objectmodel.Commit{Subject: "delta-present", TreeContents: treeDigest, TreeMeta: metaDigest}
	commitDigest := builder.Commit(commit)
	builder.Ref("stable", commitDigest)

	store := newTestStore(t, "origin", "https://example.test")

	result, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.NoError(t, err)
	assert.Equal(t, commitDigest, result.ResolvedRefs["stable"])

	has, err := store.HasObject(ctx, objectname.ObjectName{Digest: fileDigest, Type: objectname.ObjectTypeFile})
	require.NoError(t, err)
	assert.True(t, has, "presence of a delta descriptor must not prevent the object-by-object fallback from running")
}

// TestPullDeduplicatesSharedSubTree covers two refs whose
// commits point at the exact same DirTree (a rename or a no-op commit
// over identical content): the shared tree must only be fetched and
// traversed once across the whole pull, not once per commit that
// references it.
func TestPullDeduplicatesSharedSubTree(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("archive-z2")

	fileDigest := builder.File([]byte("shared content"))
	tree := &objectmodel.DirTree{Files: objectmodel.SortedFiles{{Name: "f.txt", Digest: fileDigest}}}
	treeDigest := builder.DirTree(tree)
	meta := &objectmodel.DirMeta{}
	metaDigest := builder.DirMeta(meta)

	firstCommit := &objectmodel.Commit{Subject: "first", TreeContents: treeDigest, TreeMeta: metaDigest}
	firstDigest := builder.Commit(firstCommit)
	secondCommit := &objectmodel.Commit{Subject: "second", TreeContents: treeDigest, TreeMeta: metaDigest}
	secondDigest := builder.Commit(secondCommit)

	builder.Ref("stable", firstDigest)
	builder.Ref("other", secondDigest)

	store := newTestStore(t, "origin", "https://example.test")

	result, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable", "other"}})
	require.NoError(t, err)
	assert.Equal(t, firstDigest, result.ResolvedRefs["stable"])
	assert.Equal(t, secondDigest, result.ResolvedRefs["other"])

	treeHits := remote.Hits(pulltest.ObjectPath(objectname.RelativeObjectPath(treeDigest, objectname.ObjectTypeDirTree)))
	assert.Equal(t, 1, treeHits, "a DirTree shared by two commits must be fetched only once")
	metaHits := remote.Hits(pulltest.ObjectPath(objectname.RelativeObjectPath(metaDigest, objectname.ObjectTypeDirMeta)))
	assert.Equal(t, 1, metaHits, "a DirMeta shared by two commits must be fetched only once")
	fileHits := remote.Hits(pulltest.ObjectPath(objectname.RelativeObjectPath(fileDigest, objectname.ObjectTypeFile)))
	assert.Equal(t, 1, fileHits, "content reachable only through the shared tree must be fetched only once")
}

// TestPullResumesAfterInterruption covers a pull that
// is interrupted after writing some objects but before committing should
// leave those objects in place, and a subsequent pull must observe
// resuming=true and still land the ref correctly.
func TestPullResumesAfterInterruption(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	remote := pulltest.NewFakeRemote(t.TempDir())
	builder := pulltest.NewRepoBuilder(remote)
	builder.Config("archive-z2")

	fileDigest := builder.File([]byte("content"))
	tree := &objectmodel.DirTree{Files: objectmodel.SortedFiles{{Name: "f.txt", Digest: fileDigest}}}
	treeDigest := builder.DirTree(tree)
	meta := &objectmodel.DirMeta{}
	metaDigest := builder.DirMeta(meta)
	commit := &objectmodel.Commit{Subject: "resume", TreeContents: treeDigest, TreeMeta: metaDigest}
	commitDigest := builder.Commit(commit)
	builder.Ref("stable", commitDigest)

	store := newTestStore(t, "origin", "https://example.test")

	// Simulate an interrupted prior pull: write the tree object directly
	// and Release (not Commit) the transaction, which memory.Store models
	// as "resumable leftovers".
	txn, _, err := store.TransactionBegin(ctx)
	require.NoError(t, err)
	_, err = store.WriteMetadataAsync(ctx, txn, objectname.ObjectName{Digest: treeDigest, Type: objectname.ObjectTypeDirTree}, objectmodel.EncodeDirTree(tree))
	require.NoError(t, err)
	require.NoError(t, txn.Release(ctx))

	result, err := Pull(ctx, store, remote, Request{RemoteName: "origin", Names: []string{"stable"}})
	require.NoError(t, err)
	assert.Equal(t, commitDigest, result.ResolvedRefs["stable"])

	has, err := store.HasObject(ctx, objectname.ObjectName{Digest: fileDigest, Type: objectname.ObjectTypeFile})
	require.NoError(t, err)
	assert.True(t, has, "resumed pull must still fetch content reachable from the already-present tree")
}
