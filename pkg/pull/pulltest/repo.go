package pulltest

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/ostreesync/pkg/objectmodel"
	"github.com/marmos91/ostreesync/pkg/objectname"
)

// RepoBuilder seeds a FakeRemote with a small archive-z2 repository:
// commits, trees, file content, the control-plane text endpoints, and
// detached metadata, all addressed the same way pkg/fetcher would
// request them from a real server.
type RepoBuilder struct {
	remote *FakeRemote
}

// NewRepoBuilder wraps remote for seeding.
func NewRepoBuilder(remote *FakeRemote) *RepoBuilder {
	return &RepoBuilder{remote: remote}
}

// Config registers <base>/config with the given core.mode.
func (b *RepoBuilder) Config(mode string) {
	b.remote.SetText("/config", fmt.Sprintf("[core]\nmode=%s\n", mode))
}

// Ref registers <base>/refs/heads/<ref> resolving to digest.
func (b *RepoBuilder) Ref(ref string, digest objectname.Digest) {
	b.remote.SetText("/refs/heads/"+ref, string(digest))
}

// RefsSummary registers <base>/refs/summary with one "<digest> <ref>" line
// per entry.
func (b *RepoBuilder) RefsSummary(entries map[string]objectname.Digest) {
	var body string
	for ref, digest := range entries {
		body += fmt.Sprintf("%s %s\n", digest, ref)
	}
	b.remote.SetText("/refs/summary", body)
}

// Commit encodes and registers a Commit object, returning its digest.
func (b *RepoBuilder) Commit(c *objectmodel.Commit) objectname.Digest {
	digest := objectmodel.DigestCommit(c)
	b.put(digest, objectname.ObjectTypeCommit, objectmodel.EncodeCommit(c))
	return digest
}

// DirTree encodes and registers a DirTree object, returning its digest.
func (b *RepoBuilder) DirTree(t *objectmodel.DirTree) objectname.Digest {
	digest := objectmodel.DigestDirTree(t)
	b.put(digest, objectname.ObjectTypeDirTree, objectmodel.EncodeDirTree(t))
	return digest
}

// DirMeta encodes and registers a DirMeta object, returning its digest.
func (b *RepoBuilder) DirMeta(m *objectmodel.DirMeta) objectname.Digest {
	digest := objectmodel.DigestDirMeta(m)
	b.put(digest, objectname.ObjectTypeDirMeta, objectmodel.EncodeDirMeta(m))
	return digest
}

// File registers raw file content under its content digest, returning
// that digest.
func (b *RepoBuilder) File(content []byte) objectname.Digest {
	digest := objectname.Sum(content)
	b.put(digest, objectname.ObjectTypeFile, content)
	return digest
}

// CorruptFile registers content at the path for claimedDigest, but the
// content's real digest differs — used to seed the corrupted-object test
// scenario.
func (b *RepoBuilder) CorruptFile(claimedDigest objectname.Digest, content []byte) {
	b.put(claimedDigest, objectname.ObjectTypeFile, content)
}

// DetachedMeta registers the <loose_path>.meta sibling of a commit as a
// JSON-encoded {string -> string} dictionary.
func (b *RepoBuilder) DetachedMeta(commit objectname.Digest, meta map[string]string) {
	raw, err := json.Marshal(meta)
	if err != nil {
		panic(err) // test-only helper: a map[string]string always marshals
	}
	b.remote.SetObject(MetaPath(objectname.LoosePath(commit, objectname.ObjectTypeCommit)), raw)
}

func (b *RepoBuilder) put(digest objectname.Digest, t objectname.ObjectType, raw []byte) {
	b.remote.SetObject(ObjectPath(objectname.RelativeObjectPath(digest, t)), raw)
}
