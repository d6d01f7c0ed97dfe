package remoteserver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/ostreesync/pkg/objectname"
)

// Fixture writes an archive-z2 repository layout under a root directory:
// a `config` declaring `core.mode = archive-z2`, ref files under
// `refs/heads/`, and loose objects under `objects/`. It is test-only
// scaffolding for exercising remoteserver (and, paired with
// pkg/fetcher.HTTPFetcher, the pull engine) against a real HTTP server
// instead of the in-memory pkg/pull/pulltest fakes.
type Fixture struct {
	root string
}

// NewFixture creates the directory skeleton for a fixture rooted at root.
func NewFixture(root string) (*Fixture, error) {
	for _, dir := range []string{"objects", filepath.Join("refs", "heads")} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(filepath.Join(root, "config"), []byte("[core]\nmode=archive-z2\n"), 0o644); err != nil {
		return nil, err
	}
	return &Fixture{root: root}, nil
}

// Root returns the fixture's directory, suitable for NewRouter/NewServer.
func (f *Fixture) Root() string { return f.root }

// SetRef writes digest as ref's current head.
func (f *Fixture) SetRef(ref string, digest objectname.Digest) error {
	path := filepath.Join(f.root, "refs", "heads", ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(string(digest)+"\n"), 0o644)
}

// SetObject writes raw as the loose object for (digest, objType).
func (f *Fixture) SetObject(digest objectname.Digest, objType objectname.ObjectType, raw []byte) error {
	return f.writeObjectFile(objectname.RelativeObjectPath(digest, objType), raw)
}

// SetDetachedMeta writes raw as the .meta sibling of commit's loose path.
func (f *Fixture) SetDetachedMeta(commit objectname.Digest, raw []byte) error {
	return f.writeObjectFile(objectname.LoosePath(commit, objectname.ObjectTypeCommit)+".meta", raw)
}

func (f *Fixture) writeObjectFile(relPath string, raw []byte) error {
	path := filepath.Join(f.root, "objects", filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
