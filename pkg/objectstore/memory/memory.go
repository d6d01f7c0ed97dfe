// Package memory implements an in-memory ObjectStore, used by the pull
// engine's unit tests and the storetest conformance suite as the
// reference backend every other backend is checked against.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// Store is a goroutine-safe, process-local ObjectStore. Writes are held in
// the owning transaction's staging area and become visible only when that
// transaction ends: Commit merges objects, detached metadata and refs;
// Release merges objects and detached metadata and drops refs.
type Store struct {
	mu sync.RWMutex

	objects  map[string][]byte // ObjectName.Key() -> canonical bytes
	detached map[string]objectstore.DetachedMetadata
	refs     map[string]objectname.Digest // "remote/ref" -> digest
	remotes  map[string]map[string]string // remoteName -> raw section

	// pendingTxn is non-nil when a previous transaction was released
	// without being committed — the next TransactionBegin reports
	// resuming=true and reuses it, modeling the "interrupted pull" case.
	pendingTxn *txn

	// parents extends Config's lookup past this store's own section,
	// set by repoconfig.OpenStore when the repo has a parent_repo_path.
	parents []objectstore.ConfigSource
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects:  make(map[string][]byte),
		detached: make(map[string]objectstore.DetachedMetadata),
		refs:     make(map[string]objectname.Digest),
		remotes:  make(map[string]map[string]string),
	}
}

// SetRemoteSection seeds the store's local config for a remote, as if it
// had been read from an on-disk config file. Intended for tests and the
// reference CLI's "remote add" command.
func (s *Store) SetRemoteSection(remoteName string, section map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotes[remoteName] = section
}

func (s *Store) RemoteSection(_ context.Context, remoteName string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	section, found := s.remotes[remoteName]
	return section, found, nil
}

func (s *Store) HasObject(_ context.Context, name objectname.ObjectName) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[name.Key()]
	return ok, nil
}

func (s *Store) LoadMetadata(_ context.Context, name objectname.ObjectName) (any, error) {
	if !name.Type.IsMetadata() {
		return nil, pullerrors.NewParseError(name.String(), "not a metadata type")
	}
	s.mu.RLock()
	raw, ok := s.objects[name.Key()]
	s.mu.RUnlock()
	if !ok {
		return nil, pullerrors.NewNotFoundError(name.String())
	}
	return objectstore.DecodeMetadata(name.Type, raw)
}

func (s *Store) WriteMetadataAsync(_ context.Context, t objectstore.Transaction, name objectname.ObjectName, raw []byte) (objectname.Digest, error) {
	decoded, err := objectstore.DecodeMetadata(name.Type, raw)
	if err != nil {
		return "", pullerrors.NewParseError(name.String(), "%v", err)
	}
	digest, err := objectstore.DigestMetadata(decoded)
	if err != nil {
		return "", err
	}
	tx, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	tx.stage(name.Key(), raw)
	return digest, nil
}

func (s *Store) WriteContentAsync(_ context.Context, t objectstore.Transaction, name objectname.ObjectName, content []byte) (objectname.Digest, error) {
	digest := objectname.Sum(content)
	tx, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	tx.stage(name.Key(), content)
	return digest, nil
}

func (s *Store) WriteDetachedCommitMetadata(_ context.Context, t objectstore.Transaction, commit objectname.Digest, meta objectstore.DetachedMetadata) error {
	tx, ok := t.(*txn)
	if !ok {
		return pullerrors.NewStoreError(string(commit), errWrongTxnType)
	}
	tx.stageDetached(string(commit), meta)
	return nil
}

func (s *Store) LoadDetachedCommitMetadata(_ context.Context, commit objectname.Digest) (objectstore.DetachedMetadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.detached[string(commit)]
	return meta, ok, nil
}

func (s *Store) ResolveRef(_ context.Context, remote, ref string) (objectname.Digest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	digest, ok := s.refs[remote+"/"+ref]
	if !ok {
		return "", pullerrors.NewNotFoundError(remote + "/" + ref)
	}
	return digest, nil
}

func (s *Store) TransactionBegin(_ context.Context) (objectstore.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingTxn != nil {
		resumed := s.pendingTxn
		s.pendingTxn = nil
		return resumed, true, nil
	}
	return newTxn(s), false, nil
}

// SetConfigParents records the chain of ancestor ConfigSources Config
// falls through to once this store's own section doesn't declare a
// remote at all.
func (s *Store) SetConfigParents(parents []objectstore.ConfigSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents = parents
}

func (s *Store) Config(ctx context.Context, remoteName string) (objectstore.RemoteConfig, error) {
	s.mu.RLock()
	sources := append([]objectstore.ConfigSource{s}, s.parents...)
	s.mu.RUnlock()
	return objectstore.ResolveRemoteConfig(ctx, sources, remoteName)
}

var errWrongTxnType = txnTypeError{}

type txnTypeError struct{}

func (txnTypeError) Error() string { return "transaction was not opened on this store" }

// txn stages writes until Commit merges them into the store, or Release
// merges its objects and detached metadata and discards its ref updates.
// A released-but-partially-written txn is kept by the
// store as pendingTxn, which is what models "resume" in tests: a second
// TransactionBegin observes the leftovers.
type txn struct {
	store *Store

	mu       sync.Mutex
	staged   map[string][]byte
	detached map[string]objectstore.DetachedMetadata
	refs     map[string]objectname.Digest
	released bool
}

func newTxn(s *Store) *txn {
	return &txn{
		store:    s,
		staged:   make(map[string][]byte),
		detached: make(map[string]objectstore.DetachedMetadata),
		refs:     make(map[string]objectname.Digest),
	}
}

func (t *txn) stage(key string, raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staged[key] = append([]byte(nil), raw...)
}

func (t *txn) stageDetached(commit string, meta objectstore.DetachedMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached[commit] = meta
}

func (t *txn) SetRef(_ context.Context, remote, ref string, digest objectname.Digest) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[remote+"/"+ref] = digest
	return nil
}

func (t *txn) Commit(_ context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range t.staged {
		t.store.objects[k] = v
	}
	for k, v := range t.detached {
		t.store.detached[k] = v
	}
	for k, v := range t.refs {
		t.store.refs[k] = v
	}
	t.released = true
	return nil
}

// Release discards uncommitted ref updates but keeps already-staged
// object writes available for a future resumed transaction: the store is
// append-only, so a failure leaves already-written objects in place.
func (t *txn) Release(_ context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range t.staged {
		t.store.objects[k] = v
	}
	for k, v := range t.detached {
		t.store.detached[k] = v
	}
	// Refs are intentionally dropped: they are only ever applied on a
	// successful commit.
	t.store.pendingTxn = t
	t.released = true
	return nil
}

var _ objectstore.ObjectStore = (*Store)(nil)
var _ objectstore.Transaction = (*txn)(nil)
