package s3content

import (
	"context"
	"sync"

	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// Store composes a metadata ObjectStore (badger or postgres) with a
// content Tier: Commit/DirTree/DirMeta objects, refs, and detached
// metadata are delegated straight through via the embedded ObjectStore,
// while File objects are routed to the Tier. Embedding gives every
// unmodified ObjectStore method (LoadMetadata, LoadDetachedCommitMetadata,
// ResolveRef, Config) for free; methods outside the ObjectStore interface,
// such as RemoteSection, are not promoted. Only the methods that need to know about File objects or the
// transaction handle are overridden below.
type Store struct {
	objectstore.ObjectStore
	content contentStore
}

// contentStore is the subset of Tier's behavior Store needs, kept as an
// interface so composition can be unit-tested against a fake instead of
// a real bucket (see store_test.go); tier_integration_test.go exercises
// the real *Tier over Localstack.
type contentStore interface {
	HasContent(ctx context.Context, digest objectname.Digest) (bool, error)
	WriteContent(ctx context.Context, digest objectname.Digest, data []byte) error
}

var _ contentStore = (*Tier)(nil)

// New composes inner with content. inner provides metadata storage and
// transaction/resume semantics; content provides the File blob tier.
func New(inner objectstore.ObjectStore, content *Tier) *Store {
	return &Store{ObjectStore: inner, content: content}
}

// NewForTest composes inner with any contentStore implementation,
// letting store_test.go exercise the composition logic against a
// map-backed fake instead of a real bucket. Production callers use New,
// which only accepts the real *Tier.
func NewForTest(inner objectstore.ObjectStore, content contentStore) *Store {
	return &Store{ObjectStore: inner, content: content}
}

// HasObject checks the content tier for File objects and the inner
// metadata store for everything else.
func (s *Store) HasObject(ctx context.Context, name objectname.ObjectName) (bool, error) {
	if name.Type == objectname.ObjectTypeFile {
		return s.content.HasContent(ctx, name.Digest)
	}
	return s.ObjectStore.HasObject(ctx, name)
}

// TransactionBegin wraps the inner transaction so WriteContentAsync can
// stage File bytes and upload them only once the wrapping txn reaches
// Commit or Release — the same "not visible before Commit/Release"
// contract every backend honors, applied to the S3 side too.
func (s *Store) TransactionBegin(ctx context.Context) (objectstore.Transaction, bool, error) {
	inner, resuming, err := s.ObjectStore.TransactionBegin(ctx)
	if err != nil {
		return nil, false, err
	}
	return &txn{inner: inner, content: s.content, staged: make(map[objectname.Digest][]byte)}, resuming, nil
}

// WriteMetadataAsync unwraps the composing txn and delegates to the
// inner store, which is the one that knows how to decode and stage a
// Commit/DirTree/DirMeta payload.
func (s *Store) WriteMetadataAsync(ctx context.Context, t objectstore.Transaction, name objectname.ObjectName, raw []byte) (objectname.Digest, error) {
	wt, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	return s.ObjectStore.WriteMetadataAsync(ctx, wt.inner, name, raw)
}

// WriteContentAsync stages content on the wrapping txn instead of the
// inner store; the inner store never sees File bytes at all.
func (s *Store) WriteContentAsync(_ context.Context, t objectstore.Transaction, name objectname.ObjectName, content []byte) (objectname.Digest, error) {
	wt, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	digest := objectname.Sum(content)
	wt.stage(digest, content)
	return digest, nil
}

// WriteDetachedCommitMetadata unwraps and delegates, like WriteMetadataAsync.
func (s *Store) WriteDetachedCommitMetadata(ctx context.Context, t objectstore.Transaction, commit objectname.Digest, meta objectstore.DetachedMetadata) error {
	wt, ok := t.(*txn)
	if !ok {
		return pullerrors.NewStoreError(string(commit), errWrongTxnType)
	}
	return s.ObjectStore.WriteDetachedCommitMetadata(ctx, wt.inner, commit, meta)
}

// txn wraps the inner store's own Transaction, adding an in-memory stage
// for File content destined for S3. Flushed to the Tier on both Commit
// and Release, matching every backend's "writes already made survive a
// Release" rule before delegating to the inner transaction.
type txn struct {
	inner   objectstore.Transaction
	content contentStore

	mu     sync.Mutex
	staged map[objectname.Digest][]byte
}

func (t *txn) stage(digest objectname.Digest, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.staged[digest] = append([]byte(nil), data...)
}

func (t *txn) SetRef(ctx context.Context, remote, ref string, digest objectname.Digest) error {
	return t.inner.SetRef(ctx, remote, ref, digest)
}

func (t *txn) Commit(ctx context.Context) error {
	if err := t.flush(ctx); err != nil {
		return err
	}
	return t.inner.Commit(ctx)
}

func (t *txn) Release(ctx context.Context) error {
	if err := t.flush(ctx); err != nil {
		return err
	}
	return t.inner.Release(ctx)
}

func (t *txn) flush(ctx context.Context) error {
	t.mu.Lock()
	staged := t.staged
	t.staged = make(map[objectname.Digest][]byte)
	t.mu.Unlock()

	for digest, data := range staged {
		if err := t.content.WriteContent(ctx, digest, data); err != nil {
			return err
		}
	}
	return nil
}

var errWrongTxnType = txnTypeError{}

type txnTypeError struct{}

func (txnTypeError) Error() string { return "transaction was not opened on this store" }

var _ objectstore.ObjectStore = (*Store)(nil)
var _ objectstore.Transaction = (*txn)(nil)
