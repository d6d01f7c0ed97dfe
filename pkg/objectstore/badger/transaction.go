package badger

import (
	"context"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
)

// txn stages every write (objects, detached metadata, refs) in memory and
// flushes them into BadgerDB only on Commit or Release — mirroring
// pkg/objectstore/memory's txn exactly, so both backends satisfy the same
// "not visible until Commit/Release" contract the storetest conformance
// suite and the pull engine's read path (HasObject/LoadMetadata) depend
// on. The durable "pending" marker this Store keeps (see store.go) is
// what lets TransactionBegin detect a Release that was never followed by
// a Commit even across a process restart — the actual crash-resume case
// pkg/objectstore/memory cannot model, since it holds nothing once the
// process exits.
type txn struct {
	store *Store
	id    string

	mu       sync.Mutex
	objects  map[string][]byte
	refs     map[string]objectname.Digest
	released bool
}

func (t *txn) stage(key []byte, val []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects[string(key)] = append([]byte(nil), val...)
}

// TransactionBegin looks for a leftover pending-transaction marker from a
// previous run that reached Release but never Commit (including one
// orphaned by a process restart). If found, it is reused and
// resuming=true is reported so the caller can re-walk what it already
// wrote. Otherwise a
// fresh marker is written and resuming=false.
func (s *Store) TransactionBegin(ctx context.Context) (objectstore.Transaction, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	existingID, found, err := s.findPendingTxn(ctx)
	if err != nil {
		return nil, false, err
	}
	if found {
		return newTxn(s, existingID), true, nil
	}

	id := uuid.NewString()
	if err := s.db.Update(func(bt *badgerdb.Txn) error {
		return bt.Set(keyPending(id), []byte(time.Now().UTC().Format(time.RFC3339)))
	}); err != nil {
		return nil, false, err
	}
	return newTxn(s, id), false, nil
}

func newTxn(s *Store, id string) *txn {
	return &txn{
		store:   s,
		id:      id,
		objects: make(map[string][]byte),
		refs:    make(map[string]objectname.Digest),
	}
}

func (s *Store) findPendingTxn(_ context.Context) (string, bool, error) {
	var id string
	found := false
	err := s.db.View(func(bt *badgerdb.Txn) error {
		it := bt.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(pendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id = string(it.Item().Key()[len(prefix):])
			found = true
			return nil
		}
		return nil
	})
	return id, found, err
}

func (t *txn) SetRef(_ context.Context, remote, ref string, digest objectname.Digest) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[remote+"/"+ref] = digest
	return nil
}

// Commit flushes every staged object/detached-metadata write and every
// staged ref update into one badger transaction, then clears the pending
// marker — the point at which a resumed pull becomes indistinguishable
// from one that never needed to resume.
func (t *txn) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	objects, refs := t.objects, t.refs
	t.released = true
	t.mu.Unlock()

	return t.store.db.Update(func(bt *badgerdb.Txn) error {
		for key, val := range objects {
			if err := bt.Set([]byte(key), val); err != nil {
				return err
			}
		}
		for key, digest := range refs {
			remote, ref, _ := strings.Cut(key, "/")
			if err := bt.Set(keyRef(remote, ref), []byte(digest)); err != nil {
				return err
			}
		}
		return bt.Delete(keyPending(t.id))
	})
}

// Release flushes staged object/detached-metadata writes but drops staged ref
// updates, which only ever apply on a successful Commit. The
// pending marker is deliberately left in place so the next
// TransactionBegin observes it as resuming.
func (t *txn) Release(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	objects := t.objects
	t.refs = nil
	t.released = true
	t.mu.Unlock()

	if len(objects) == 0 {
		return nil
	}
	return t.store.db.Update(func(bt *badgerdb.Txn) error {
		for key, val := range objects {
			if err := bt.Set([]byte(key), val); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ objectstore.Transaction = (*txn)(nil)
