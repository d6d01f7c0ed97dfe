package badger

import (
	"context"
	"encoding/json"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

// HasObject uses the common db.View + ErrKeyNotFound read shape but only
// needs existence, not the value.
func (s *Store) HasObject(ctx context.Context, name objectname.ObjectName) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyObject(name))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// LoadMetadata reads a stored Commit/DirTree/DirMeta and decodes it
// through objectstore.DecodeMetadata, the dispatch every backend shares.
func (s *Store) LoadMetadata(ctx context.Context, name objectname.ObjectName) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !name.Type.IsMetadata() {
		return nil, pullerrors.NewParseError(name.String(), "not a metadata type")
	}

	var raw []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyObject(name))
		if err == badgerdb.ErrKeyNotFound {
			return pullerrors.NewNotFoundError(name.String())
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return objectstore.DecodeMetadata(name.Type, raw)
}

// WriteMetadataAsync stages the object on txn; it only becomes visible to
// HasObject/LoadMetadata once txn reaches Commit or Release.
func (s *Store) WriteMetadataAsync(ctx context.Context, t objectstore.Transaction, name objectname.ObjectName, raw []byte) (objectname.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	decoded, err := objectstore.DecodeMetadata(name.Type, raw)
	if err != nil {
		return "", pullerrors.NewParseError(name.String(), "%v", err)
	}
	digest, err := objectstore.DigestMetadata(decoded)
	if err != nil {
		return "", err
	}
	bt, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	bt.stage(keyObject(name), raw)
	return digest, nil
}

// WriteContentAsync stages a File object's bytes the same way.
func (s *Store) WriteContentAsync(ctx context.Context, t objectstore.Transaction, name objectname.ObjectName, content []byte) (objectname.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bt, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	bt.stage(keyObject(name), content)
	return objectname.Sum(content), nil
}

// WriteDetachedCommitMetadata stages the per-commit dictionary as JSON,
// following the json.Marshal-into-badger convention used throughout
// this backend, flushed on the same Commit/Release schedule
// as every other write on this transaction.
func (s *Store) WriteDetachedCommitMetadata(ctx context.Context, t objectstore.Transaction, commit objectname.Digest, meta objectstore.DetachedMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bt, ok := t.(*txn)
	if !ok {
		return pullerrors.NewStoreError(string(commit), errWrongTxnType)
	}
	val, err := json.Marshal(meta)
	if err != nil {
		return pullerrors.NewParseError(string(commit), "marshal detached metadata: %v", err)
	}
	bt.stage(keyDetached(commit), val)
	return nil
}

func (s *Store) LoadDetachedCommitMetadata(ctx context.Context, commit objectname.Digest) (objectstore.DetachedMetadata, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var meta objectstore.DetachedMetadata
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyDetached(commit))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return nil, false, err
	}
	return meta, found, nil
}

func (s *Store) ResolveRef(ctx context.Context, remote, ref string) (objectname.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var digest objectname.Digest
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyRef(remote, ref))
		if err == badgerdb.ErrKeyNotFound {
			return pullerrors.NewNotFoundError(remote + "/" + ref)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			digest = objectname.Digest(append([]byte(nil), val...))
			return nil
		})
	})
	return digest, err
}

// SetRemoteSection seeds or replaces a remote's locally-configured
// section, the admin-path counterpart to RemoteSection. Used by the
// reference CLI's "remote add"/"remote set" commands.
func (s *Store) SetRemoteSection(ctx context.Context, remoteName string, section map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(section)
	if err != nil {
		return pullerrors.NewConfigError(remoteName, "marshal remote section: %v", err)
	}
	return s.db.Update(func(bt *badgerdb.Txn) error {
		return bt.Set(keyRemote(remoteName), val)
	})
}

func (s *Store) RemoteSection(ctx context.Context, remoteName string) (map[string]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var section map[string]string
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyRemote(remoteName))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &section)
		})
	})
	if err != nil {
		return nil, false, err
	}
	return section, found, nil
}

// SetConfigParents records the chain of ancestor ConfigSources Config
// falls through to once this store's own section doesn't declare a
// remote at all.
func (s *Store) SetConfigParents(parents []objectstore.ConfigSource) {
	s.parents = parents
}

// Config resolves a remote's configuration using the shared parent-inherit
// walker: this store's own section first, then each source in parents,
// nearest ancestor first.
func (s *Store) Config(ctx context.Context, remoteName string) (objectstore.RemoteConfig, error) {
	sources := append([]objectstore.ConfigSource{s}, s.parents...)
	return objectstore.ResolveRemoteConfig(ctx, sources, remoteName)
}

var errWrongTxnType = txnTypeError{}

type txnTypeError struct{}

func (txnTypeError) Error() string { return "transaction was not opened on this store" }
