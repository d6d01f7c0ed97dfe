// Package objectstore defines the ObjectStore/Transaction abstraction the
// pull engine is built against, plus the
// configuration read interface with parent-inherit lookup. Concrete backends live in the memory, badger, postgres, and
// s3content subpackages.
package objectstore

import (
	"context"
	"strings"

	"github.com/marmos91/ostreesync/pkg/objectmodel"
	"github.com/marmos91/ostreesync/pkg/objectname"
)

// DetachedMetadata is the optional {string -> variant} dictionary stored
// alongside a commit. Values are kept as opaque strings; the pull engine
// treats the dictionary as pass-through data.
type DetachedMetadata map[string]string

// ObjectStore is the content-addressed blob store keyed by
// (ObjectType, Digest). ScanWorker only ever calls the read methods
// (HasObject, LoadMetadata, Config); PullEngine calls everything,
// including the write and transaction methods — reads and writes stay
// on separate sides of this interface by design.
type ObjectStore interface {
	// HasObject reports whether (name.Type, name.Digest) is already
	// stored locally.
	HasObject(ctx context.Context, name objectname.ObjectName) (bool, error)

	// LoadMetadata loads and decodes a stored metadata object (Commit,
	// DirTree, or DirMeta). It is an error to call this for ObjectTypeFile.
	LoadMetadata(ctx context.Context, name objectname.ObjectName) (any, error)

	// WriteMetadataAsync decodes raw bytes according to name.Type's
	// schema and writes the object within txn, returning the digest the
	// store computed over the canonical encoding (for the caller's own
	// integrity check against the digest it expected).
	WriteMetadataAsync(ctx context.Context, txn Transaction, name objectname.ObjectName, raw []byte) (objectname.Digest, error)

	// WriteContentAsync writes a file's content stream within txn and
	// returns the digest the store computed.
	WriteContentAsync(ctx context.Context, txn Transaction, name objectname.ObjectName, content []byte) (objectname.Digest, error)

	// WriteDetachedCommitMetadata stores the optional per-commit
	// dictionary. Per the Open Question decision recorded in DESIGN.md,
	// this is always called with an open transaction.
	WriteDetachedCommitMetadata(ctx context.Context, txn Transaction, commit objectname.Digest, meta DetachedMetadata) error

	// LoadDetachedCommitMetadata retrieves a previously written
	// dictionary, or (nil, false, nil) if none was ever written.
	LoadDetachedCommitMetadata(ctx context.Context, commit objectname.Digest) (DetachedMetadata, bool, error)

	// ResolveRef resolves "<remote>/<ref>" to the digest it currently
	// names, or an ErrNotFound StoreError if the ref is unset.
	ResolveRef(ctx context.Context, remote, ref string) (objectname.Digest, error)

	// TransactionBegin starts a transaction and reports whether it is
	// resuming a previous, uncommitted transaction's leftovers.
	TransactionBegin(ctx context.Context) (txn Transaction, resuming bool, err error)

	// Config reads the remote configuration section for name using the
	// parent-inherit rule: unknown key/group at the child falls through
	// to the parent; other errors propagate.
	Config(ctx context.Context, remoteName string) (RemoteConfig, error)
}

// Transaction is the write-path handle returned by TransactionBegin. All
// writes during a pull go through the same Transaction; it is committed
// once, on success, or released without committing on failure (objects
// already written remain, permitting a later resume).
type Transaction interface {
	// SetRef applies a ref update. Refs are only ever changed through
	// this call, and only inside the transaction.
	SetRef(ctx context.Context, remote, ref string, digest objectname.Digest) error

	// Commit finalizes the transaction. Called exactly once, on success.
	Commit(ctx context.Context) error

	// Release discards the transaction without committing. Called on
	// any failure path; already-written objects remain in the store.
	Release(ctx context.Context) error
}

// RemoteConfig is the local repository's view of a remote, after
// parent-inherit resolution.
type RemoteConfig struct {
	URL            string
	GPGVerify      bool
	TLSPermissive  bool
	Branches       []string
}

// ConfigSource models one level of the parent-inherit chain: the child
// store's own config and, if it exists, the config of each ancestor
// store. Resolving a remote walks this slice linearly, per the
// iterative walker design: each source is consulted in order.
type ConfigSource interface {
	// RemoteSection returns the remote's raw key/value section if
	// present at this level, or found=false if this level has no such
	// group (continue to the next source) — as opposed to a non-nil
	// error, which short-circuits the walk.
	RemoteSection(ctx context.Context, remoteName string) (section map[string]string, found bool, err error)
}

// ResolveRemoteConfig implements the parent-inherit lookup described in
// the parent-inherit rule: each key is looked up from the nearest (child-most)
// source that declares the remote's section at all; sources that don't
// declare the section are skipped, not treated as an error.
func ResolveRemoteConfig(ctx context.Context, sources []ConfigSource, remoteName string) (RemoteConfig, error) {
	cfg := RemoteConfig{GPGVerify: true, TLSPermissive: false}
	haveURL, haveGPG, haveTLS := false, false, false

	for _, src := range sources {
		section, found, err := src.RemoteSection(ctx, remoteName)
		if err != nil {
			return RemoteConfig{}, err
		}
		if !found {
			continue
		}
		if url, ok := section["url"]; ok && !haveURL {
			cfg.URL = url
			haveURL = true
		}
		if v, ok := section["gpg-verify"]; ok && !haveGPG {
			cfg.GPGVerify = v != "false"
			haveGPG = true
		}
		if v, ok := section["tls-permissive"]; ok && !haveTLS {
			cfg.TLSPermissive = v == "true"
			haveTLS = true
		}
		if v, ok := section["branches"]; ok && len(cfg.Branches) == 0 {
			cfg.Branches = splitBranches(v)
		}
	}
	return cfg, nil
}

func splitBranches(v string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' }) {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DecodeMetadata dispatches raw bytes to the right objectmodel decoder
// according to the object type. Shared by every backend's
// WriteMetadataAsync implementation.
func DecodeMetadata(t objectname.ObjectType, raw []byte) (any, error) {
	switch t {
	case objectname.ObjectTypeCommit:
		return objectmodel.DecodeCommit(raw)
	case objectname.ObjectTypeDirTree:
		return objectmodel.DecodeDirTree(raw)
	case objectname.ObjectTypeDirMeta:
		return objectmodel.DecodeDirMeta(raw)
	default:
		return nil, errUnsupportedMetadataType(t)
	}
}

type unsupportedMetadataTypeError objectname.ObjectType

func (e unsupportedMetadataTypeError) Error() string {
	return "unsupported metadata type: " + objectname.ObjectType(e).String()
}

func errUnsupportedMetadataType(t objectname.ObjectType) error {
	return unsupportedMetadataTypeError(t)
}

// DigestMetadata returns the canonical digest of a decoded metadata
// value, dispatching on its concrete type.
func DigestMetadata(v any) (objectname.Digest, error) {
	switch m := v.(type) {
	case *objectmodel.Commit:
		return objectmodel.DigestCommit(m), nil
	case *objectmodel.DirTree:
		return objectmodel.DigestDirTree(m), nil
	case *objectmodel.DirMeta:
		return objectmodel.DigestDirMeta(m), nil
	default:
		return "", errUnknownMetadataValue
	}
}

var errUnknownMetadataValue = unsupportedMetadataTypeError(0)
