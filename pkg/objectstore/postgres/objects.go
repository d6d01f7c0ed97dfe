package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/ostreesync/pkg/objectname"
	"github.com/marmos91/ostreesync/pkg/objectstore"
	"github.com/marmos91/ostreesync/pkg/pullerrors"
)

func (s *Store) HasObject(ctx context.Context, name objectname.ObjectName) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&objectRow{}).Where("key = ?", name.Key()).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) LoadMetadata(ctx context.Context, name objectname.ObjectName) (any, error) {
	if !name.Type.IsMetadata() {
		return nil, pullerrors.NewParseError(name.String(), "not a metadata type")
	}
	var row objectRow
	err := s.db.WithContext(ctx).Where("key = ?", name.Key()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pullerrors.NewNotFoundError(name.String())
	}
	if err != nil {
		return nil, err
	}
	return objectstore.DecodeMetadata(name.Type, row.Data)
}

// WriteMetadataAsync stages onto txn; see transaction.go for why this
// backend stages in memory rather than relying on an open SQL
// transaction the way one might first expect from a "SQL-transaction-
// backed" store.
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
	pt, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	pt.stageObject(name.Key(), raw)
	return digest, nil
}

func (s *Store) WriteContentAsync(ctx context.Context, t objectstore.Transaction, name objectname.ObjectName, content []byte) (objectname.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pt, ok := t.(*txn)
	if !ok {
		return "", pullerrors.NewStoreError(name.String(), errWrongTxnType)
	}
	pt.stageObject(name.Key(), content)
	return objectname.Sum(content), nil
}

func (s *Store) WriteDetachedCommitMetadata(ctx context.Context, t objectstore.Transaction, commit objectname.Digest, meta objectstore.DetachedMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pt, ok := t.(*txn)
	if !ok {
		return pullerrors.NewStoreError(string(commit), errWrongTxnType)
	}
	val, err := json.Marshal(meta)
	if err != nil {
		return pullerrors.NewParseError(string(commit), "marshal detached metadata: %v", err)
	}
	pt.stageDetached(string(commit), val)
	return nil
}

func (s *Store) LoadDetachedCommitMetadata(ctx context.Context, commit objectname.Digest) (objectstore.DetachedMetadata, bool, error) {
	var row detachedRow
	err := s.db.WithContext(ctx).Where("commit_digest = ?", string(commit)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var meta objectstore.DetachedMetadata
	if err := json.Unmarshal(row.Data, &meta); err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func (s *Store) ResolveRef(ctx context.Context, remote, ref string) (objectname.Digest, error) {
	var row refRow
	err := s.db.WithContext(ctx).Where("remote = ? AND ref = ?", remote, ref).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pullerrors.NewNotFoundError(remote + "/" + ref)
	}
	if err != nil {
		return "", err
	}
	return objectname.Digest(row.Digest), nil
}

// SetRemoteSection upserts a remote's locally-configured section, the
// admin-path counterpart to RemoteSection, using GORM's OnConflict
// clause the way pkg/controlplane/store's helpers.go favors Create over
// hand-rolled upsert SQL.
func (s *Store) SetRemoteSection(ctx context.Context, remoteName string, section map[string]string) error {
	val, err := json.Marshal(section)
	if err != nil {
		return pullerrors.NewConfigError(remoteName, "marshal remote section: %v", err)
	}
	row := remoteRow{Name: remoteName, Data: val}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoUpdates: clause.AssignmentColumns([]string{"data"})}).
		Create(&row).Error
}

func (s *Store) RemoteSection(ctx context.Context, remoteName string) (map[string]string, bool, error) {
	var row remoteRow
	err := s.db.WithContext(ctx).Where("name = ?", remoteName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var section map[string]string
	if err := json.Unmarshal(row.Data, &section); err != nil {
		return nil, false, err
	}
	return section, true, nil
}

// SetConfigParents records the chain of ancestor ConfigSources Config
// falls through to once this store's own section doesn't declare a
// remote at all.
func (s *Store) SetConfigParents(parents []objectstore.ConfigSource) {
	s.parents = parents
}

func (s *Store) Config(ctx context.Context, remoteName string) (objectstore.RemoteConfig, error) {
	sources := append([]objectstore.ConfigSource{s}, s.parents...)
	return objectstore.ResolveRemoteConfig(ctx, sources, remoteName)
}

var errWrongTxnType = txnTypeError{}

type txnTypeError struct{}

func (txnTypeError) Error() string { return "transaction was not opened on this store" }
