package postgres

import "time"

// objectRow is the gorm model backing every stored Commit/DirTree/DirMeta/
// File object, keyed the same way objectname.ObjectName.Key() formats a
// name (digest/type) so lookups need no extra parsing.
type objectRow struct {
	Key  string `gorm:"primaryKey;column:key"`
	Data []byte `gorm:"column:data"`
}

func (objectRow) TableName() string { return "ostreesync_objects" }

// detachedRow stores a commit's optional metadata dictionary as JSON,
// following the common json-column convention for loosely structured
// data.
type detachedRow struct {
	Commit string `gorm:"primaryKey;column:commit_digest"`
	Data   []byte `gorm:"column:data"`
}

func (detachedRow) TableName() string { return "ostreesync_detached_metadata" }

// refRow is the durable "remote/ref -> digest" mapping. Only ever written
// inside Commit — a Release never touches this table.
type refRow struct {
	Remote string `gorm:"primaryKey;column:remote"`
	Ref    string `gorm:"primaryKey;column:ref"`
	Digest string `gorm:"column:digest"`
}

func (refRow) TableName() string { return "ostreesync_refs" }

// remoteRow is the locally-configured section for a remote (the
// lowest-priority layer objectstore.ResolveRemoteConfig walks).
type remoteRow struct {
	Name string `gorm:"primaryKey;column:name"`
	Data []byte `gorm:"column:data"`
}

func (remoteRow) TableName() string { return "ostreesync_remote_sections" }

// pendingTxnRow is the durable marker a Release leaves behind so a later
// TransactionBegin — even from a freshly started process pointed at the
// same database — can detect and resume it. Mirrors the badger backend's
// pending-key convention, but as a row instead of a key prefix.
type pendingTxnRow struct {
	ID        string `gorm:"primaryKey;column:id"`
	CreatedAt time.Time
}

func (pendingTxnRow) TableName() string { return "ostreesync_pending_transactions" }

func allModels() []any {
	return []any{
		&objectRow{},
		&detachedRow{},
		&refRow{},
		&remoteRow{},
		&pendingTxnRow{},
	}
}
