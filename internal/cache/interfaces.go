package cache

import "github.com/bassista/go_dbproxy/internal/repository"

// ReadOnlyStore is the minimal cache API for read-only controllers.
type ReadOnlyStore interface {
	Snapshot() (repository.DataDocument, error)
}

// RecordStore is the cache API needed by record handlers.
type RecordStore interface {
	ReadOnlyStore
	All() ([]repository.Record, error)
	Get(id string) (repository.Record, error)
	Upsert(rec repository.Record) ([]repository.Record, error)
	Remove(id string) ([]repository.Record, error)
}

// PersistableStore is the cache API needed by the persistence scheduler.
type PersistableStore interface {
	IsDirty() bool
	SnapshotVersion() (repository.DataDocument, uint64, error)
	ClearDirtyIf(version uint64) bool
	SetLastUpdate(ts int64)
}

// AppStore is the cache contract the application container exposes.
// It is intentionally broad: it supports controllers, persistence scheduler and repository watcher.
type AppStore interface {
	repository.CacheStore
	RecordStore
	PersistableStore
	Kind() string
}
