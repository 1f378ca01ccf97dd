package repository

import (
	"context"

	"github.com/bassista/go_dbproxy/internal/proxy"
)

// Saver persists a DataDocument.
// Small interface used by background jobs like the persistence scheduler.
type Saver interface {
	Save(ctx context.Context, doc *DataDocument) error
}

// Loader reads a DataDocument from the backend.
type Loader interface {
	Load(ctx context.Context) (*DataDocument, error)
}

// Repository is a backend that moves documents through a DatabaseProxy.
// JSONRepository implements this interface.
type Repository interface {
	Saver
	Loader
	StartWatcher(ctx context.Context, cacheStore CacheStore) error
	Proxy() *proxy.DatabaseProxy
}
