package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/containerd/errdefs"

	"github.com/bassista/go_dbproxy/internal/events"
	"github.com/bassista/go_dbproxy/internal/proxy"
	"github.com/bassista/go_dbproxy/internal/repository"
)

// Events emitted by Store in addition to the proxy's save/fetch notifications.
const (
	EventRecordCreate = "record.create"
	EventRecordUpdate = "record.update"
	EventRecordDelete = "record.delete"
	EventReload       = "reload"
)

var ErrRecordNotFound = fmt.Errorf("record not found: %w", errdefs.ErrNotFound)

// Store keeps an in-memory copy of a record collection. It owns a proxy and
// receives the proxy's save/fetch notifications through its embedded emitter.
type Store struct {
	events.Emitter

	mu         sync.RWMutex
	data       repository.DataDocument
	dirty      bool   // true if cache changed since last persist
	version    uint64 // bumped on every mutation
	lastUpdate int64  // cache's metadata.lastUpdate
	proxy      *proxy.DatabaseProxy
}

// NewStore creates a store holding doc and attaches it to p as owner.
// p may be nil for a store without a backend.
func NewStore(doc repository.DataDocument, p *proxy.DatabaseProxy) *Store {
	doc.ApplyDefaults()
	s := &Store{data: doc, lastUpdate: doc.Metadata.LastUpdate, proxy: p}
	if p != nil {
		p.Attach(s)
	}
	return s
}

// Kind identifies the store as a record collection to its proxy.
func (s *Store) Kind() string { return "store" }

// Proxy returns the proxy owned by this store.
func (s *Store) Proxy() *proxy.DatabaseProxy { return s.proxy }

// MarkDirty sets the dirty flag to true.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	s.version++
}

// IsDirty returns true if cache has uncommitted changes.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty resets the dirty flag.
func (s *Store) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// ClearDirtyIf resets the dirty flag only when no mutation happened since
// version was observed. It reports whether the flag was cleared.
func (s *Store) ClearDirtyIf(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.dirty = false
	return true
}

// GetLastUpdate returns the cache's last update timestamp.
func (s *Store) GetLastUpdate() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// SetLastUpdate sets the cache's last update timestamp.
func (s *Store) SetLastUpdate(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate = ts
}

// Snapshot returns a deep copy of the cached data.
func (s *Store) Snapshot() (repository.DataDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneData(s.data)
}

// SnapshotVersion returns a deep copy of the cached data together with the
// mutation version it reflects.
func (s *Store) SnapshotVersion() (repository.DataDocument, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := cloneData(s.data)
	return doc, s.version, err
}

// Replace swaps the cached data and emits "reload".
func (s *Store) Replace(doc repository.DataDocument) error {
	cloned, err := cloneData(doc)
	if err != nil {
		return err
	}
	cloned.ApplyDefaults()

	s.mu.Lock()
	s.data = cloned
	s.lastUpdate = doc.Metadata.LastUpdate
	s.dirty = false
	s.version++
	s.mu.Unlock()

	s.Emit(EventReload, nil)
	return nil
}

// All returns a copy of every record in insertion order.
func (s *Store) All() ([]repository.Record, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id string) (repository.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.data.Find(id)
	if i < 0 {
		return repository.Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return cloneRecord(s.data.Records[i])
}

// Upsert inserts or replaces a record by id and returns the new record list.
func (s *Store) Upsert(rec repository.Record) ([]repository.Record, error) {
	cloned, err := cloneRecord(rec)
	if err != nil {
		return nil, err
	}
	cloned.Fields = nonNilFields(cloned.Fields)

	s.mu.Lock()
	event := EventRecordCreate
	if i := s.data.Find(cloned.ID); i >= 0 {
		s.data.Records[i] = cloned
		event = EventRecordUpdate
	} else {
		s.data.Records = append(s.data.Records, cloned)
	}
	s.dirty = true
	s.version++
	snap, err := cloneData(s.data)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	payload, err := cloneRecord(cloned)
	if err != nil {
		return nil, err
	}
	s.Emit(event, payload)
	return snap.Records, nil
}

// Remove deletes a record by id and returns the remaining records.
func (s *Store) Remove(id string) ([]repository.Record, error) {
	s.mu.Lock()
	i := s.data.Find(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	removed := s.data.Records[i]
	s.data.Records = append(s.data.Records[:i], s.data.Records[i+1:]...)
	s.dirty = true
	s.version++
	snap, err := cloneData(s.data)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.Emit(EventRecordDelete, removed)
	return snap.Records, nil
}

// cloneData deep-copies the document to avoid shared maps between cache and callers.
func cloneData(doc repository.DataDocument) (repository.DataDocument, error) {
	bytes, err := json.Marshal(doc)
	if err != nil {
		return repository.DataDocument{}, err
	}
	var copy repository.DataDocument
	if err := json.Unmarshal(bytes, &copy); err != nil {
		return repository.DataDocument{}, err
	}
	if copy.Records == nil {
		copy.Records = []repository.Record{}
	}
	return copy, nil
}

// cloneRecord deep-copies a record to avoid shared field maps.
func cloneRecord(r repository.Record) (repository.Record, error) {
	bytes, err := json.Marshal(r)
	if err != nil {
		return repository.Record{}, err
	}
	var copy repository.Record
	if err := json.Unmarshal(bytes, &copy); err != nil {
		return repository.Record{}, err
	}
	return copy, nil
}

func nonNilFields(f map[string]any) map[string]any {
	if f == nil {
		return map[string]any{}
	}
	return f
}
