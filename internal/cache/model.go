package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bassista/go_dbproxy/internal/events"
	"github.com/bassista/go_dbproxy/internal/proxy"
	"github.com/bassista/go_dbproxy/internal/repository"
)

// EventFieldUpdate is emitted by Model.Set with the field name as payload.
const EventFieldUpdate = "field.update"

// Model wraps a single record and owns its own proxy.
type Model struct {
	events.Emitter

	mu     sync.RWMutex
	record repository.Record
	proxy  *proxy.DatabaseProxy
}

// NewModel creates a model holding a copy of rec and attaches it to p as owner.
func NewModel(rec repository.Record, p *proxy.DatabaseProxy) (*Model, error) {
	cloned, err := cloneRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("copy record: %w", err)
	}
	cloned.Fields = nonNilFields(cloned.Fields)
	m := &Model{record: cloned, proxy: p}
	if p != nil {
		p.Attach(m)
	}
	return m, nil
}

// Kind identifies the model as a single record to its proxy.
func (m *Model) Kind() string { return "model" }

// Proxy returns the proxy owned by this model.
func (m *Model) Proxy() *proxy.DatabaseProxy { return m.proxy }

func (m *Model) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record.ID
}

// Get returns a field value and whether it is set.
func (m *Model) Get(field string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.record.Fields[field]
	return v, ok
}

// Set assigns a field and emits "field.update".
func (m *Model) Set(field string, value any) {
	m.mu.Lock()
	m.record.Fields[field] = value
	m.mu.Unlock()
	m.Emit(EventFieldUpdate, field)
}

// Data returns a deep copy of the record.
func (m *Model) Data() (repository.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecord(m.record)
}

// Serialize returns the record's fields as JSON.
func (m *Model) Serialize() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := json.Marshal(m.record.Fields)
	if err != nil {
		return "", fmt.Errorf("serialize record %s: %w", m.record.ID, err)
	}
	return string(b), nil
}

// Seal serializes the record and encrypts it with the model's proxy.
func (m *Model) Seal() (string, error) {
	if m.proxy == nil {
		return "", fmt.Errorf("%w: model has no proxy", proxy.ErrConfiguration)
	}
	data, err := m.Serialize()
	if err != nil {
		return "", err
	}
	return m.proxy.Encrypt(data)
}

// Unseal decrypts sealed, replaces the record's fields with the result and
// fires the proxy's fetch notification with the restored record.
func (m *Model) Unseal(sealed string) error {
	if m.proxy == nil {
		return fmt.Errorf("%w: model has no proxy", proxy.ErrConfiguration)
	}
	data, err := m.proxy.Decrypt(sealed)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return fmt.Errorf("decode record %s: %w", m.ID(), err)
	}

	m.mu.Lock()
	m.record.Fields = nonNilFields(fields)
	m.mu.Unlock()

	rec, err := m.Data()
	if err != nil {
		return err
	}
	m.proxy.NotifyAfterFetch(rec, nil)
	return nil
}
