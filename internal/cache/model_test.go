package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_dbproxy/internal/proxy"
	"github.com/bassista/go_dbproxy/internal/repository"
)

func newDoctor() repository.Record {
	return repository.Record{ID: "doctor", Fields: map[string]any{"firstname": "The", "lastname": "Doctor", "val": 15}}
}

func newTestModel(t *testing.T, rec repository.Record, p *proxy.DatabaseProxy) *Model {
	t.Helper()
	m, err := NewModel(rec, p)
	require.NoError(t, err)
	return m
}

func TestNewModel_DoesNotShareCallerFields(t *testing.T) {
	rec := newDoctor()
	m := newTestModel(t, rec, nil)

	m.Set("lastname", "Master")
	assert.Equal(t, "Doctor", rec.Fields["lastname"])

	rec.Fields["firstname"] = "A"
	v, _ := m.Get("firstname")
	assert.Equal(t, "The", v)
}

func TestNewModel_UnserializableFields(t *testing.T) {
	_, err := NewModel(repository.Record{ID: "x", Fields: map[string]any{"ch": make(chan int)}}, nil)
	assert.Error(t, err)
}

func TestNewModel_AttachesProxy(t *testing.T) {
	p := newTestProxy(t, "")
	m := newTestModel(t, newDoctor(), p)

	assert.Equal(t, "model", m.Kind())
	assert.Equal(t, "model", p.Type())
	assert.Same(t, p, m.Proxy())
	assert.Equal(t, "doctor", m.ID())
}

func TestModel_GetSet(t *testing.T) {
	m := newTestModel(t, repository.Record{ID: "x"}, nil)

	var changed any
	m.On(EventFieldUpdate, func(p any) { changed = p })

	_, ok := m.Get("lastname")
	assert.False(t, ok)

	m.Set("lastname", "Doctor")
	v, ok := m.Get("lastname")
	assert.True(t, ok)
	assert.Equal(t, "Doctor", v)
	assert.Equal(t, "lastname", changed)
}

func TestModel_DataIsCopy(t *testing.T) {
	m := newTestModel(t, newDoctor(), nil)
	rec, err := m.Data()
	require.NoError(t, err)

	rec.Fields["lastname"] = "Master"
	v, _ := m.Get("lastname")
	assert.Equal(t, "Doctor", v)
}

func TestModel_SealUnseal(t *testing.T) {
	p := newTestProxy(t, "t3stK3y")
	m := newTestModel(t, newDoctor(), p)

	sealed, err := m.Seal()
	require.NoError(t, err)
	assert.NotEmpty(t, sealed)

	plain, err := p.Decrypt(sealed)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(plain), &fields))
	assert.Equal(t, "Doctor", fields["lastname"])

	var fetched any
	m.On(proxy.EventFetch, func(payload any) { fetched = payload })

	m.Set("lastname", "Master")
	require.NoError(t, m.Unseal(sealed))

	v, _ := m.Get("lastname")
	assert.Equal(t, "Doctor", v)
	require.IsType(t, repository.Record{}, fetched)
	assert.Equal(t, "doctor", fetched.(repository.Record).ID)
}

func TestModel_Seal_NoKey(t *testing.T) {
	m := newTestModel(t, newDoctor(), newTestProxy(t, ""))
	_, err := m.Seal()
	assert.ErrorIs(t, err, proxy.ErrNoEncryptionKey)
}

func TestModel_NoProxy(t *testing.T) {
	m := newTestModel(t, newDoctor(), nil)

	_, err := m.Seal()
	assert.ErrorIs(t, err, proxy.ErrConfiguration)
	assert.ErrorIs(t, m.Unseal("00"), proxy.ErrConfiguration)
}

func TestModel_Unseal_Garbage(t *testing.T) {
	m := newTestModel(t, newDoctor(), newTestProxy(t, "t3stK3y"))

	err := m.Unseal("not hex at all")
	assert.ErrorIs(t, err, proxy.ErrDecryption)

	v, _ := m.Get("lastname")
	assert.Equal(t, "Doctor", v, "failed unseal must leave the record untouched")
}
