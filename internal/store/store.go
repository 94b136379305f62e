// Package store persists the per-cluster monitor state as one JSON blob per
// key. An absent key is an ordinary outcome (first run), so reads report it
// with a boolean instead of an error.
package store

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// Store is a key-value blob store.
type Store interface {
	// GetJSON reads the object at key into v. It returns false with a nil
	// error when the key does not exist.
	GetJSON(key string, v interface{}) (bool, error)
	// PutJSON writes v as JSON at key, replacing any previous object.
	PutJSON(key string, v interface{}) error
	// GetText reads the object at key as text, with the same not-found
	// convention as GetJSON.
	GetText(key string) (string, bool, error)
}

// Memory is an in-process Store used by tests. Writes counts every PutJSON so
// tests can assert that an unchanged poll cycle persists nothing.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  int
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) GetJSON(key string, v interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return false, nil
	}
	return true, errors.Wrapf(json.Unmarshal(data, v), "decoding object %q", key)
}

func (m *Memory) PutJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding object %q", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.writes++
	return nil
}

func (m *Memory) GetText(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return string(data), ok, nil
}

// PutText seeds a raw object, e.g. a config file, for tests.
func (m *Memory) PutText(key, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(text)
}

// Writes reports how many PutJSON calls have happened.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
