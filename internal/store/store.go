// Package store is the device-local persistence boundary: the last-known
// bundle records and the saved-locations list. Values are whole serialized
// records, read-then-written as a unit; absence of a key is a normal
// "no prior data" state, never an error.
package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Keys for the stored records.
const (
	KeySnapshot  = "weather:snapshot"
	KeyForecast  = "weather:forecast"
	KeyTimezone  = "weather:timezone"
	KeyLocations = "weather:saved-locations"
)

// Store is a device-scoped key/value store of serialized records.
// Get reports (false, nil) on a missing key.
type Store interface {
	Get(ctx context.Context, key string, v interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore implements Store with an in-process map. Writes are whole-value
// and guarded by a mutex, so concurrent acquisitions see last-writer-wins.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
