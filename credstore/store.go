// Package credstore persists the credentials the client needs across runs:
// the access and refresh tokens, the logged-in user's profile and the
// "remember me" email. Passwords are never stored.
package credstore

import (
	"context"
	"errors"
	"sync"
)

// Key names one persisted value.
type Key string

const (
	KeyAccessToken     Key = "access-token"
	KeyRefreshToken    Key = "refresh-token"
	KeyUser            Key = "user"
	KeyRememberedEmail Key = "remembered-email"
	KeyRememberFlag    Key = "remember-flag"
)

// SessionKeys are the keys wiped on logout or unrecoverable auth failure.
var SessionKeys = []Key{KeyAccessToken, KeyRefreshToken, KeyUser}

// Store is a small key-value store. Get reports a missing key with ok=false
// and a nil error; Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key Key) (value string, ok bool, err error)
	Set(ctx context.Context, key Key, value string) error
	Delete(ctx context.Context, key Key) error
}

// StoreError indicates a credential storage failure.
type StoreError struct {
	Op  string // "get", "set", "delete"
	Key Key
	Err error
}

func (e *StoreError) Error() string {
	msg := e.Op + " credential"
	if e.Key != "" {
		msg += " " + string(e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// DeleteAll removes every key, attempting all of them even if some fail.
func DeleteAll(ctx context.Context, s Store, keys ...Key) error {
	var errs []error
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Key]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[Key]string)}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
