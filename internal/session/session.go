// Package session adapts the Graph client's persistent-data interface onto a
// per-user session.
//
// A Session is the host's key/value session (in-memory for the local
// server, DynamoDB-backed in Lambda). PersistentData namespaces every key
// with Prefix so the login helper's entries cannot collide with anything
// else the application keeps in the same session.
package session

import (
	"context"
	"sync"

	"github.com/fpang/social-graph-bridge/internal/graph"
)

// Prefix is prepended to every key written through PersistentData.
const Prefix = "FBRLH_"

// Session is a per-user key/value store. Get returns a nil value when the
// key is absent. Concurrency semantics are the backend's; writes are
// last-writer-wins.
type Session interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
}

// PersistentData stores graph persistent data in a Session.
type PersistentData struct {
	session Session
}

// Compile-time interface check.
var _ graph.PersistentData = (*PersistentData)(nil)

// NewPersistentData wraps s.
func NewPersistentData(s Session) *PersistentData {
	return &PersistentData{session: s}
}

// Get returns the value stored under Prefix+key, or nil.
func (p *PersistentData) Get(ctx context.Context, key string) (any, error) {
	return p.session.Get(ctx, prefixedKey(key))
}

// Set stores value under Prefix+key.
func (p *PersistentData) Set(ctx context.Context, key string, value any) error {
	return p.session.Set(ctx, prefixedKey(key), value)
}

func prefixedKey(key string) string {
	return Prefix + key
}

// Memory is an in-process Session.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

// Compile-time interface check.
var _ Session = (*Memory)(nil)

// NewMemory creates an empty in-memory session.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

func (m *Memory) Get(_ context.Context, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Keys returns the raw keys held by the session.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}
