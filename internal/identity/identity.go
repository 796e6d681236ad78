// Package identity assigns browsers a stable anonymous visitor id.
package identity

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// VisitorIDKey is the storage key the visitor id lives under.
const VisitorIDKey = "visitor_id"

var ErrNotFound = errors.New("no value stored")

// LocalStore is browser-scoped durable storage.
type LocalStore interface {
	GetLocalValue(key string) (string, error)
	SetLocalValue(key, value string) error
}

type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
}

// Provider hands out the visitor id persisted in its store, minting one on
// first use.
type Provider struct {
	store  LocalStore
	logger Logger
	newID  func() string
}

func NewProvider(store LocalStore, logger Logger) *Provider {
	return &Provider{store: store, logger: logger, newID: uuid.NewString}
}

// GetOrCreateVisitorID never fails. If the store cannot be read or written
// the visitor gets a fresh id for this call, which at worst starts an extra
// conversation.
func (p *Provider) GetOrCreateVisitorID() string {
	existing, err := p.store.GetLocalValue(VisitorIDKey)
	if err == nil && ValidVisitorID(existing) {
		return existing
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		p.warn("visitor id storage unreadable, minting a fresh id", err)
	}

	id := p.newID()
	if err := p.store.SetLocalValue(VisitorIDKey, id); err != nil {
		p.warn("visitor id storage unwritable", err)
	}
	return id
}

func (p *Provider) warn(msg string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "error", err)
	}
}

// ValidVisitorID accepts the ids this package mints. Anything else found in
// storage is treated as absent.
func ValidVisitorID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 64 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// MemoryStore is a LocalStore for tests and the admin tooling.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) GetLocalValue(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) SetLocalValue(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
