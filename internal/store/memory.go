// Package store provides an in-memory ContactStore used by tests and by
// ephemeral runs of the CLI.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bitespeed-identity/internal/models"
	"bitespeed-identity/internal/service"
)

// InMemory keeps contacts in a map guarded by a mutex. Every read and write
// copies records so callers never alias stored state.
type InMemory struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	contacts map[int64]*models.Contact
	nextID   int64
	now      func() time.Time
}

type Option func(*InMemory)

// WithClock overrides the timestamp source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *InMemory) {
		s.now = now
	}
}

// NewInMemory constructs an empty store.
func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		contacts: make(map[int64]*models.Contact),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ service.TxStore = (*InMemory)(nil)

func (s *InMemory) Find(_ context.Context, filter models.ContactFilter) ([]*models.Contact, error) {
	if filter.IsEmpty() {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contact
	for _, c := range s.contacts {
		if c.DeletedAt == nil && filter.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *InMemory) FindOne(_ context.Context, id int64) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok || c.DeletedAt != nil {
		return nil, models.ErrContactNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) Save(_ context.Context, contact *models.Contact) (*models.Contact, error) {
	if contact == nil {
		return nil, fmt.Errorf("contact is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := contact.Clone()
	if c.ID == 0 {
		c.ID = s.nextID
		s.nextID++
		c.CreatedAt = now
		c.UpdatedAt = now
		s.contacts[c.ID] = c
		return c.Clone(), nil
	}

	existing, ok := s.contacts[c.ID]
	if !ok {
		return nil, fmt.Errorf("update contact %d: %w", c.ID, models.ErrContactNotFound)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = now
	s.contacts[c.ID] = c
	return c.Clone(), nil
}

// Atomically serialises fn against every other Atomically call and rolls the
// store back to its prior contents when fn fails. Keys are ignored: a single
// process-wide section is enough for an in-memory store.
func (s *InMemory) Atomically(ctx context.Context, _ []string, fn func(ctx context.Context, tx service.ContactStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot, nextID := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snapshot, nextID)
		return err
	}
	return nil
}

// All returns every stored contact, oldest first.
func (s *InMemory) All() []*models.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c.Clone())
	}
	sortByCreation(out)
	return out
}

func (s *InMemory) snapshot() (map[int64]*models.Contact, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]*models.Contact, len(s.contacts))
	for id, c := range s.contacts {
		out[id] = c.Clone()
	}
	return out, s.nextID
}

func (s *InMemory) restore(contacts map[int64]*models.Contact, nextID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = contacts
	s.nextID = nextID
}

func sortByCreation(contacts []*models.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
