package service

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

import (
	"context"

	"bitespeed-identity/internal/models"
)

// ContactStore is the persistence collaborator the engine reads and writes through.
type ContactStore interface {
	// Find returns every contact matching any predicate in filter, ordered by
	// createdAt ascending with id as the tie-break.
	Find(ctx context.Context, filter models.ContactFilter) ([]*models.Contact, error)
	// FindOne returns models.ErrContactNotFound when id is absent.
	FindOne(ctx context.Context, id int64) (*models.Contact, error)
	// Save inserts when ID is zero and updates in place otherwise. The returned
	// contact has ID, CreatedAt and UpdatedAt populated.
	Save(ctx context.Context, contact *models.Contact) (*models.Contact, error)
}

// TxStore is a ContactStore that can run a read-decide-write sequence atomically.
type TxStore interface {
	ContactStore
	// Atomically runs fn against a transactional view of the store, serialised
	// against other callers holding any of keys. Writes made through the view
	// commit together when fn returns nil and are discarded otherwise.
	Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, tx ContactStore) error) error
}

// ClusterLocker is implemented by transactional views whose key locks do not
// already serialise every writer. LockCluster holds the cluster headed by
// primaryID until the surrounding Atomically call returns.
type ClusterLocker interface {
	LockCluster(ctx context.Context, primaryID int64) error
}
