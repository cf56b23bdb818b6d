package service

import (
	"context"

	"bitespeed-identity/internal/models"
)

// findCandidates returns every contact whose email or phone equals the given
// values, oldest first. Empty values are ignored; with nothing to match on
// the store is not queried.
func findCandidates(ctx context.Context, store ContactStore, email, phoneNumber *string) ([]*models.Contact, error) {
	filter := models.ContactFilter{}
	if email != nil && *email != "" {
		filter.Email = email
	}
	if phoneNumber != nil && *phoneNumber != "" {
		filter.PhoneNumber = phoneNumber
	}
	if filter.IsEmpty() {
		return nil, nil
	}

	contacts, err := store.Find(ctx, filter)
	if err != nil {
		return nil, storageFailure("find candidates", err)
	}
	return contacts, nil
}

// findCluster returns the primary plus every contact linked to it, oldest first.
func findCluster(ctx context.Context, store ContactStore, primaryID int64) ([]*models.Contact, error) {
	contacts, err := store.Find(ctx, models.ContactFilter{
		ID:       models.Int64Ptr(primaryID),
		LinkedID: models.Int64Ptr(primaryID),
	})
	if err != nil {
		return nil, storageFailure("find cluster", err)
	}
	return contacts, nil
}
