package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"bitespeed-identity/internal/models"
)

// maxClusterLockRounds bounds how often the candidates may move to a new
// cluster while we wait for cluster locks.
const maxClusterLockRounds = 4

var errClusterUnstable = errors.New("clusters kept changing while locking")

// lockClusters reads the candidates, resolves their primaries and, when tx is
// a ClusterLocker, locks every resolved cluster. A concurrent merge may demote
// a primary while we wait, so after taking new locks the candidates are read
// again until every primary they resolve to is already held.
func (s *ReconciliationService) lockClusters(ctx context.Context, tx ContactStore, email, phoneNumber string) ([]*models.Contact, []*models.Contact, error) {
	locker, canLock := tx.(ClusterLocker)
	held := make(map[int64]bool)

	for round := 0; round < maxClusterLockRounds; round++ {
		matches, err := findCandidates(ctx, tx, &email, &phoneNumber)
		if err != nil {
			return nil, nil, err
		}
		primaries, err := s.resolvePrimaries(ctx, tx, matches)
		if err != nil {
			return nil, nil, err
		}
		if !canLock {
			return matches, primaries, nil
		}

		var pending []int64
		for _, p := range primaries {
			if !held[p.ID] {
				pending = append(pending, p.ID)
			}
		}
		if len(pending) == 0 {
			return matches, primaries, nil
		}

		sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
		for _, id := range pending {
			if err := locker.LockCluster(ctx, id); err != nil {
				return nil, nil, storageFailure("lock cluster", err)
			}
			held[id] = true
		}
	}
	return nil, nil, storageFailure("lock cluster", errClusterUnstable)
}

// resolvePrimaries maps each match to its cluster primary and returns the
// distinct primaries, oldest first.
func (s *ReconciliationService) resolvePrimaries(ctx context.Context, store ContactStore, matches []*models.Contact) ([]*models.Contact, error) {
	known := indexByID(matches)
	seen := make(map[int64]bool, len(matches))
	var primaries []*models.Contact

	for _, c := range matches {
		p, err := s.primaryOf(ctx, store, c, known)
		if err != nil {
			return nil, err
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		primaries = append(primaries, p)
	}

	sort.SliceStable(primaries, func(i, j int) bool {
		return olderThan(primaries[i], primaries[j])
	})
	return primaries, nil
}

// primaryOf follows at most one linkedId hop. Anything that would need a
// second hop is reported, never repaired.
func (s *ReconciliationService) primaryOf(ctx context.Context, store ContactStore, c *models.Contact, known map[int64]*models.Contact) (*models.Contact, error) {
	if c.IsPrimary() {
		if c.LinkedID != nil {
			return nil, s.invariantViolation(ctx, "primary contact carries a linkedId", "contact_id", c.ID, "linked_id", *c.LinkedID)
		}
		return c, nil
	}
	if c.LinkedID == nil {
		return nil, s.invariantViolation(ctx, "secondary contact has no linkedId", "contact_id", c.ID)
	}

	p, ok := known[*c.LinkedID]
	if !ok {
		var err error
		p, err = store.FindOne(ctx, *c.LinkedID)
		if errors.Is(err, models.ErrContactNotFound) {
			return nil, s.invariantViolation(ctx, "secondary contact links to a missing record", "contact_id", c.ID, "linked_id", *c.LinkedID)
		}
		if err != nil {
			return nil, storageFailure("find primary", err)
		}
		known[p.ID] = p
	}

	if !p.IsPrimary() {
		return nil, s.invariantViolation(ctx, "secondary contact links to another secondary", "contact_id", c.ID, "linked_id", p.ID)
	}
	return p, nil
}

func (s *ReconciliationService) invariantViolation(ctx context.Context, msg string, args ...any) error {
	s.metrics.IncInvariantViolation()
	s.logger.ErrorContext(ctx, "INVARIANT VIOLATION: "+msg, args...)
	return fmt.Errorf("%w: %s %v", ErrInvariantViolation, msg, args)
}

// olderThan orders by createdAt, falling back to id when timestamps tie.
func olderThan(a, b *models.Contact) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func indexByID(contacts []*models.Contact) map[int64]*models.Contact {
	out := make(map[int64]*models.Contact, len(contacts))
	for _, c := range contacts {
		out[c.ID] = c
	}
	return out
}
