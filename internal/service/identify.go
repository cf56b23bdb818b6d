package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitespeed-identity/internal/models"
)

// Identify returns the consolidated view of the cluster the given identifiers
// belong to, or ErrNotFound when nothing matches. It never writes.
func (s *ReconciliationService) Identify(ctx context.Context, email, phoneNumber *string) (*models.ContactResponse, error) {
	start := time.Now()
	defer s.metrics.ObserveIdentify(start)

	if isBlank(email) && isBlank(phoneNumber) {
		return nil, invalidRequest("either email or phoneNumber must be provided")
	}

	view, err := s.identify(ctx, email, phoneNumber)
	switch {
	case err == nil:
		s.metrics.IncIdentify("found")
		return view, nil
	case errors.Is(err, ErrNotFound):
		s.metrics.IncIdentify("not_found")
		return nil, err
	case errors.Is(err, ErrStorageFailure):
		s.metrics.IncStorageFailure("identify")
		s.logger.ErrorContext(ctx, "identify failed", "email", deref(email), "phone_number", deref(phoneNumber), "error", err)
	}
	return nil, err
}

func (s *ReconciliationService) identify(ctx context.Context, email, phoneNumber *string) (*models.ContactResponse, error) {
	matches, err := findCandidates(ctx, s.store, email, phoneNumber)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}

	primary, err := s.pickPrimary(ctx, matches)
	if err != nil {
		return nil, err
	}

	members, err := findCluster(ctx, s.store, primary.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.ID != primary.ID && m.IsPrimary() {
			return nil, s.invariantViolation(ctx, "primary contact carries a linkedId", "contact_id", m.ID, "linked_id", primary.ID)
		}
	}

	view := Project(primary, members)
	return &view, nil
}

// pickPrimary prefers the oldest match that is itself primary; otherwise the
// oldest match is resolved through its linkedId.
func (s *ReconciliationService) pickPrimary(ctx context.Context, matches []*models.Contact) (*models.Contact, error) {
	known := indexByID(matches)
	for _, c := range matches {
		if c.IsPrimary() {
			return s.primaryOf(ctx, s.store, c, known)
		}
	}
	return s.primaryOf(ctx, s.store, matches[0], known)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
