package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"bitespeed-identity/internal/identifier"
	"bitespeed-identity/internal/lock"
	"bitespeed-identity/internal/metrics"
	"bitespeed-identity/internal/models"
)

// Outcome is the structural action a reconcile call took
type Outcome string

const (
	OutcomeCreatedPrimary   Outcome = "created_primary"
	OutcomeCreatedSecondary Outcome = "created_secondary"
	OutcomeMerged           Outcome = "merged"
	OutcomeUnchanged        Outcome = "unchanged"
)

// ReconciliationService handles identity reconciliation logic.
// It holds no mutable state between calls and is safe for concurrent use.
type ReconciliationService struct {
	store   TxStore
	locker  lock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *ReconciliationService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *ReconciliationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ReconciliationService) {
		s.metrics = m
	}
}

// WithLocker adds a cross-process lock around each reconcile sequence, on top
// of the serialisation the store provides.
func WithLocker(l lock.Locker) Option {
	return func(s *ReconciliationService) {
		if l != nil {
			s.locker = l
		}
	}
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(store TxStore, opts ...Option) *ReconciliationService {
	s := &ReconciliationService{
		store:  store,
		locker: lock.Nop{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plan is what a reconcile call decided to do, computed before any write.
type plan struct {
	outcome Outcome
	result  *models.Contact
	insert  *models.Contact
	updates []*models.Contact
}

// Reconcile maps an (email, phone) sighting onto the cluster structure and
// returns the record it resolved to: a new primary, a new secondary, the
// surviving primary of a merge, or an existing record left untouched.
func (s *ReconciliationService) Reconcile(ctx context.Context, email, phoneNumber string) (*models.Contact, error) {
	start := time.Now()
	defer s.metrics.ObserveReconcile(start)

	if strings.TrimSpace(email) == "" || strings.TrimSpace(phoneNumber) == "" {
		return nil, invalidRequest("email and phoneNumber are required")
	}

	keys := identifier.LockKeys(email, phoneNumber)
	unlock, err := s.locker.Lock(ctx, keys)
	if err != nil {
		err = storageFailure("acquire lock", err)
		s.metrics.IncStorageFailure("lock")
		s.logger.ErrorContext(ctx, "reconcile failed", "email", email, "phone_number", phoneNumber, "action", "lock", "error", err)
		return nil, err
	}
	defer unlock()

	var decided *plan
	err = s.store.Atomically(ctx, keys, func(ctx context.Context, tx ContactStore) error {
		p, err := s.decide(ctx, tx, email, phoneNumber)
		if err != nil {
			return err
		}
		decided = p
		return s.apply(ctx, tx, p)
	})
	if err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			return nil, err
		}
		if !errors.Is(err, ErrStorageFailure) {
			err = storageFailure("commit", err)
		}
		action := "decide"
		if decided != nil {
			action = string(decided.outcome)
		}
		s.metrics.IncStorageFailure("reconcile")
		s.logger.ErrorContext(ctx, "reconcile failed", "email", email, "phone_number", phoneNumber, "action", action, "error", err)
		return nil, err
	}

	s.metrics.IncReconcile(string(decided.outcome))
	s.logger.InfoContext(ctx, "contact reconciled",
		"outcome", decided.outcome,
		"contact_id", decided.result.ID,
		"link_precedence", decided.result.LinkPrecedence,
	)
	return decided.result, nil
}

// decide reads the candidates and chooses the structural action.
func (s *ReconciliationService) decide(ctx context.Context, tx ContactStore, email, phoneNumber string) (*plan, error) {
	matches, primaries, err := s.lockClusters(ctx, tx, email, phoneNumber)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return &plan{
			outcome: OutcomeCreatedPrimary,
			insert:  newContact(email, phoneNumber, nil),
		}, nil
	}

	if len(primaries) > 1 {
		return s.planMerge(ctx, tx, primaries)
	}

	if exact := findExact(matches, email, phoneNumber); exact != nil {
		return &plan{outcome: OutcomeUnchanged, result: exact}, nil
	}

	return &plan{
		outcome: OutcomeCreatedSecondary,
		insert:  newContact(email, phoneNumber, &primaries[0].ID),
	}, nil
}

// planMerge keeps the oldest primary and demotes the rest. Every secondary of
// a demoted primary is re-linked to the survivor in the same batch so no
// chain is ever persisted.
func (s *ReconciliationService) planMerge(ctx context.Context, tx ContactStore, primaries []*models.Contact) (*plan, error) {
	survivor := primaries[0]
	p := &plan{outcome: OutcomeMerged, result: survivor}

	for _, old := range primaries[1:] {
		demoted := old.Clone()
		demoted.LinkPrecedence = models.LinkPrecedenceSecondary
		demoted.LinkedID = models.Int64Ptr(survivor.ID)
		p.updates = append(p.updates, demoted)

		former, err := tx.Find(ctx, models.ContactFilter{LinkedID: models.Int64Ptr(old.ID)})
		if err != nil {
			return nil, storageFailure("find secondaries", err)
		}
		for _, c := range former {
			relinked := c.Clone()
			relinked.LinkPrecedence = models.LinkPrecedenceSecondary
			relinked.LinkedID = models.Int64Ptr(survivor.ID)
			p.updates = append(p.updates, relinked)
		}

		s.logger.InfoContext(ctx, "merging clusters",
			"survivor_id", survivor.ID,
			"demoted_id", old.ID,
			"relinked", len(former),
		)
	}
	return p, nil
}

func (s *ReconciliationService) apply(ctx context.Context, tx ContactStore, p *plan) error {
	if p.insert != nil {
		saved, err := tx.Save(ctx, p.insert)
		if err != nil {
			return storageFailure("insert contact", err)
		}
		p.result = saved
	}
	for _, c := range p.updates {
		if _, err := tx.Save(ctx, c); err != nil {
			return storageFailure("update contact", err)
		}
	}
	return nil
}

func newContact(email, phoneNumber string, linkedID *int64) *models.Contact {
	c := &models.Contact{
		Email:          models.StringPtr(email),
		PhoneNumber:    models.StringPtr(phoneNumber),
		LinkPrecedence: models.LinkPrecedencePrimary,
	}
	if linkedID != nil {
		c.LinkedID = models.Int64Ptr(*linkedID)
		c.LinkPrecedence = models.LinkPrecedenceSecondary
	}
	return c
}

// findExact returns the oldest match carrying exactly the given pair.
func findExact(matches []*models.Contact, email, phoneNumber string) *models.Contact {
	for _, c := range matches {
		if c.HasEmail(email) && c.HasPhoneNumber(phoneNumber) {
			return c
		}
	}
	return nil
}
