package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bitespeed-identity/internal/models"
	"bitespeed-identity/internal/service"
)

const selectContacts = `SELECT id, phone_number, email, linked_id, link_precedence, created_at, updated_at, deleted_at
			  FROM contacts`

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ContactStore persists contacts in SQLite or PostgreSQL
type ContactStore struct {
	db  *DB
	q   querier
	now func() time.Time
}

var (
	_ service.TxStore       = (*ContactStore)(nil)
	_ service.ClusterLocker = (*ContactStore)(nil)
)

// NewContactStore creates a store on an open database
func NewContactStore(db *DB) *ContactStore {
	return &ContactStore{
		db:  db,
		q:   db.Conn,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *ContactStore) withQuerier(q querier) *ContactStore {
	return &ContactStore{db: s.db, q: q, now: s.now}
}

// Find queries contacts matching any predicate of the filter, oldest first
func (s *ContactStore) Find(ctx context.Context, filter models.ContactFilter) ([]*models.Contact, error) {
	if filter.IsEmpty() {
		return nil, nil
	}

	var conds []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Email != nil {
		add("email", *filter.Email)
	}
	if filter.PhoneNumber != nil {
		add("phone_number", *filter.PhoneNumber)
	}
	if filter.ID != nil {
		add("id", *filter.ID)
	}
	if filter.LinkedID != nil {
		add("linked_id", *filter.LinkedID)
	}

	query := selectContacts + `
			  WHERE (` + strings.Join(conds, " OR ") + `) AND deleted_at IS NULL
			  ORDER BY created_at ASC, id ASC`
	contacts, err := s.queryContacts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}
	return contacts, nil
}

// FindOne queries a contact by id
func (s *ContactStore) FindOne(ctx context.Context, id int64) (*models.Contact, error) {
	query := selectContacts + ` WHERE id = $1 AND deleted_at IS NULL`
	contacts, err := s.queryContacts(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("find contact %d: %w", id, err)
	}
	if len(contacts) == 0 {
		return nil, models.ErrContactNotFound
	}
	return contacts[0], nil
}

// Save inserts a new contact or updates an existing one in place
func (s *ContactStore) Save(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	if contact == nil {
		return nil, fmt.Errorf("contact is required")
	}
	if contact.ID == 0 {
		return s.insert(ctx, contact)
	}
	return s.update(ctx, contact)
}

func (s *ContactStore) insert(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query := `INSERT INTO contacts (phone_number, email, linked_id, link_precedence, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	now := s.now()
	var id int64
	err := s.q.QueryRowContext(ctx, query,
		nullString(contact.PhoneNumber), nullString(contact.Email), nullInt64(contact.LinkedID), string(contact.LinkPrecedence), now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	saved := contact.Clone()
	saved.ID = id
	saved.CreatedAt = now
	saved.UpdatedAt = now
	return saved, nil
}

func (s *ContactStore) update(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query := `UPDATE contacts SET phone_number = $1, email = $2, linked_id = $3, link_precedence = $4, updated_at = $5
			  WHERE id = $6 AND deleted_at IS NULL`

	res, err := s.q.ExecContext(ctx, query,
		nullString(contact.PhoneNumber), nullString(contact.Email), nullInt64(contact.LinkedID), string(contact.LinkPrecedence), s.now(), contact.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update contact %d: %w", contact.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update contact %d: %w", contact.ID, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("update contact %d: %w", contact.ID, models.ErrContactNotFound)
	}
	return s.FindOne(ctx, contact.ID)
}

// Atomically runs fn inside a transaction. PostgreSQL additionally takes a
// transaction-scoped advisory lock per key; SQLite relies on the immediate
// transaction mode set in the DSN.
func (s *ContactStore) Atomically(ctx context.Context, keys []string, fn func(ctx context.Context, tx service.ContactStore) error) error {
	tx, err := s.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.db.Driver == DriverPostgres {
		sorted := append([]string(nil), keys...)
		sort.Strings(sorted)
		for _, key := range sorted {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
				return fmt.Errorf("advisory lock %s: %w", key, err)
			}
		}
	}

	if err := fn(ctx, s.withQuerier(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockCluster takes a transaction-scoped advisory lock on the cluster headed
// by primaryID. Key locks alone do not cover a merge, which rewrites records
// reachable through the demoted primary rather than through the sighting's
// own identifiers. SQLite already serialises writers, so it is a no-op there.
func (s *ContactStore) LockCluster(ctx context.Context, primaryID int64) error {
	if s.db.Driver != DriverPostgres {
		return nil
	}
	key := "cluster:" + strconv.FormatInt(primaryID, 10)
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}

// queryContacts executes a query and returns contacts
func (s *ContactStore) queryContacts(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c := &models.Contact{}
		var phone, email sql.NullString
		var linkedID sql.NullInt64
		var precedence string
		var deletedAt sql.NullTime

		err := rows.Scan(&c.ID, &phone, &email, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
		if err != nil {
			return nil, err
		}

		c.LinkPrecedence = models.LinkPrecedence(precedence)
		if phone.Valid {
			c.PhoneNumber = &phone.String
		}
		if email.Valid {
			c.Email = &email.String
		}
		if linkedID.Valid {
			c.LinkedID = &linkedID.Int64
		}
		if deletedAt.Valid {
			c.DeletedAt = &deletedAt.Time
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()

		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
