package models

import (
	"errors"
	"time"
)

// LinkPrecedence is the role a contact plays inside its cluster
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// ErrContactNotFound is returned by stores when a lookup by id finds nothing
var ErrContactNotFound = errors.New("contact not found")

// Contact represents a customer contact in the database
type Contact struct {
	ID             int64          `json:"id"`
	PhoneNumber    *string        `json:"phoneNumber"`
	Email          *string        `json:"email"`
	LinkedID       *int64         `json:"linkedId"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      *time.Time     `json:"deletedAt"`
}

// IsPrimary reports whether the contact heads its cluster
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// HasEmail reports whether the contact carries the given email
func (c *Contact) HasEmail(email string) bool {
	return c.Email != nil && *c.Email == email
}

// HasPhoneNumber reports whether the contact carries the given phone number
func (c *Contact) HasPhoneNumber(phone string) bool {
	return c.PhoneNumber != nil && *c.PhoneNumber == phone
}

// Clone returns a deep copy so callers can mutate without aliasing store state
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	if c.Email != nil {
		v := *c.Email
		out.Email = &v
	}
	if c.PhoneNumber != nil {
		v := *c.PhoneNumber
		out.PhoneNumber = &v
	}
	if c.LinkedID != nil {
		v := *c.LinkedID
		out.LinkedID = &v
	}
	if c.DeletedAt != nil {
		v := *c.DeletedAt
		out.DeletedAt = &v
	}
	return &out
}

// ContactFilter selects contacts matching ANY of the set fields.
// A filter with no fields set matches nothing.
type ContactFilter struct {
	Email       *string
	PhoneNumber *string
	ID          *int64
	LinkedID    *int64
}

// IsEmpty reports whether no predicate is set
func (f ContactFilter) IsEmpty() bool {
	return f.Email == nil && f.PhoneNumber == nil && f.ID == nil && f.LinkedID == nil
}

// Matches evaluates the filter against a single contact
func (f ContactFilter) Matches(c *Contact) bool {
	switch {
	case f.Email != nil && c.HasEmail(*f.Email):
		return true
	case f.PhoneNumber != nil && c.HasPhoneNumber(*f.PhoneNumber):
		return true
	case f.ID != nil && c.ID == *f.ID:
		return true
	case f.LinkedID != nil && c.LinkedID != nil && *c.LinkedID == *f.LinkedID:
		return true
	}
	return false
}

// ReconcileRequest represents the body of a contact sighting
type ReconcileRequest struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// ReconcileResponse wraps the record the sighting resolved to
type ReconcileResponse struct {
	Message string   `json:"message"`
	Contact *Contact `json:"contact"`
}

// IdentifyRequest represents the incoming request body
type IdentifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// ContactResponse represents the consolidated identity of a cluster
type ContactResponse struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// IdentifyResponse represents the response body
type IdentifyResponse struct {
	Contact ContactResponse `json:"contact"`
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
