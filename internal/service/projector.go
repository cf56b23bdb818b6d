package service

import (
	"sort"

	"bitespeed-identity/internal/models"
)

// Project assembles the consolidated view of a cluster. The primary's own
// email and phone come first; remaining values follow member creation order
// with duplicates dropped.
func Project(primary *models.Contact, members []*models.Contact) models.ContactResponse {
	resp := models.ContactResponse{
		Emails:              []string{},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}
	if primary == nil {
		return resp
	}
	resp.PrimaryContactID = primary.ID

	ordered := make([]*models.Contact, 0, len(members))
	for _, m := range members {
		if m != nil {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return olderThan(ordered[i], ordered[j])
	})

	emails := newOrderedSet()
	phones := newOrderedSet()
	emails.add(primary.Email)
	phones.add(primary.PhoneNumber)

	for _, m := range ordered {
		emails.add(m.Email)
		phones.add(m.PhoneNumber)
		if m.ID != primary.ID {
			resp.SecondaryContactIDs = append(resp.SecondaryContactIDs, m.ID)
		}
	}

	resp.Emails = append(resp.Emails, emails.values...)
	resp.PhoneNumbers = append(resp.PhoneNumbers, phones.values...)
	return resp
}

// orderedSet keeps first-occurrence order
type orderedSet struct {
	seen   map[string]bool
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v *string) {
	if v == nil || *v == "" || s.seen[*v] {
		return
	}
	s.seen[*v] = true
	s.values = append(s.values, *v)
}
