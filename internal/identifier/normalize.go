// Package identifier canonicalises email and phone values so that equivalent
// spellings of the same identifier map to the same lock key.
package identifier

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	emailKeyPrefix = "email:"
	phoneKeyPrefix = "phone:"
)

// NormalizeEmail applies NFC, trims surrounding whitespace and lower-cases.
func NormalizeEmail(email string) string {
	email = norm.NFC.String(email)
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone applies NFC, trims and drops common formatting characters.
func NormalizePhone(phone string) string {
	phone = norm.NFC.String(strings.TrimSpace(phone))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, phone)
}

// LockKeys returns the sorted, de-duplicated lock keys for a sighting.
// Empty identifiers produce no key.
func LockKeys(email, phone string) []string {
	keys := make([]string, 0, 2)
	if e := NormalizeEmail(email); e != "" {
		keys = append(keys, emailKeyPrefix+e)
	}
	if p := NormalizePhone(phone); p != "" {
		keys = append(keys, phoneKeyPrefix+p)
	}
	sort.Strings(keys)
	return keys
}
