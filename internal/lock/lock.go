// Package lock serialises reconcile sequences that touch the same identifiers.
//
// The SQL and in-memory stores already serialise writers inside a single
// database; a Locker adds a second layer for deployments where several
// processes share a store that cannot take advisory locks itself.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotAcquired is returned when a lock could not be taken before ctx expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases keys previously acquired by Lock. It is safe to call once.
type Unlock func()

// Locker acquires exclusive ownership of a set of keys.
type Locker interface {
	Lock(ctx context.Context, keys []string) (Unlock, error)
}

// Nop is a Locker that never blocks.
type Nop struct{}

func (Nop) Lock(context.Context, []string) (Unlock, error) {
	return func() {}, nil
}

// sortedUnique returns keys in a stable acquisition order so two callers
// locking overlapping sets cannot deadlock.
func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
