package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	emaildomain "github.com/vynious/finOS/internal/email/domain"
	"github.com/vynious/finOS/internal/email/repository"
)

// IDSet is a set of message ids
type IDSet map[string]struct{}

// Has reports whether id is in the set
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DedupTracker remembers which messages were already processed for each
// user. The stored set only grows: Set always writes a superset of what Get
// returned, and Lock serializes the read-modify-write per user.
type DedupTracker struct {
	repo repository.TrackedMessageRepository

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewDedupTracker creates a new DedupTracker
func NewDedupTracker(repo repository.TrackedMessageRepository) *DedupTracker {
	return &DedupTracker{
		repo:  repo,
		locks: make(map[string]*userLock),
	}
}

// Get loads the tracked set for owner. A user with no record gets an empty set.
func (t *DedupTracker) Get(ctx context.Context, owner string) (IDSet, error) {
	ids, err := t.repo.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracked messages for %s: %w", owner, err)
	}
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Set persists ids as the complete tracked set for owner. Callers must have
// merged ids with the set returned by Get.
func (t *DedupTracker) Set(ctx context.Context, owner string, ids IDSet) error {
	if err := t.repo.Set(ctx, owner, ids.Sorted()); err != nil {
		return fmt.Errorf("failed to save tracked messages for %s: %w", owner, err)
	}
	return nil
}

// Untracked returns the candidates whose id is not in tracked, keeping order
// and dropping repeated ids.
func Untracked(candidates []emaildomain.CandidateMessage, tracked IDSet) []emaildomain.CandidateMessage {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]emaildomain.CandidateMessage, 0, len(candidates))
	for _, c := range candidates {
		if tracked.Has(c.ID) {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Lock takes the per-user lock and returns its release function. Two syncs
// for the same user never interleave their load and commit.
func (t *DedupTracker) Lock(owner string) func() {
	t.mu.Lock()
	l, ok := t.locks[owner]
	if !ok {
		l = &userLock{}
		t.locks[owner] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, owner)
		}
		t.mu.Unlock()
	}
}
