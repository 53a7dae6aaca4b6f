package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a process-local CredentialStore. It backs tests and
// STORE_DRIVER=memory development runs; state is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	sets    map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty store that reads time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		sets:    make(map[string]map[string]struct{}),
		now:     now,
	}
}

func (s *MemoryStore) GetString(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return "", apperrors.Newf(apperrors.KindNotFound, "key %s not found", key)
	}
	return entry.value, nil
}

func (s *MemoryStore) SetString(_ context.Context, key, value string, opts SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if opts.TTL > 0 {
		entry.expiresAt = s.now().Add(opts.TTL)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) GetAndDeleteString(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(key)
	if !ok {
		return "", apperrors.Newf(apperrors.KindNotFound, "key %s not found", key)
	}
	delete(s.entries, key)
	return entry.value, nil
}

func (s *MemoryStore) DeleteKeys(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
		delete(s.sets, key)
	}
	return nil
}

func (s *MemoryStore) AddMember(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.sets[set]
	if !ok {
		members = make(map[string]struct{})
		s.sets[set] = members
	}
	members[member] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sets[set], member)
	return nil
}

func (s *MemoryStore) Members(_ context.Context, set string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]string, 0, len(s.sets[set]))
	for m := range s.sets[set] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of live keys, ignoring sets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.entries {
		if _, ok := s.lookup(key); ok {
			n++
		}
	}
	return n
}

// lookup must be called with mu held. Expired entries are evicted lazily.
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(s.now()) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
