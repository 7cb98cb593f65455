package identity

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

// InMemoryStore keeps user records in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[domain.UserID]*UserRecord
	byHandle map[string]domain.UserID
	now      func() time.Time
}

// NewInMemoryStore constructs an empty in-memory identity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[domain.UserID]*UserRecord),
		byHandle: make(map[string]domain.UserID),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Get(_ context.Context, id domain.UserID) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	return copyRecord(record), nil
}

func (s *InMemoryStore) GetByHandle(_ context.Context, handle string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHandle[handle]
	if !ok {
		return nil, fmt.Errorf("handle %q: %w", handle, sentinel.ErrNotFound)
	}
	return copyRecord(s.users[id]), nil
}

func (s *InMemoryStore) Create(_ context.Context, record *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[record.ID]; ok {
		return fmt.Errorf("user %s exists: %w", record.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byHandle[record.Handle]; ok {
		return fmt.Errorf("handle %q taken: %w", record.Handle, sentinel.ErrConflict)
	}
	stored := copyRecord(record)
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.users[record.ID] = stored
	s.byHandle[record.Handle] = record.ID
	return nil
}

func (s *InMemoryStore) Put(_ context.Context, id domain.UserID, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	if patch.DisplayName != nil {
		record.DisplayName = *patch.DisplayName
	}
	if len(patch.SocialLinks) > 0 {
		if record.SocialLinks == nil {
			record.SocialLinks = make(map[domain.SocialPlatform]string, len(patch.SocialLinks))
		}
		maps.Copy(record.SocialLinks, patch.SocialLinks)
	}
	record.UpdatedAt = s.now()
	return nil
}

func copyRecord(r *UserRecord) *UserRecord {
	c := *r
	c.SocialLinks = maps.Clone(r.SocialLinks)
	return &c
}
