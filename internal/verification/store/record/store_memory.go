package record

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"parley/internal/verification"
	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

type key struct {
	user     domain.UserID
	platform domain.SocialPlatform
}

// InMemoryStore keeps verification records in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[key]*verification.Record
}

// NewInMemoryStore constructs an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[key]*verification.Record)}
}

func (s *InMemoryStore) Get(_ context.Context, userID domain.UserID, platform domain.SocialPlatform) (*verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key{userID, platform}]
	if !ok {
		return nil, fmt.Errorf("verification record: %w", sentinel.ErrNotFound)
	}
	c := *record
	return &c, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, record *verification.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *record
	s.records[key{record.UserID, record.Platform}] = &c
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID domain.UserID) ([]*verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*verification.Record
	for k, record := range s.records {
		if k.user == userID {
			c := *record
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}
