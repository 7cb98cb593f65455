package notification

import (
	"context"
	"sort"
	"sync"

	"parley/pkg/domain"
)

// MemorySink is the in-process notification store used in tests and dev.
type MemorySink struct {
	mu     sync.RWMutex
	byUser map[domain.UserID][]*Notification
}

func NewMemorySink() *MemorySink {
	return &MemorySink{byUser: make(map[domain.UserID][]*Notification)}
}

func (s *MemorySink) Append(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.byUser[n.UserID] = append(s.byUser[n.UserID], &c)
	return nil
}

// ListByUser returns the user's notifications, most recent first.
func (s *MemorySink) ListByUser(_ context.Context, userID domain.UserID) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byUser[userID]
	out := make([]*Notification, 0, len(stored))
	for _, n := range stored {
		c := *n
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
