package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parley/internal/verification"
	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

// InMemoryQueue keeps verification requests in memory for tests/dev. The
// mutex gives the same atomic check-then-write guarantee for ResolveIfPending
// that the redis implementation provides with a script.
type InMemoryQueue struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*verification.Request
	now      func() time.Time
}

// NewInMemoryQueue constructs an empty in-memory request queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		requests: make(map[domain.RequestID]*verification.Request),
		now:      time.Now,
	}
}

func (q *InMemoryQueue) Enqueue(_ context.Context, request *verification.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.requests[request.ID]; ok {
		return fmt.Errorf("request %s exists: %w", request.ID, sentinel.ErrConflict)
	}
	c := *request
	q.requests[request.ID] = &c
	return nil
}

func (q *InMemoryQueue) Get(_ context.Context, id domain.RequestID) (*verification.Request, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	request, ok := q.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	c := *request
	return &c, nil
}

func (q *InMemoryQueue) List(_ context.Context) ([]*verification.Request, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*verification.Request, 0, len(q.requests))
	for _, request := range q.requests {
		c := *request
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (q *InMemoryQueue) ResolveIfPending(_ context.Context, id domain.RequestID, next verification.RequestStatus) (*verification.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	request, ok := q.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if request.Status != verification.RequestPending {
		return nil, fmt.Errorf("request %s is %s: %w", id, request.Status, sentinel.ErrInvalidState)
	}
	before := *request
	request.Status = next
	resolved := q.now()
	request.ResolvedAt = &resolved
	return &before, nil
}

func (q *InMemoryQueue) Reopen(_ context.Context, id domain.RequestID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	request, ok := q.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	request.Status = verification.RequestPending
	request.ResolvedAt = nil
	return nil
}

func (q *InMemoryQueue) Delete(_ context.Context, id domain.RequestID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.requests[id]; !ok {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	delete(q.requests, id)
	return nil
}
