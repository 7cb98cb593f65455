// Package payment provides the sandbox implementation of the escrow payment
// capability. It stands in for a real gateway in development and tests; the
// escrow ledger neither knows nor cares which implementation it talks to.
package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/escrow"
	"parley/pkg/platform/sentinel"
)

// SandboxGateway holds funds in memory. Holds above DeclineOver are refused,
// and Latency is applied before every call resolves, so timeout behavior can
// be exercised end to end.
type SandboxGateway struct {
	mu    sync.Mutex
	holds map[string]escrow.Amount

	// DeclineOver refuses any hold strictly above this amount when non-zero.
	DeclineOver escrow.Amount
	// Latency delays every call; the context is respected while waiting.
	Latency time.Duration
}

// NewSandboxGateway returns an empty sandbox gateway.
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{holds: make(map[string]escrow.Amount)}
}

func (g *SandboxGateway) Authorize(ctx context.Context, total escrow.Amount) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	if g.DeclineOver > 0 && total > g.DeclineOver {
		return "", fmt.Errorf("hold of %d exceeds sandbox limit", total)
	}

	ref := "sbx_" + uuid.NewString()
	g.mu.Lock()
	g.holds[ref] = total
	g.mu.Unlock()
	return ref, nil
}

func (g *SandboxGateway) Void(ctx context.Context, reference string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.holds[reference]; !ok {
		return fmt.Errorf("hold %s: %w", reference, sentinel.ErrNotFound)
	}
	delete(g.holds, reference)
	return nil
}

func (g *SandboxGateway) Capture(ctx context.Context, reference string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.holds[reference]; !ok {
		return fmt.Errorf("hold %s: %w", reference, sentinel.ErrNotFound)
	}
	delete(g.holds, reference)
	return nil
}

// HeldAmount reports the active hold for a reference, for assertions in tests.
func (g *SandboxGateway) HeldAmount(reference string) (escrow.Amount, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.holds[reference]
	return amount, ok
}

func (g *SandboxGateway) wait(ctx context.Context) error {
	if g.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
