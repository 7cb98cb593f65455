package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"parley/internal/escrow"
	"parley/pkg/platform/circuit"
	"parley/pkg/platform/sentinel"
)

// CircuitGateway wraps a PaymentGateway with a circuit breaker. Only
// Authorize is gated: an open circuit fails new holds fast instead of
// queueing against a struggling processor. Void and Capture always pass
// through since they settle money already held.
//
// While the circuit is open one authorize at a time is let through as a
// probe; its outcome feeds the breaker so the circuit can close again.
type CircuitGateway struct {
	inner   escrow.PaymentGateway
	breaker *circuit.Breaker
	logger  *slog.Logger
	probing atomic.Bool
}

func NewCircuitGateway(inner escrow.PaymentGateway, breaker *circuit.Breaker, logger *slog.Logger) *CircuitGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitGateway{inner: inner, breaker: breaker, logger: logger}
}

func (g *CircuitGateway) Authorize(ctx context.Context, total escrow.Amount) (string, error) {
	if g.breaker.IsOpen() {
		if !g.probing.CompareAndSwap(false, true) {
			return "", fmt.Errorf("payment gateway %s circuit open: %w", g.breaker.Name(), sentinel.ErrUnavailable)
		}
		defer g.probing.Store(false)
	}

	ref, err := g.inner.Authorize(ctx, total)
	if err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "payment gateway circuit opened",
				"gateway", g.breaker.Name(), "error", err)
		}
		return "", err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "payment gateway circuit closed", "gateway", g.breaker.Name())
	}
	return ref, nil
}

func (g *CircuitGateway) Void(ctx context.Context, reference string) error {
	return g.inner.Void(ctx, reference)
}

func (g *CircuitGateway) Capture(ctx context.Context, reference string) error {
	return g.inner.Capture(ctx, reference)
}
