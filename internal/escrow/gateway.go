package escrow

import "context"

// PaymentGateway is the external payment capability. Implementations place,
// void, and capture holds; the ledger owns all state and fee arithmetic.
//
// Contract: Authorize returns an opaque, non-empty reference on success. An
// ambiguous outcome (empty reference with nil error) is treated as failure by
// the ledger; implementations must not rely on the ledger guessing. Calls must
// honor ctx cancellation.
type PaymentGateway interface {
	Authorize(ctx context.Context, total Amount) (reference string, err error)
	Void(ctx context.Context, reference string) error
	Capture(ctx context.Context, reference string) error
}
