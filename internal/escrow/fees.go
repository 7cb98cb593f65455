package escrow

// Amount is a money value in integer cents. Fee arithmetic stays in integers
// so the breakdown shown to the inviter matches the charge exactly.
type Amount int64

// Default fee rates in basis points. Both are configurable via
// config.FromEnv; call sites must take them from a FeePolicy, never from
// these constants directly.
const (
	DefaultAuthorizeFeeBps = 1000 // 10% charged to the inviter at authorization
	DefaultPayoutFeeBps    = 500  // 5% deducted from the recipient at capture
)

// FeePolicy names the two independent rates applied at different lifecycle
// points: the authorize-side fee is added to the hold, the payout-side fee is
// deducted from the capture.
type FeePolicy struct {
	AuthorizeFeeBps int64
	PayoutFeeBps    int64
}

// DefaultFeePolicy returns the platform's standard rates.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		AuthorizeFeeBps: DefaultAuthorizeFeeBps,
		PayoutFeeBps:    DefaultPayoutFeeBps,
	}
}

// Breakdown is the fee display shown before authorization. Invariant:
// TotalCharged is exactly what the gateway is asked to hold.
type Breakdown struct {
	Offer        Amount `json:"offer"`
	AuthorizeFee Amount `json:"authorizeFee"`
	TotalCharged Amount `json:"totalCharged"`
}

// Breakdown computes the authorize-side fee display for an offer. Pure.
func (f FeePolicy) Breakdown(offer Amount) Breakdown {
	fee := applyBps(offer, f.AuthorizeFeeBps)
	return Breakdown{
		Offer:        offer,
		AuthorizeFee: fee,
		TotalCharged: offer + fee,
	}
}

// Payout computes the recipient's capture amount after the payout-side fee.
func (f FeePolicy) Payout(offer Amount) Amount {
	return offer - applyBps(offer, f.PayoutFeeBps)
}

// applyBps rounds half away from zero to currency precision.
func applyBps(amount Amount, bps int64) Amount {
	return Amount((int64(amount)*bps + 5000) / 10000)
}
