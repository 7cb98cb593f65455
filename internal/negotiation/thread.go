package negotiation

import (
	"fmt"
	"time"

	"parley/internal/proposal"
	"parley/pkg/domain"
)

// Origin tags how a thread entry came to be.
type Origin string

const (
	OriginOffer   Origin = "offer"
	OriginCounter Origin = "counter"
)

// Entry is one proposal in the exchange.
type Entry struct {
	Proposal proposal.Proposal
	Origin   Origin
	By       domain.UserID
	At       time.Time
}

// Thread is the ordered sequence of proposals exchanged between one
// inviter/recipient pair. The highest turn is the live offer; anything below
// it is history.
type Thread struct {
	entries []Entry
}

func newThread(initial Entry) *Thread {
	return &Thread{entries: []Entry{initial}}
}

// Head returns the live proposal.
func (t *Thread) Head() Entry {
	return t.entries[len(t.entries)-1]
}

// Turn is the live proposal's turn marker.
func (t *Thread) Turn() int {
	return t.Head().Proposal.Turn
}

// Entries returns a copy of the exchange in order.
func (t *Thread) Entries() []Entry {
	return append([]Entry{}, t.entries...)
}

// push appends a counter. Turns must strictly increase.
func (t *Thread) push(entry Entry) error {
	if entry.Proposal.Turn <= t.Turn() {
		return fmt.Errorf("turn %d does not advance thread at turn %d", entry.Proposal.Turn, t.Turn())
	}
	t.entries = append(t.entries, entry)
	return nil
}
