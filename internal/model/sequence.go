package model

import "time"

// SequenceCounter holds the per-tenant registration sequence. It is mutated
// only by the allocator, under an exclusive row lock.
type SequenceCounter struct {
	Tenant         string
	SequenceNumber int64
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// LastTouched reports when the counter last changed. A freshly created counter
// counts as touched at creation, so its first allocation increments from zero
// instead of tripping the year reset.
func (c SequenceCounter) LastTouched() time.Time {
	if c.ModifiedAt.After(c.CreatedAt) {
		return c.ModifiedAt
	}
	return c.CreatedAt
}
