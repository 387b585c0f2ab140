package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"diarium/internal/model"
	"diarium/internal/repository"
)

// Allocator mints registration numbers of the shape <YEAR>-<TENANT>-<SEQ>.
// Sequences are per tenant, start at 1, and reset to 1 on the first
// allocation of a new calendar year.
type Allocator interface {
	Allocate(ctx context.Context, tenant string) (string, error)
}

type sequenceAllocator struct {
	seq repository.SequenceRepository
	now func() time.Time
}

// NewAllocator constructs the registration number allocator.
func NewAllocator(seq repository.SequenceRepository) Allocator {
	return &sequenceAllocator{seq: seq, now: time.Now}
}

// Allocate advances the tenant's counter and formats the registration number.
// The repository persists the counter under an exclusive per-tenant lock
// before the value is returned, so two concurrent calls for the same tenant
// can never observe the same prior value, and a failed persist hands out
// nothing.
func (a *sequenceAllocator) Allocate(ctx context.Context, tenant string) (string, error) {
	if strings.TrimSpace(tenant) == "" {
		return "", invalidf("tenant", "must not be blank")
	}

	now := a.now().UTC()
	seq, err := a.seq.Increment(ctx, tenant, func(c model.SequenceCounter) int64 {
		// A counter last touched in an earlier year restarts at 1. A freshly
		// created counter reports "touched now" and increments from zero, so
		// the very first allocation also yields 1.
		if c.LastTouched().UTC().Year() < now.Year() {
			return 1
		}
		return c.SequenceNumber + 1
	})
	if err != nil {
		return "", fmt.Errorf("allocate sequence for tenant %s: %w", tenant, err)
	}

	return FormatRegistrationNumber(now.Year(), tenant, seq), nil
}

// FormatRegistrationNumber renders "<year>-<tenant>-<seq>". The sequence has
// no fixed width.
func FormatRegistrationNumber(year int, tenant string, seq int64) string {
	return fmt.Sprintf("%d-%s-%d", year, tenant, seq)
}
