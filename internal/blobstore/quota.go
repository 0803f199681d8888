package blobstore

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is the sentinel cause carried by capacity denials.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Quota decides whether N additional bytes may be stored. It is a pure
// decision with no side effects, consulted before every write and by
// Store.IsFull. A nil return permits the write.
type Quota interface {
	CanHold(additional int64) error
}

// Unlimited is a Quota that never denies.
type Unlimited struct{}

func (Unlimited) CanHold(int64) error {
	return nil
}

// ByteLimit caps the total byte size of a store at a fixed limit. Current
// usage is read through the usage callback on every decision, so the limit
// tracks the live state of the store rather than a cached counter.
type ByteLimit struct {
	Limit int64
	Usage func() (int64, error)
}

// NewByteLimit creates a ByteLimit quota over the given usage source.
func NewByteLimit(limit int64, usage func() (int64, error)) *ByteLimit {
	return &ByteLimit{Limit: limit, Usage: usage}
}

func (q *ByteLimit) CanHold(additional int64) error {
	used, err := q.Usage()
	if err != nil {
		return fmt.Errorf("read current usage: %w", err)
	}

	if used+additional > q.Limit {
		return fmt.Errorf("%w: %d of %d bytes used, %d more requested",
			ErrQuotaExceeded, used, q.Limit, additional)
	}
	return nil
}
