package clock

import (
	"context"
	"time"
)

// Clock is the single source of "now" for period, trial and validity logic.
type Clock interface {
	Now(ctx context.Context) time.Time
}

// Fixed always reports the same instant.
type Fixed time.Time

func (f Fixed) Now(context.Context) time.Time {
	return time.Time(f).UTC()
}
