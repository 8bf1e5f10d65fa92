package clock

import (
	"context"
	"time"
)

type simulatedTimeKey struct{}

// WithSimulatedTime pins SystemClock to t for everything running under ctx.
func WithSimulatedTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, simulatedTimeKey{}, t.UTC())
}

type SystemClock struct{}

func (SystemClock) Now(ctx context.Context) time.Time {
	if ctx != nil {
		if t, ok := ctx.Value(simulatedTimeKey{}).(time.Time); ok {
			return t
		}
	}
	return time.Now().UTC()
}
