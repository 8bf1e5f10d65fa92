package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlanPeriodEnd(t *testing.T) {
	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		plan Plan
		want time.Time
	}{
		{Plan{Interval: IntervalMonth, IntervalCount: 1}, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{Plan{Interval: IntervalMonth, IntervalCount: 3}, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Plan{Interval: IntervalYear, IntervalCount: 1}, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)},
		{Plan{Interval: IntervalWeek, IntervalCount: 2}, time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)},
		{Plan{Interval: IntervalDay}, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.plan.PeriodEnd(start), "%s x%d", tc.plan.Interval, tc.plan.IntervalCount)
	}
}
