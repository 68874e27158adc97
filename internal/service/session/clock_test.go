package session

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ms(t time.Time) *float64 {
	v := float64(t.UnixMilli())
	return &v
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		count     int
		start     *float64
		want      Window
		remaining int
	}{
		{
			name:      "first turn",
			count:     0,
			start:     ms(now),
			want:      Window{},
			remaining: 7,
		},
		{
			name:  "last slot",
			count: 7,
			start: ms(now.Add(-time.Minute)),
			want:  Window{IsFinalTurn: true},
		},
		{
			name:  "cap reached before this turn",
			count: 8,
			start: ms(now.Add(-time.Minute)),
			want:  Window{CountExpired: true, IsFinalTurn: true},
		},
		{
			name:      "clock exactly out",
			count:     2,
			start:     ms(now.Add(-DefaultDuration)),
			want:      Window{TimeExpired: true, IsFinalTurn: true},
			remaining: 5,
		},
		{
			name:      "clock almost out",
			count:     2,
			start:     ms(now.Add(-DefaultDuration + time.Second)),
			want:      Window{},
			remaining: 5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(8, tc.count, tc.start, now, DefaultDuration)
			assert.Equal(t, tc.want.TimeExpired, got.TimeExpired, "TimeExpired")
			assert.Equal(t, tc.want.CountExpired, got.CountExpired, "CountExpired")
			assert.Equal(t, tc.want.IsFinalTurn, got.IsFinalTurn, "IsFinalTurn")
			assert.Equal(t, tc.remaining, got.Remaining, "Remaining")
		})
	}
}

func TestEvaluateTreatsBadStartAsNow(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	zero, nan, inf := 0.0, math.NaN(), math.Inf(1)

	for name, start := range map[string]*float64{"missing": nil, "zero": &zero, "nan": &nan, "inf": &inf} {
		t.Run(name, func(t *testing.T) {
			got := Evaluate(8, 3, start, now, DefaultDuration)
			assert.False(t, got.TimeExpired)
			assert.True(t, got.Start.Equal(now))
			assert.Equal(t, now.Add(DefaultDuration), got.Deadline(DefaultDuration))
		})
	}
}

func TestEvaluateClampsNegativeCount(t *testing.T) {
	now := time.Now()
	got := Evaluate(8, -4, nil, now, DefaultDuration)
	assert.False(t, got.CountExpired)
	assert.Equal(t, 7, got.Remaining)
}

func TestEvaluateTimeExpiredRegardlessOfCount(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	start := ms(now.Add(-time.Hour))

	for count := 0; count < 12; count++ {
		got := Evaluate(8, count, start, now, DefaultDuration)
		assert.True(t, got.TimeExpired)
		assert.True(t, got.IsFinalTurn)
	}
}
