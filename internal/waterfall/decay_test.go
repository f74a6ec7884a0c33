package waterfall

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveConfidence(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	decay := DecayConfig{HalfLifeDays: 180, Floor: 0.05}

	tests := []struct {
		name     string
		raw      float64
		asOf     time.Time
		halfLife int
		want     float64
	}{
		{"current", 0.9, now, 180, 0.9},
		{"one_half_life", 0.8, now.AddDate(0, 0, -180), 180, 0.4},
		{"two_half_lives", 0.8, now.AddDate(0, 0, -360), 180, 0.2},
		{"partial", 0.8, now.AddDate(0, 0, -30), 180, 0.8 * math.Pow(2, -30.0/180)},
		{"floor", 0.9, now.AddDate(-8, 0, 0), 180, 0.05},
		{"zero_confidence", 0, now, 180, 0},
		{"negative_confidence", -0.5, now, 180, 0},
		{"no_timestamp", 0.8, time.Time{}, 180, 0.8},
		{"future", 0.8, now.AddDate(1, 0, 0), 180, 0.8},
		{"zero_half_life_defaults", 0.8, now.AddDate(0, 0, -180), 0, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decay
			d.HalfLifeDays = tt.halfLife
			assert.InDelta(t, tt.want, EffectiveConfidence(tt.raw, tt.asOf, now, d), 0.01)
		})
	}
}

func TestFreshness(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	decay := DecayConfig{HalfLifeDays: 180, Floor: 0.05}

	assert.Equal(t, 0.5, Freshness(nil, now, decay, 0.5))
	assert.Equal(t, 0.5, Freshness(&time.Time{}, now, decay, 0.5))

	fresh := now.AddDate(0, 0, -1)
	assert.Greater(t, Freshness(&fresh, now, decay, 0.5), 0.99)

	halfLife := now.AddDate(0, 0, -180)
	assert.InDelta(t, 0.5, Freshness(&halfLife, now, decay, 0.5), 0.01)

	stale := now.AddDate(-5, 0, 0)
	assert.Equal(t, 0.05, Freshness(&stale, now, decay, 0.5))
}
