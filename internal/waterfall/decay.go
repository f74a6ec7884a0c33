package waterfall

import (
	"math"
	"time"
)

// EffectiveConfidence computes the time-decayed confidence of a data point.
// Formula: effective = max(floor, rawConfidence * 2^(-ageDays / halfLifeDays))
func EffectiveConfidence(rawConfidence float64, dataAsOf time.Time, now time.Time, decay DecayConfig) float64 {
	if rawConfidence <= 0 {
		return 0
	}
	if dataAsOf.IsZero() {
		return rawConfidence
	}

	ageDays := now.Sub(dataAsOf).Hours() / 24
	if ageDays <= 0 {
		return rawConfidence
	}

	halfLife := float64(decay.HalfLifeDays)
	if halfLife <= 0 {
		halfLife = 180
	}

	decayed := rawConfidence * math.Pow(2, -ageDays/halfLife)
	if decayed < decay.Floor {
		return decay.Floor
	}
	return decayed
}

// Freshness scores how recent dataAsOf is in [floor, 1]. A nil timestamp
// returns unknown.
func Freshness(dataAsOf *time.Time, now time.Time, decay DecayConfig, unknown float64) float64 {
	if dataAsOf == nil || dataAsOf.IsZero() {
		return unknown
	}
	return EffectiveConfidence(1, *dataAsOf, now, decay)
}

func decayedValue(raw float64, asOf *time.Time, now time.Time, decay DecayConfig) float64 {
	var t time.Time
	if asOf != nil {
		t = *asOf
	}
	return EffectiveConfidence(raw, t, now, decay)
}
