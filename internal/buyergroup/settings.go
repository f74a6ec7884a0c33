package buyergroup

import (
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/buyer-group-cli/internal/config"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
)

// Weights are the ranker's score weights.
type Weights struct {
	Completeness float64
	Recency      float64
	Relevance    float64
}

// Settings tunes every pipeline stage.
type Settings struct {
	MaxCandidates     int
	SearchLimit       int
	SearchConcurrency int
	EnrichBatchSize   int
	EnrichBatchDelay  time.Duration
	ContactLookup     bool

	MinCompleteness float64
	MinConfidence   float64
	RecencyDecay    waterfall.DecayConfig
	Weights         Weights

	MaxGroupSize int
	MinGroupSize int
	RoleCaps     map[model.Role]int

	VerifyConcurrency int
	CompanyMaxAge     time.Duration
	CacheTTL          time.Duration

	Retry    resilience.Policy
	Breakers resilience.BreakerConfig

	// SearchLimiter gates people-search starts across every run. nil
	// leaves pacing to the provider client.
	SearchLimiter *rate.Limiter
}

// DefaultSettings returns the built-in tuning.
func DefaultSettings() Settings {
	return Settings{
		MaxCandidates:     200,
		SearchLimit:       25,
		SearchConcurrency: 4,
		EnrichBatchSize:   10,
		EnrichBatchDelay:  250 * time.Millisecond,
		ContactLookup:     true,
		MinCompleteness:   0.25,
		MinConfidence:     0.4,
		RecencyDecay:      waterfall.DecayConfig{HalfLifeDays: 180, Floor: 0.05},
		Weights:           Weights{Completeness: 0.35, Recency: 0.15, Relevance: 0.50},
		MaxGroupSize:      12,
		MinGroupSize:      8,
		RoleCaps: map[model.Role]int{
			model.RoleDecisionMaker: 3,
			model.RoleChampion:      3,
			model.RoleStakeholder:   4,
			model.RoleIntroducer:    2,
			model.RoleBlocker:       2,
		},
		VerifyConcurrency: 4,
		CompanyMaxAge:     90 * 24 * time.Hour,
		CacheTTL:          24 * time.Hour,
		Retry:             resilience.RetryOnce(),
		Breakers:          resilience.BreakerFromConfig(0, 0),
	}
}

// SettingsFromConfig maps application config onto Settings. Zero values keep
// the defaults.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	if cfg == nil {
		return s
	}
	p := cfg.Pipeline

	setInt(&s.MaxCandidates, p.MaxCandidates)
	setInt(&s.SearchLimit, p.SearchLimit)
	setInt(&s.SearchConcurrency, p.SearchConcurrency)
	setInt(&s.EnrichBatchSize, p.EnrichBatchSize)
	if p.EnrichBatchDelayMs >= 0 {
		s.EnrichBatchDelay = time.Duration(p.EnrichBatchDelayMs) * time.Millisecond
	}
	s.ContactLookup = p.ContactLookup
	if p.MinCompleteness > 0 {
		s.MinCompleteness = p.MinCompleteness
	}
	if p.MinConfidence > 0 {
		s.MinConfidence = p.MinConfidence
	}
	if p.RecencyHalfLife > 0 {
		s.RecencyDecay.HalfLifeDays = p.RecencyHalfLife
	}
	if w := p.Weights; w.Completeness+w.Recency+w.Relevance > 0 {
		s.Weights = Weights{Completeness: w.Completeness, Recency: w.Recency, Relevance: w.Relevance}
	}
	setInt(&s.MaxGroupSize, p.MaxGroupSize)
	setInt(&s.MinGroupSize, p.MinGroupSize)
	for name, n := range p.RoleCaps {
		if role, ok := ParseRole(name); ok {
			s.RoleCaps[role] = n
		}
	}
	setInt(&s.VerifyConcurrency, p.VerifyConcurrency)
	if p.CompanyMaxAgeDays > 0 {
		s.CompanyMaxAge = time.Duration(p.CompanyMaxAgeDays) * 24 * time.Hour
	}
	if cfg.Cache.TTLHours > 0 {
		s.CacheTTL = time.Duration(cfg.Cache.TTLHours) * time.Hour
	}
	s.Retry = resilience.PolicyFromConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
	s.Breakers = resilience.BreakerFromConfig(cfg.Retry.FailureThreshold, cfg.Retry.CooldownSecs)
	if rps := cfg.CoreSignal.RateLimit; rps > 0 {
		s.SearchLimiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return s
}

// ParseRole matches a role name case-insensitively, ignoring spaces,
// hyphens and underscores.
func ParseRole(name string) (model.Role, bool) {
	key := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(name))
	for _, r := range model.Roles {
		if strings.ToLower(string(r)) == key {
			return r, true
		}
	}
	return "", false
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
