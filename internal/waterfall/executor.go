package waterfall

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
)

// Executor runs the contact waterfall for one person.
type Executor struct {
	cfg      *Config
	registry *provider.Registry
	now      func() time.Time
}

// NewExecutor creates a waterfall executor.
func NewExecutor(cfg *Config, registry *provider.Registry) *Executor {
	if cfg == nil {
		cfg = Default()
	}
	return &Executor{cfg: cfg, registry: registry, now: time.Now}
}

// WithNow sets a fixed time for testing.
func (e *Executor) WithNow(t time.Time) *Executor {
	e.now = func() time.Time { return t }
	return e
}

// Config returns the executor's configuration.
func (e *Executor) Config() *Config { return e.cfg }

type runOptions struct {
	exclude  []string
	rejected map[string]string
	fields   []string
}

// RunOption tunes a single Run.
type RunOption func(*runOptions)

// ExcludeSources skips the named sources.
func ExcludeSources(names ...string) RunOption {
	return func(o *runOptions) { o.exclude = append(o.exclude, names...) }
}

// RejectValue discards any source answer equal to value for field.
func RejectValue(field, value string) RunOption {
	return func(o *runOptions) {
		if o.rejected == nil {
			o.rejected = make(map[string]string)
		}
		o.rejected[field] = strings.ToLower(strings.TrimSpace(value))
	}
}

// OnlyFields limits the run to the given fields.
func OnlyFields(fields ...string) RunOption {
	return func(o *runOptions) { o.fields = fields }
}

// Run evaluates each configured field: a known value that clears the
// threshold after decay wins without a lookup; otherwise sources are
// queried in chain order until the threshold is met, a provider is
// queried at most once per run, and paid lookups stop at the budget.
// Provider errors are recorded on the result and never returned.
func (e *Executor) Run(ctx context.Context, person provider.PersonIdentifier, known map[string]Known, opts ...RunOption) *Result {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	now := e.now()
	fields := e.cfg.FieldKeys()
	if len(o.fields) > 0 {
		fields = slices.DeleteFunc(slices.Clone(fields), func(f string) bool { return !slices.Contains(o.fields, f) })
	}

	result := &Result{Resolutions: make(map[string]FieldResolution, len(fields))}
	answers := make(map[string]*provider.QueryResult)
	failed := make(map[string]bool)
	spent := 0.0

	for _, field := range fields {
		fc := e.cfg.GetFieldConfig(field)
		decay := e.cfg.Defaults.TimeDecay
		if fc.TimeDecay != nil {
			decay = *fc.TimeDecay
		}
		res := FieldResolution{FieldKey: field, Threshold: fc.ConfidenceThreshold}

		consider := func(sv SourceValue) {
			if rej, ok := o.rejected[field]; ok && strings.EqualFold(strings.TrimSpace(sv.Value), rej) {
				return
			}
			res.Attempts = append(res.Attempts, sv)
			if res.Winner == nil || sv.EffectiveConfidence > res.Winner.EffectiveConfidence {
				w := sv
				res.Winner = &w
				res.ThresholdMet = sv.EffectiveConfidence >= fc.ConfidenceThreshold
				res.Resolved = res.ThresholdMet
			}
		}

		if k, ok := known[field]; ok && k.Value != "" && !slices.Contains(o.exclude, k.Source) {
			consider(SourceValue{
				Source:              k.Source,
				Value:               k.Value,
				RawConfidence:       k.Confidence,
				EffectiveConfidence: decayedValue(k.Confidence, k.DataAsOf, now, decay),
				DataAsOf:            k.DataAsOf,
			})
		}

		for _, src := range fc.Sources {
			if res.ThresholdMet || ctx.Err() != nil {
				break
			}
			if src.Tier == 0 || slices.Contains(o.exclude, src.Name) || failed[src.Name] {
				continue
			}
			p := e.registry.Get(src.Name)
			if p == nil || !p.CanProvide(field) {
				continue
			}

			qr, queried := answers[src.Name]
			if !queried {
				cost := p.CostPerQuery(fields)
				if spent+cost > e.cfg.Defaults.MaxPremiumCostUSD {
					zap.L().Debug("waterfall: premium budget exhausted",
						zap.String("provider", src.Name),
						zap.Float64("cost", cost),
						zap.Float64("spent", spent),
					)
					if !slices.Contains(result.BudgetSkipped, src.Name) {
						result.BudgetSkipped = append(result.BudgetSkipped, src.Name)
					}
					continue
				}
				var err error
				qr, err = p.Query(ctx, person, p.SupportedFields())
				if err != nil {
					zap.L().Warn("waterfall: provider query failed",
						zap.String("provider", src.Name),
						zap.Error(err),
					)
					failed[src.Name] = true
					result.Failures = append(result.Failures, Failure{Provider: src.Name, Err: err})
					continue
				}
				spent += qr.CostUSD
				answers[src.Name] = qr
				result.Queried = append(result.Queried, src.Name)
			}

			if fr, ok := qr.Field(field); ok {
				consider(SourceValue{
					Source:              src.Name,
					Value:               fr.Value,
					RawConfidence:       fr.Confidence,
					EffectiveConfidence: decayedValue(fr.Confidence, fr.DataAsOf, now, decay),
					DataAsOf:            fr.DataAsOf,
					Tier:                src.Tier,
				})
			}
		}

		result.Resolutions[field] = res
		result.FieldsTotal++
		if res.Resolved {
			result.FieldsResolved++
		}
	}
	result.TotalCostUSD = spent
	return result
}
