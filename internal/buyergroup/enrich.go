package buyergroup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
	"github.com/sells-group/buyer-group-cli/internal/workpool"
)

// knownConfidence is the raw confidence given to contact data that arrived
// with the profile.
const knownConfidence = 0.85

// Enricher collects full profiles in batches and fills missing contact
// fields through the contact waterfall.
type Enricher struct {
	people    PeopleSource
	contacts  ContactResolver
	batchSize int
	delay     time.Duration
	retry     resilience.Policy
	pool      *workpool.Pool
	breakers  *resilience.Breakers
}

// NewEnricher creates an Enricher. contacts may be nil to skip the waterfall.
func NewEnricher(people PeopleSource, contacts ContactResolver, s Settings, breakers *resilience.Breakers) *Enricher {
	retry := s.Retry
	retry.OnRetry = resilience.LogRetries("people", "collect")
	if !s.ContactLookup {
		contacts = nil
	}
	return &Enricher{
		people:    people,
		contacts:  contacts,
		batchSize: max(s.EnrichBatchSize, 1),
		delay:     s.EnrichBatchDelay,
		retry:     retry,
		pool:      workpool.New(s.VerifyConcurrency),
		breakers:  breakers,
	}
}

// Enrich returns the candidates whose profiles were collected, in input
// order. A batch that fails twice is dropped with a warning.
func (e *Enricher) Enrich(ctx context.Context, company model.Company, cands []model.Candidate) ([]model.Candidate, []model.Warning) {
	log := zap.L().With(zap.String("company", company.Name), zap.String("stage", string(model.StageEnriching)))
	var warnings []model.Warning
	var out []model.Candidate

	for start := 0; start < len(cands); start += e.batchSize {
		if start > 0 {
			if err := resilience.Sleep(ctx, e.delay); err != nil {
				warnings = append(warnings, warn(model.StageEnriching, model.WarnBatchDropped,
					"enrichment stopped after %d of %d candidates: %v", start, len(cands), err))
				break
			}
		}
		batch := cands[start:min(start+e.batchSize, len(cands))]
		ids := make([]string, len(batch))
		for i, c := range batch {
			ids[i] = c.ID
		}

		profiles, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) ([]model.Candidate, error) {
			return resilience.Call(ctx, breaker(e.breakers, "people"), func(ctx context.Context) ([]model.Candidate, error) {
				return e.people.FetchProfiles(ctx, company, ids)
			})
		})
		if err != nil {
			log.Warn("enrich: batch dropped", zap.Int("batch_start", start), zap.Int("batch_size", len(batch)), zap.Error(err))
			code := model.WarnBatchDropped
			if resilience.IsRateLimited(err) {
				code = model.WarnRateLimited
			}
			warnings = append(warnings, warn(model.StageEnriching, code,
				"dropped %d candidates after retry: %v", len(batch), err))
			continue
		}

		byID := make(map[string]model.Candidate, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}
		for _, stub := range batch {
			p, ok := byID[stub.ID]
			if !ok {
				continue
			}
			out = append(out, mergeProfile(stub, p))
		}
	}

	if e.contacts != nil {
		if w := e.fillContacts(ctx, company, out); w != nil {
			warnings = append(warnings, *w)
		}
	}

	log.Info("enrich: profiles collected", zap.Int("requested", len(cands)), zap.Int("enriched", len(out)))
	return out, warnings
}

// fillContacts runs the waterfall for candidates missing an email or phone,
// updating cands in place.
func (e *Enricher) fillContacts(ctx context.Context, company model.Company, cands []model.Candidate) *model.Warning {
	var idx []int
	for i, c := range cands {
		if c.Email == "" || c.Phone == "" {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}

	results := workpool.Map(ctx, e.pool, idx, func(ctx context.Context, i int) (*waterfall.Result, error) {
		c := cands[i]
		return e.contacts.Run(ctx, personIdentifier(c, company), knownContacts(c)), nil
	})

	failures := 0
	var spent float64
	for n, res := range results {
		c := &cands[idx[n]]
		if res.Err != nil || res.Value == nil {
			failures++
			continue
		}
		failures += len(res.Value.Failures)
		spent += res.Value.TotalCostUSD
		if v, ok := res.Value.Winner(provider.FieldEmail); ok {
			c.Email, c.EmailSource = v.Value, v.Source
		}
		if v, ok := res.Value.Winner(provider.FieldPhone); ok {
			c.Phone, c.PhoneSource = v.Value, v.Source
		}
	}

	zap.L().Debug("enrich: contact waterfall complete",
		zap.Int("people", len(idx)),
		zap.Int("failures", failures),
		zap.Float64("cost_usd", spent),
	)
	if failures == 0 {
		return nil
	}
	w := warn(model.StageEnriching, model.WarnContactWaterfall,
		"%s during contact lookup for %d people", plural(failures, "provider failure"), len(idx))
	return &w
}

func knownContacts(c model.Candidate) map[string]waterfall.Known {
	known := make(map[string]waterfall.Known, 2)
	if c.Email != "" {
		known[provider.FieldEmail] = waterfall.Known{Value: c.Email, Source: c.EmailSource, Confidence: knownConfidence, DataAsOf: c.LastUpdated}
	}
	if c.Phone != "" {
		known[provider.FieldPhone] = waterfall.Known{Value: c.Phone, Source: c.PhoneSource, Confidence: knownConfidence, DataAsOf: c.LastUpdated}
	}
	return known
}

// mergeProfile lays a collected profile over the search stub, keeping the
// roles that surfaced the candidate.
func mergeProfile(stub, profile model.Candidate) model.Candidate {
	merged := profile
	merged.ID = stub.ID
	merged.MatchedRoles = stub.MatchedRoles
	if merged.Source == "" {
		merged.Source = stub.Source
	}
	if merged.CompanyID == "" {
		merged.CompanyID = stub.CompanyID
	}
	merged.Enriched = true
	return merged
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
