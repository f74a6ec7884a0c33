package buyergroup

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
	"github.com/sells-group/buyer-group-cli/internal/workpool"
)

// Collector runs people searches and merges their results.
type Collector struct {
	people   PeopleSource
	pool     *workpool.Pool
	limit    int
	max      int
	breakers *resilience.Breakers
}

// NewCollector creates a Collector whose concurrency is capped by
// s.SearchConcurrency and whose query starts wait on s.SearchLimiter.
func NewCollector(people PeopleSource, s Settings, breakers *resilience.Breakers) *Collector {
	return &Collector{
		people:   people,
		pool:     workpool.New(s.SearchConcurrency, workpool.WithLimiter(s.SearchLimiter)),
		limit:    s.SearchLimit,
		max:      s.MaxCandidates,
		breakers: breakers,
	}
}

// Collect issues every query and merges results in query order. Duplicate
// provider IDs are dropped with their matched roles unioned. Failed queries
// become warnings.
func (c *Collector) Collect(ctx context.Context, queries []Query) ([]model.Candidate, []model.Warning) {
	log := zap.L().With(zap.String("stage", string(model.StageSearching)))

	results := workpool.Map(ctx, c.pool, queries, func(ctx context.Context, q Query) ([]model.Candidate, error) {
		return resilience.Call(ctx, breaker(c.breakers, "people"), func(ctx context.Context) ([]model.Candidate, error) {
			return c.people.SearchPeople(ctx, q, c.limit)
		})
	})

	var warnings []model.Warning
	index := make(map[string]int)
	var out []model.Candidate
	capped, failed := 0, 0

	for i, res := range results {
		q := queries[i]
		if res.Err != nil {
			failed++
			log.Warn("collect: query failed", zap.String("query", q.Text), zap.Error(res.Err))
			code := model.WarnQueryFailed
			if resilience.IsRateLimited(res.Err) {
				code = model.WarnRateLimited
			}
			warnings = append(warnings, warn(model.StageSearching, code, "query %q failed: %v", q.Text, res.Err))
			continue
		}
		for _, cand := range res.Value {
			if cand.ID == "" {
				continue
			}
			if at, ok := index[cand.ID]; ok {
				out[at].AddMatchedRole(q.TargetRole)
				continue
			}
			if c.max > 0 && len(out) >= c.max {
				capped++
				continue
			}
			cand.MatchedRoles = nil
			cand.AddMatchedRole(q.TargetRole)
			if cand.CompanyID == "" {
				cand.CompanyID = q.CompanyID
			}
			index[cand.ID] = len(out)
			out = append(out, cand)
		}
	}

	if capped > 0 {
		warnings = append(warnings, warn(model.StageSearching, model.WarnCandidatesCapped,
			"%d candidates beyond the cap of %d were dropped", capped, c.max))
	}
	log.Info("collect: candidates collected",
		zap.Int("queries", len(queries)),
		zap.Int("candidates", len(out)),
		zap.Int("failed_queries", failed),
	)
	return out, warnings
}
