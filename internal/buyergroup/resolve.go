package buyergroup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
)

// Resolution confidences by ambiguity rule.
const (
	confidenceSingle   = 1.0
	confidenceDomain   = 1.0
	confidenceLargest  = 0.8
	confidenceFallback = 0.5
)

// CompanyCache is the subset of store.Store the resolver reads through.
type CompanyCache interface {
	GetCompany(ctx context.Context, key string, maxAge time.Duration) (*model.Company, error)
	SetCompany(ctx context.Context, key string, company model.Company) error
}

// Resolver maps a company name and optional domain hint to one Company.
type Resolver struct {
	source   CompanySource
	cache    CompanyCache
	maxAge   time.Duration
	retry    resilience.Policy
	breakers *resilience.Breakers
	now      func() time.Time
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(source CompanySource, cache CompanyCache, s Settings, breakers *resilience.Breakers) *Resolver {
	retry := s.Retry
	retry.OnRetry = resilience.LogRetries("companies", "search")
	return &Resolver{
		source:   source,
		cache:    cache,
		maxAge:   s.CompanyMaxAge,
		retry:    retry,
		breakers: breakers,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the resolved company and any warnings. Failures are
// always *Error values with a user-facing code.
func (r *Resolver) Resolve(ctx context.Context, name, domain string) (model.Company, []model.Warning, error) {
	log := zap.L().With(zap.String("company", name), zap.String("stage", string(model.StageResolving)))
	key := CompanyKey(name, domain)
	var warnings []model.Warning

	if r.cache != nil {
		cached, err := r.cache.GetCompany(ctx, key, r.maxAge)
		switch {
		case err != nil:
			log.Warn("resolve: company cache read failed", zap.Error(err))
			warnings = append(warnings, warn(model.StageResolving, model.WarnCacheUnavailable, "company cache unavailable: %v", err))
		case cached != nil:
			log.Debug("resolve: company cache hit", zap.String("company_id", cached.ID))
			return *cached, warnings, nil
		}
	}

	matches, err := resilience.DoVal(ctx, r.retry, func(ctx context.Context) ([]model.Company, error) {
		return resilience.Call(ctx, breaker(r.breakers, "companies"), func(ctx context.Context) ([]model.Company, error) {
			return r.source.SearchCompanies(ctx, name, domain)
		})
	})
	if err != nil {
		log.Error("resolve: company search failed", zap.Error(err))
		return model.Company{}, warnings, providerFailure(fmt.Sprintf("company %q could not be resolved", name), err)
	}
	if len(matches) == 0 {
		return model.Company{}, warnings, &Error{Code: model.CodeCompanyNotFound, Message: fmt.Sprintf("no company matches %q", name)}
	}

	company, rule := pickCompany(matches, domain)
	if company.LowConfidence {
		warnings = append(warnings, warn(model.StageResolving, model.WarnLowConfidence,
			"%d companies match %q; picked top-ranked %q", len(matches), name, company.Name))
	}
	if company.EmployeeBucket == "" {
		company.EmployeeBucket = model.EmployeeBucket(company.EmployeeCount)
	}
	company.ResolvedAt = r.now()

	log.Info("resolve: company resolved",
		zap.String("company_id", company.ID),
		zap.String("rule", rule),
		zap.Int("matches", len(matches)),
		zap.Float64("confidence", company.ResolutionConfidence),
	)

	if r.cache != nil {
		if err := r.cache.SetCompany(ctx, key, company); err != nil {
			log.Warn("resolve: company cache write failed", zap.Error(err))
			warnings = append(warnings, warn(model.StageResolving, model.WarnCompanyCacheWrite, "company cache write failed: %v", err))
		}
	}
	return company, warnings, nil
}

// pickCompany applies the ambiguity policy and returns the winner with the
// name of the rule that picked it.
func pickCompany(matches []model.Company, domain string) (model.Company, string) {
	if len(matches) == 1 {
		c := matches[0]
		c.ResolutionConfidence = confidenceSingle
		return c, "single"
	}

	if hint := NormalizeDomain(domain); hint != "" {
		for _, m := range matches {
			if NormalizeDomain(m.Domain) == hint {
				m.ResolutionConfidence = confidenceDomain
				return m, "domain"
			}
		}
	}

	best, unique := -1, false
	for i, m := range matches {
		switch {
		case best < 0 || m.EmployeeCount > matches[best].EmployeeCount:
			best, unique = i, true
		case m.EmployeeCount == matches[best].EmployeeCount:
			unique = false
		}
	}
	if unique && matches[best].EmployeeCount > 0 {
		c := matches[best]
		c.ResolutionConfidence = confidenceLargest
		return c, "largest"
	}

	c := matches[0]
	c.ResolutionConfidence = confidenceFallback
	c.LowConfidence = true
	return c, "top_ranked"
}

func warn(stage model.Stage, code, format string, args ...any) model.Warning {
	return model.Warning{Stage: stage, Code: code, Message: fmt.Sprintf(format, args...)}
}

func breaker(b *resilience.Breakers, name string) *resilience.Breaker {
	if b == nil {
		return nil
	}
	return b.Get(name)
}
