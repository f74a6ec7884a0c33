package buyergroup

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
)

// RunStore is the subset of store.Store the pipeline persists runs through.
type RunStore interface {
	CreateRun(ctx context.Context, req model.Request) (*model.Run, error)
	UpdateRunStage(ctx context.Context, runID string, stage model.Stage) error
	FailRun(ctx context.Context, runID string, code model.ErrorCode, msg string) error
	CompleteRun(ctx context.Context, runID string, result *model.Response) error
	RecordStage(ctx context.Context, rec model.StageRecord) error
}

// Deps are the collaborators of a Pipeline. Companies and People are
// required; everything else may be nil.
type Deps struct {
	Companies  CompanySource
	People     PeopleSource
	Contacts   ContactResolver
	Email      EmailVerifier
	Employment EmploymentChecker

	Runs         RunStore
	CompanyCache CompanyCache
	Cache        Cache
	Rules        *RuleTable
}

// Pipeline runs the buyer-group stages for one request at a time. It is
// safe for concurrent use. Circuit breakers and worker pools are scoped to a
// single run.
type Pipeline struct {
	settings Settings
	deps     Deps
	rules    *RuleTable
	runs     RunStore
	cache    Cache
	assigner *Assigner

	now func() time.Time
}

// stages holds the provider-facing stages of a single run.
type stages struct {
	resolver  *Resolver
	collector *Collector
	enricher  *Enricher
	validator *Validator
}

// New wires a Pipeline from deps and settings.
func New(deps Deps, s Settings) *Pipeline {
	rules := deps.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	cache := deps.Cache
	if cache == nil {
		cache = NoopCache{}
	}
	return &Pipeline{
		settings: s,
		deps:     deps,
		rules:    rules,
		runs:     deps.Runs,
		cache:    cache,
		assigner: NewAssigner(rules, s),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) newStages() *stages {
	d, s := p.deps, p.settings
	breakers := resilience.NewBreakers(s.Breakers)
	return &stages{
		resolver:  NewResolver(d.Companies, d.CompanyCache, s, breakers),
		collector: NewCollector(d.People, s, breakers),
		enricher:  NewEnricher(d.People, d.Contacts, s, breakers),
		validator: NewValidator(d.Email, d.Employment, d.Contacts, s, breakers),
	}
}

// WithNow pins the pipeline clock.
func (p *Pipeline) WithNow(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Invalidate drops every cached buyer group for a company.
func (p *Pipeline) Invalidate(ctx context.Context, companyID string) (int, error) {
	n, err := p.cache.Invalidate(ctx, companyID)
	if err != nil {
		return 0, eris.Wrapf(err, "pipeline: invalidate %s", companyID)
	}
	zap.L().Info("pipeline: cache invalidated", zap.String("company_id", companyID), zap.Int("entries", n))
	return n, nil
}

// Run executes every stage for req. A request the pipeline cannot serve
// returns an *Error and no response. Degraded stages never fail the run;
// their warnings are attached to the response.
func (p *Pipeline) Run(ctx context.Context, req model.Request) (*model.Response, error) {
	req.Normalize()
	if req.CompanyName == "" {
		return nil, invalidRequest("companyName is required")
	}
	if req.Options.MaxGroupSize < 0 || req.Options.MinConfidence < 0 || req.Options.MinConfidence > 1 {
		return nil, invalidRequest("maxGroupSize must be positive and minConfidence within [0, 1]")
	}

	start := time.Now()
	log := zap.L().With(zap.String("company", req.CompanyName))
	st := p.newStages()

	runID := uuid.New().String()
	if p.runs != nil {
		run, err := p.runs.CreateRun(ctx, req)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
	}
	log = log.With(zap.String("run_id", runID))
	log.Info("pipeline: starting buyer group run")

	resp := &model.Response{RunID: runID, Warnings: []model.Warning{}}
	addWarnings := func(ws []model.Warning) {
		resp.Warnings = append(resp.Warnings, ws...)
	}

	current := model.StagePending
	setStage := func(next model.Stage) {
		if !current.CanTransition(next) {
			log.Error("pipeline: illegal stage transition", zap.String("from", string(current)), zap.String("to", string(next)))
			return
		}
		current = next
		if p.runs == nil {
			return
		}
		if err := p.runs.UpdateRunStage(ctx, runID, next); err != nil {
			log.Warn("pipeline: failed to update stage", zap.String("stage", string(next)), zap.Error(err))
		}
	}

	trackStage := func(stage model.Stage, fn func() (int, []model.Warning, error)) error {
		setStage(stage)
		started := p.now()
		t0 := time.Now()
		items, ws, err := fn()
		duration := time.Since(t0).Milliseconds()
		addWarnings(ws)

		rec := model.StageRecord{
			RunID:      runID,
			Stage:      stage,
			Status:     model.StageStatusComplete,
			DurationMs: duration,
			Items:      items,
			Warnings:   len(ws),
			StartedAt:  started,
		}
		switch {
		case err != nil:
			rec.Status = model.StageStatusFailed
			rec.Error = err.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		case len(ws) > 0:
			rec.Status = model.StageStatusDegraded
			log.Warn("pipeline: stage degraded",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
				zap.Int("items", items),
				zap.Int("warnings", len(ws)),
			)
		default:
			log.Info("pipeline: stage complete",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
				zap.Int("items", items),
			)
		}
		if p.runs != nil {
			if recErr := p.runs.RecordStage(ctx, rec); recErr != nil {
				log.Warn("pipeline: failed to record stage", zap.String("stage", string(stage)), zap.Error(recErr))
			}
		}
		return err
	}

	// ===== Resolving =====
	var company model.Company
	err := trackStage(model.StageResolving, func() (int, []model.Warning, error) {
		c, ws, err := st.resolver.Resolve(ctx, req.CompanyName, req.Domain)
		if err != nil {
			return 0, ws, err
		}
		company = c
		return 1, ws, nil
	})
	if err != nil {
		return nil, p.fail(ctx, log, runID, &current, err)
	}
	resp.Company = company
	log = log.With(zap.String("company_id", company.ID))

	// ===== Cache =====
	hash := ProfileHash(req.SellerProfile, req.Options)
	if !req.Options.Refresh {
		cached, cacheErr := p.cache.Get(ctx, company.ID, hash)
		switch {
		case cacheErr != nil:
			log.Warn("pipeline: buyer group cache read failed", zap.Error(cacheErr))
			addWarnings([]model.Warning{warn(model.StageResolving, model.WarnCacheUnavailable, "buyer group cache unavailable: %v", cacheErr)})
		case cached != nil:
			log.Info("pipeline: buyer group cache hit")
			for next := current.Next(); next != model.StageComplete; next = current.Next() {
				setStage(next)
			}
			out := markCached(cached, runID)
			out.Warnings = append(resp.Warnings, out.Warnings...)
			out.ProcessingTimeMs = time.Since(start).Milliseconds()
			p.complete(ctx, log, runID, out)
			return out, nil
		}
	}

	profile := req.SellerProfile
	targetRoles := TargetRoles(profile, p.rules.DefaultTargetRoles)
	stats := Stats{}

	// ===== Searching =====
	var candidates []model.Candidate
	_ = trackStage(model.StageSearching, func() (int, []model.Warning, error) {
		queries := GenerateQueries(company, profile, p.rules.DefaultTargetRoles)
		var ws []model.Warning
		candidates, ws = st.collector.Collect(ctx, queries)
		return len(candidates), ws, nil
	})
	stats.CandidatesSeen = len(candidates)

	// ===== Enriching =====
	_ = trackStage(model.StageEnriching, func() (int, []model.Warning, error) {
		var ws []model.Warning
		candidates, ws = st.enricher.Enrich(ctx, company, candidates)
		return len(candidates), ws, nil
	})

	// ===== Filtering =====
	var ranked []model.ScoredCandidate
	_ = trackStage(model.StageFiltering, func() (int, []model.Warning, error) {
		s := p.settings
		if req.Options.MinConfidence > 0 {
			s.MinConfidence = req.Options.MinConfidence
		}
		ranked = NewRanker(s).WithNow(p.now()).Rank(candidates, targetRoles)
		if len(ranked) == 0 {
			resp.Code = model.CodeNoQualifiedCandidates
			return 0, []model.Warning{warn(model.StageFiltering, model.WarnNoQualified,
				"none of %d candidates met the quality thresholds", len(candidates))}, nil
		}
		return len(ranked), nil, nil
	})
	stats.Qualified = len(ranked)

	// ===== Assigning =====
	var members []model.RoleAssignment
	_ = trackStage(model.StageAssigning, func() (int, []model.Warning, error) {
		var ws []model.Warning
		members, ws = p.assigner.WithMaxSize(req.Options.MaxGroupSize).Assign(ranked, profile)
		return len(members), ws, nil
	})

	// ===== Validating =====
	_ = trackStage(model.StageValidating, func() (int, []model.Warning, error) {
		if req.Options.SkipValidate {
			members = st.validator.Skip(members)
			return len(members), nil, nil
		}
		var ws []model.Warning
		members, ws = st.validator.Validate(ctx, company, members)
		return len(members), ws, nil
	})

	// ===== Synthesizing =====
	_ = trackStage(model.StageSynthesizing, func() (int, []model.Warning, error) {
		now := p.now()
		resp.BuyerGroup, resp.Summary = Synthesize(company, members, stats, now)
		resp.GeneratedAt = now
		return len(resp.BuyerGroup.Members), nil, nil
	})

	if resp.Code == "" {
		if err := p.cache.Set(ctx, company.ID, hash, resp, p.settings.CacheTTL); err != nil {
			log.Warn("pipeline: buyer group cache write failed", zap.Error(err))
			addWarnings([]model.Warning{warn(model.StageSynthesizing, model.WarnCacheUnavailable, "buyer group not cached: %v", err)})
		}
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	p.complete(ctx, log, runID, resp)
	return resp, nil
}

func (p *Pipeline) complete(ctx context.Context, log *zap.Logger, runID string, resp *model.Response) {
	if p.runs != nil {
		if err := p.runs.CompleteRun(ctx, runID, resp); err != nil {
			log.Warn("pipeline: failed to complete run", zap.Error(err))
		}
	}
	members := 0
	if resp.BuyerGroup != nil {
		members = len(resp.BuyerGroup.Members)
	}
	log.Info("pipeline: buyer group run complete",
		zap.Int("members", members),
		zap.Int("warnings", len(resp.Warnings)),
		zap.Bool("cached", resp.Cached),
		zap.String("code", string(resp.Code)),
		zap.Int64("duration_ms", resp.ProcessingTimeMs),
	)
}

// fail moves the run to Failed and returns the user-facing error.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, runID string, current *model.Stage, err error) error {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = &Error{Code: model.CodeProviderUnavailable, Message: "pipeline failed", Err: err}
	}
	if current.CanTransition(model.StageFailed) {
		*current = model.StageFailed
	}
	if p.runs != nil {
		if ferr := p.runs.FailRun(ctx, runID, pe.Code, strings.TrimSpace(pe.Message)); ferr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(ferr))
		}
	}
	log.Info("pipeline: run failed", zap.String("code", string(pe.Code)))
	return pe
}
