package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/source"
	"github.com/sells-group/buyer-group-cli/internal/store"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
	anthropicpkg "github.com/sells-group/buyer-group-cli/pkg/anthropic"
	"github.com/sells-group/buyer-group-cli/pkg/coresignal"
	"github.com/sells-group/buyer-group-cli/pkg/hunter"
	"github.com/sells-group/buyer-group-cli/pkg/lusha"
	"github.com/sells-group/buyer-group-cli/pkg/perplexity"
	sfpkg "github.com/sells-group/buyer-group-cli/pkg/salesforce"
	"github.com/sells-group/buyer-group-cli/pkg/zerobounce"
)

// pipelineEnv holds the store and pipeline needed by find/batch/serve.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *buyergroup.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "buyer-group.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("postgres store requires store.database_url")
		}
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline validates config for the named command, opens the store,
// builds every provider adapter, and wires the Pipeline. Callers should
// defer env.Close().
func initPipeline(ctx context.Context, command string) (*pipelineEnv, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := buyergroup.LoadRules(cfg.Pipeline.RulesPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	csOpts := []coresignal.Option{
		coresignal.WithBaseURL(cfg.CoreSignal.BaseURL),
		coresignal.WithRateLimit(cfg.CoreSignal.RateLimit),
	}
	if cfg.CoreSignal.TimeoutSecs > 0 {
		csOpts = append(csOpts, coresignal.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.CoreSignal.TimeoutSecs) * time.Second,
		}))
	}
	people := source.NewCoreSignal(coresignal.NewClient(cfg.CoreSignal.Key, csOpts...),
		source.WithCollectWorkers(cfg.Pipeline.SearchConcurrency))

	deps := buyergroup.Deps{
		Companies:    people,
		People:       people,
		Runs:         st,
		CompanyCache: st,
		Cache:        initCache(st),
		Rules:        rules,
	}

	if cfg.ZeroBounce.Key != "" {
		deps.Email = source.NewZeroBounce(zerobounce.NewClient(cfg.ZeroBounce.Key,
			zerobounce.WithBaseURL(cfg.ZeroBounce.BaseURL),
			zerobounce.WithRateLimit(cfg.ZeroBounce.RateLimit),
		))
	} else {
		zap.L().Warn("zerobounce key not set, email verification disabled")
	}

	if emp := initEmployment(); emp != nil {
		deps.Employment = emp
	}

	exec, err := initWaterfall()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if exec != nil {
		deps.Contacts = exec
	}

	p := buyergroup.New(deps, buyergroup.SettingsFromConfig(cfg))
	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

func initCache(st store.Store) buyergroup.Cache {
	switch cfg.Cache.Backend {
	case "memory":
		return buyergroup.NewMemoryCache()
	case "none":
		return buyergroup.NoopCache{}
	default:
		return buyergroup.NewStoreCache(st)
	}
}

// initWaterfall builds the contact lookup executor from the providers that
// have API keys. It returns nil when lookup is disabled or no provider is
// configured.
func initWaterfall() (*waterfall.Executor, error) {
	if !cfg.Pipeline.ContactLookup {
		return nil, nil
	}

	var providers []provider.Provider
	if cfg.Hunter.Key != "" {
		providers = append(providers, provider.NewHunter(hunter.NewClient(cfg.Hunter.Key,
			hunter.WithBaseURL(cfg.Hunter.BaseURL),
			hunter.WithRateLimit(cfg.Hunter.RateLimit),
		), cfg.Hunter.CostUSD))
	}
	if cfg.Lusha.Key != "" {
		providers = append(providers, provider.NewLusha(lusha.NewClient(cfg.Lusha.Key,
			lusha.WithBaseURL(cfg.Lusha.BaseURL),
			lusha.WithRateLimit(cfg.Lusha.RateLimit),
		), cfg.Lusha.CostUSD))
	}
	if len(providers) == 0 {
		zap.L().Warn("no contact providers configured, contact lookup disabled")
		return nil, nil
	}

	wcfg := waterfall.Default()
	if cfg.Pipeline.WaterfallPath != "" {
		loaded, err := waterfall.LoadConfig(cfg.Pipeline.WaterfallPath)
		if err != nil {
			return nil, err
		}
		wcfg = loaded
	}
	return waterfall.NewExecutor(wcfg, provider.NewRegistry(providers...)), nil
}

// initEmployment builds the employment checker. Perplexity is required;
// without an Anthropic key its answers are parsed without the Haiku
// fallback.
func initEmployment() *source.Employment {
	if cfg.Perplexity.Key == "" {
		zap.L().Warn("perplexity key not set, employment verification disabled")
		return nil
	}
	search := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
		perplexity.WithRateLimit(cfg.Perplexity.RateLimit),
	)
	var extractor anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		extractor = anthropicpkg.NewClient(cfg.Anthropic.Key, option.WithMaxRetries(2))
	} else {
		zap.L().Info("anthropic key not set, employment answers parsed without extraction fallback")
	}
	return source.NewEmployment(search, extractor, cfg.Perplexity.Model, cfg.Anthropic.HaikuModel)
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (BUYERGROUP_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit)), nil
}
