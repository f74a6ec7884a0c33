package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	CoreSignal CoreSignalConfig `yaml:"coresignal" mapstructure:"coresignal"`
	Hunter     ContactConfig    `yaml:"hunter" mapstructure:"hunter"`
	Lusha      ContactConfig    `yaml:"lusha" mapstructure:"lusha"`
	ZeroBounce ZeroBounceConfig `yaml:"zerobounce" mapstructure:"zerobounce"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CoreSignalConfig holds CoreSignal API settings.
type CoreSignalConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ContactConfig holds settings for a paid contact lookup provider.
type ContactConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CostUSD   float64 `yaml:"cost_usd" mapstructure:"cost_usd"`
}

// ZeroBounceConfig holds ZeroBounce API settings.
type ZeroBounceConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID        string  `yaml:"client_id" mapstructure:"client_id"`
	Username        string  `yaml:"username" mapstructure:"username"`
	KeyPath         string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL        string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RoleField       string  `yaml:"role_field" mapstructure:"role_field"`
	ConfidenceField string  `yaml:"confidence_field" mapstructure:"confidence_field"`
}

// PipelineConfig configures buyer-group identification.
type PipelineConfig struct {
	MaxCandidates      int            `yaml:"max_candidates" mapstructure:"max_candidates"`
	SearchLimit        int            `yaml:"search_limit" mapstructure:"search_limit"`
	SearchConcurrency  int            `yaml:"search_concurrency" mapstructure:"search_concurrency"`
	EnrichBatchSize    int            `yaml:"enrich_batch_size" mapstructure:"enrich_batch_size"`
	EnrichBatchDelayMs int            `yaml:"enrich_batch_delay_ms" mapstructure:"enrich_batch_delay_ms"`
	ContactLookup      bool           `yaml:"contact_lookup" mapstructure:"contact_lookup"`
	WaterfallPath      string         `yaml:"waterfall_path" mapstructure:"waterfall_path"`
	MinCompleteness    float64        `yaml:"min_completeness" mapstructure:"min_completeness"`
	MinConfidence      float64        `yaml:"min_confidence" mapstructure:"min_confidence"`
	RecencyHalfLife    int            `yaml:"recency_half_life_days" mapstructure:"recency_half_life_days"`
	Weights            WeightsConfig  `yaml:"weights" mapstructure:"weights"`
	RulesPath          string         `yaml:"rules_path" mapstructure:"rules_path"`
	MaxGroupSize       int            `yaml:"max_group_size" mapstructure:"max_group_size"`
	MinGroupSize       int            `yaml:"min_group_size" mapstructure:"min_group_size"`
	RoleCaps           map[string]int `yaml:"role_caps" mapstructure:"role_caps"`
	VerifyConcurrency  int            `yaml:"verify_concurrency" mapstructure:"verify_concurrency"`
	CompanyMaxAgeDays  int            `yaml:"company_max_age_days" mapstructure:"company_max_age_days"`
}

// WeightsConfig holds the ranker's score weights.
type WeightsConfig struct {
	Completeness float64 `yaml:"completeness" mapstructure:"completeness"`
	Recency      float64 `yaml:"recency" mapstructure:"recency"`
	Relevance    float64 `yaml:"relevance" mapstructure:"relevance"`
}

// CacheConfig configures the buyer-group result cache.
type CacheConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// RetryConfig configures provider retries and circuit breakers.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// secretKeys are read from BUYERGROUP_* variables as well as the file.
var secretKeys = []string{
	"coresignal.key",
	"hunter.key",
	"lusha.key",
	"zerobounce.key",
	"perplexity.key",
	"anthropic.key",
	"salesforce.client_id",
	"salesforce.username",
	"salesforce.key_path",
	"pipeline.waterfall_path",
	"pipeline.rules_path",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BUYERGROUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "buyer-group.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 180)
	v.SetDefault("batch.max_concurrent_companies", 3)
	v.SetDefault("coresignal.base_url", "https://api.coresignal.com/cdapi/v2")
	v.SetDefault("coresignal.rate_limit", 8)
	v.SetDefault("coresignal.timeout_secs", 30)
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("hunter.rate_limit", 10)
	v.SetDefault("hunter.cost_usd", 0.03)
	v.SetDefault("lusha.base_url", "https://api.lusha.com/v2")
	v.SetDefault("lusha.rate_limit", 5)
	v.SetDefault("lusha.cost_usd", 0.08)
	v.SetDefault("zerobounce.base_url", "https://api.zerobounce.net/v2")
	v.SetDefault("zerobounce.rate_limit", 10)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.rate_limit", 2)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("salesforce.role_field", "Buyer_Group_Role__c")
	v.SetDefault("salesforce.confidence_field", "Buyer_Group_Confidence__c")
	v.SetDefault("pipeline.max_candidates", 200)
	v.SetDefault("pipeline.search_limit", 25)
	v.SetDefault("pipeline.search_concurrency", 4)
	v.SetDefault("pipeline.enrich_batch_size", 10)
	v.SetDefault("pipeline.enrich_batch_delay_ms", 250)
	v.SetDefault("pipeline.contact_lookup", true)
	v.SetDefault("pipeline.min_completeness", 0.25)
	v.SetDefault("pipeline.min_confidence", 0.4)
	v.SetDefault("pipeline.recency_half_life_days", 180)
	v.SetDefault("pipeline.weights.completeness", 0.35)
	v.SetDefault("pipeline.weights.recency", 0.15)
	v.SetDefault("pipeline.weights.relevance", 0.50)
	v.SetDefault("pipeline.max_group_size", 12)
	v.SetDefault("pipeline.min_group_size", 8)
	v.SetDefault("pipeline.role_caps", map[string]int{
		"decisionmaker": 3,
		"champion":      3,
		"stakeholder":   4,
		"introducer":    2,
		"blocker":       2,
	})
	v.SetDefault("pipeline.verify_concurrency", 4)
	v.SetDefault("pipeline.company_max_age_days", 90)
	v.SetDefault("cache.backend", "store")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.failure_threshold", 5)
	v.SetDefault("retry.cooldown_secs", 30)

	// Secrets have no defaults, so AutomaticEnv alone would never see them.
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys required by the named command.
func (c *Config) Validate(command string) error {
	var errs []string

	switch command {
	case "find", "batch", "serve":
		if c.CoreSignal.Key == "" {
			errs = append(errs, "coresignal.key is required")
		}
		if command == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
		}
		if command == "batch" && (c.Batch.MaxConcurrentCompanies < 1 || c.Batch.MaxConcurrentCompanies > 50) {
			errs = append(errs, fmt.Sprintf("batch.max_concurrent_companies must be between 1 and 50, got %d", c.Batch.MaxConcurrentCompanies))
		}
		errs = append(errs, c.validatePipeline()...)
	case "sync":
		if c.Salesforce.ClientID == "" || c.Salesforce.Username == "" || c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.client_id, salesforce.username and salesforce.key_path are required")
		}
	case "runs", "cache":
	default:
		return eris.Errorf("config: unknown mode %q", command)
	}

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string
	p := c.Pipeline
	if p.MinCompleteness < 0 || p.MinCompleteness > 1 {
		errs = append(errs, fmt.Sprintf("pipeline.min_completeness must be between 0 and 1, got %v", p.MinCompleteness))
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("pipeline.min_confidence must be between 0 and 1, got %v", p.MinConfidence))
	}
	if p.Weights.Completeness < 0 || p.Weights.Recency < 0 || p.Weights.Relevance < 0 {
		errs = append(errs, "pipeline.weights values must be >= 0")
	}
	if p.MaxGroupSize < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.max_group_size must be >= 1, got %d", p.MaxGroupSize))
	}
	if p.MinGroupSize > p.MaxGroupSize {
		errs = append(errs, "pipeline.min_group_size must not exceed pipeline.max_group_size")
	}
	for role, n := range p.RoleCaps {
		if n < 0 {
			errs = append(errs, fmt.Sprintf("pipeline.role_caps.%s must be >= 0", role))
		}
	}
	if c.Cache.TTLHours < 0 {
		errs = append(errs, "cache.ttl_hours must be >= 0")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
