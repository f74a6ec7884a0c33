package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "buyer-group.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentCompanies)
	assert.Equal(t, "https://api.coresignal.com/cdapi/v2", cfg.CoreSignal.BaseURL)
	assert.Equal(t, "sonar", cfg.Perplexity.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.InDelta(t, 0.03, cfg.Hunter.CostUSD, 1e-9)
	assert.InDelta(t, 0.08, cfg.Lusha.CostUSD, 1e-9)

	assert.Equal(t, 200, cfg.Pipeline.MaxCandidates)
	assert.Equal(t, 10, cfg.Pipeline.EnrichBatchSize)
	assert.True(t, cfg.Pipeline.ContactLookup)
	assert.InDelta(t, 0.35, cfg.Pipeline.Weights.Completeness, 0.001)
	assert.InDelta(t, 0.15, cfg.Pipeline.Weights.Recency, 0.001)
	assert.InDelta(t, 0.50, cfg.Pipeline.Weights.Relevance, 0.001)
	assert.Equal(t, 12, cfg.Pipeline.MaxGroupSize)
	assert.Equal(t, 8, cfg.Pipeline.MinGroupSize)
	assert.Equal(t, 3, cfg.Pipeline.RoleCaps["decisionmaker"])
	assert.Equal(t, 4, cfg.Pipeline.RoleCaps["stakeholder"])
	assert.Equal(t, 90, cfg.Pipeline.CompanyMaxAgeDays)
	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/buyergroup
log:
  level: debug
  format: console
pipeline:
  min_confidence: 0.6
  role_caps:
    champion: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.6, cfg.Pipeline.MinConfidence, 0.001)
	assert.Equal(t, 5, cfg.Pipeline.RoleCaps["champion"])
	assert.Equal(t, 200, cfg.Pipeline.MaxCandidates)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("BUYERGROUP_STORE_DRIVER", "postgres")
	t.Setenv("BUYERGROUP_LOG_LEVEL", "warn")
	t.Setenv("BUYERGROUP_CORESIGNAL_KEY", "cs-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "cs-key", cfg.CoreSignal.Key)
}

func TestLoadSecretsFromEnvOnly(t *testing.T) {
	chdirTemp(t)

	env := map[string]string{
		"BUYERGROUP_CORESIGNAL_KEY":       "cs",
		"BUYERGROUP_HUNTER_KEY":           "hu",
		"BUYERGROUP_LUSHA_KEY":            "lu",
		"BUYERGROUP_ZEROBOUNCE_KEY":       "zb",
		"BUYERGROUP_PERPLEXITY_KEY":       "px",
		"BUYERGROUP_ANTHROPIC_KEY":        "an",
		"BUYERGROUP_SALESFORCE_CLIENT_ID": "cid",
		"BUYERGROUP_SALESFORCE_USERNAME":  "bot@acme.com",
		"BUYERGROUP_SALESFORCE_KEY_PATH":  "/keys/sf.pem",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cs", cfg.CoreSignal.Key)
	assert.Equal(t, "hu", cfg.Hunter.Key)
	assert.Equal(t, "lu", cfg.Lusha.Key)
	assert.Equal(t, "zb", cfg.ZeroBounce.Key)
	assert.Equal(t, "px", cfg.Perplexity.Key)
	assert.Equal(t, "an", cfg.Anthropic.Key)
	assert.Equal(t, "cid", cfg.Salesforce.ClientID)
	assert.Equal(t, "bot@acme.com", cfg.Salesforce.Username)
	assert.Equal(t, "/keys/sf.pem", cfg.Salesforce.KeyPath)
	assert.NoError(t, cfg.Validate("find"))
	assert.NoError(t, cfg.Validate("sync"))
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: ["), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "buyer-group.db"
	cfg.CoreSignal.Key = "cs-key"
	cfg.Server.Port = 8080
	cfg.Batch.MaxConcurrentCompanies = 3
	cfg.Pipeline.MinCompleteness = 0.25
	cfg.Pipeline.MinConfidence = 0.4
	cfg.Pipeline.Weights = WeightsConfig{Completeness: 0.35, Recency: 0.15, Relevance: 0.5}
	cfg.Pipeline.MaxGroupSize = 12
	cfg.Pipeline.MinGroupSize = 8
	cfg.Cache.TTLHours = 24
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		command string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "find_ok", command: "find"},
		{name: "serve_ok", command: "serve"},
		{name: "runs_needs_no_keys", command: "runs", mutate: func(c *Config) { c.CoreSignal.Key = "" }},
		{name: "missing_coresignal", command: "find", mutate: func(c *Config) { c.CoreSignal.Key = "" }, wantErr: "coresignal.key is required"},
		{name: "bad_port", command: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port must be > 0"},
		{name: "batch_concurrency", command: "batch", mutate: func(c *Config) { c.Batch.MaxConcurrentCompanies = 51 }, wantErr: "max_concurrent_companies must be between 1 and 50"},
		{name: "min_confidence_range", command: "find", mutate: func(c *Config) { c.Pipeline.MinConfidence = 1.5 }, wantErr: "min_confidence"},
		{name: "negative_weight", command: "find", mutate: func(c *Config) { c.Pipeline.Weights.Recency = -0.1 }, wantErr: "weights values must be >= 0"},
		{name: "group_bounds", command: "find", mutate: func(c *Config) { c.Pipeline.MinGroupSize = 20 }, wantErr: "min_group_size must not exceed"},
		{name: "negative_cap", command: "find", mutate: func(c *Config) { c.Pipeline.RoleCaps = map[string]int{"blocker": -1} }, wantErr: "role_caps.blocker"},
		{name: "bad_driver", command: "cache", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver must be sqlite or postgres"},
		{name: "sync_needs_salesforce", command: "sync", wantErr: "salesforce.client_id"},
		{name: "unknown_mode", command: "deploy", wantErr: "unknown mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.command)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
