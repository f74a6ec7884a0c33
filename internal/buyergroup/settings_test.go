package buyergroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/config"
	"github.com/sells-group/buyer-group-cli/internal/model"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.CoreSignal.RateLimit = 8
	cfg.Pipeline.MaxGroupSize = 6
	cfg.Pipeline.RoleCaps = map[string]int{"decision maker": 1}
	cfg.Cache.TTLHours = 2

	s := SettingsFromConfig(cfg)

	require.NotNil(t, s.SearchLimiter)
	assert.InDelta(t, 8, float64(s.SearchLimiter.Limit()), 1e-9)
	assert.Equal(t, 8, s.SearchLimiter.Burst())
	assert.Equal(t, 6, s.MaxGroupSize)
	assert.Equal(t, 1, s.RoleCaps[model.RoleDecisionMaker])
	assert.Equal(t, 2*time.Hour, s.CacheTTL)
}

func TestSettingsFromConfig_NoSearchLimit(t *testing.T) {
	assert.Nil(t, SettingsFromConfig(&config.Config{}).SearchLimiter)
	assert.Nil(t, DefaultSettings().SearchLimiter)
}
