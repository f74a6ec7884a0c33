package waterfall

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	name            string
	supportedFields []string
	costPerQuery    float64
	queryResult     *provider.QueryResult
	queryErr        error
	calls           int
}

func (m *mockProvider) Name() string                    { return m.name }
func (m *mockProvider) SupportedFields() []string       { return m.supportedFields }
func (m *mockProvider) CostPerQuery(_ []string) float64 { return m.costPerQuery }
func (m *mockProvider) CanProvide(fieldKey string) bool {
	for _, f := range m.supportedFields {
		if f == fieldKey {
			return true
		}
	}
	return false
}
func (m *mockProvider) Query(_ context.Context, _ provider.PersonIdentifier, _ []string) (*provider.QueryResult, error) {
	m.calls++
	return m.queryResult, m.queryErr
}

var now = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *Config {
	return &Config{
		Defaults: DefaultConfig{
			ConfidenceThreshold: 0.7,
			TimeDecay:           DecayConfig{HalfLifeDays: 180, Floor: 0.05},
			MaxPremiumCostUSD:   0.15,
		},
		Fields: map[string]FieldConfig{
			"email": {
				ConfidenceThreshold: 0.8,
				Sources: []SourceConfig{
					{Name: "coresignal", Tier: 0},
					{Name: "hunter", Tier: 1},
					{Name: "lusha", Tier: 2},
				},
			},
			"phone": {
				ConfidenceThreshold: 0.7,
				Sources: []SourceConfig{
					{Name: "coresignal", Tier: 0},
					{Name: "lusha", Tier: 2},
				},
			},
		},
	}
}

func hunterMock(email string, conf float64) *mockProvider {
	return &mockProvider{
		name:            "hunter",
		supportedFields: []string{provider.FieldEmail, provider.FieldPhone},
		costPerQuery:    0.03,
		queryResult: &provider.QueryResult{
			Provider: "hunter",
			CostUSD:  0.03,
			Fields:   []provider.FieldResult{{FieldKey: "email", Value: email, Confidence: conf}},
		},
	}
}

func lushaMock(email, phone string) *mockProvider {
	qr := &provider.QueryResult{Provider: "lusha", CostUSD: 0.08}
	if email != "" {
		qr.Fields = append(qr.Fields, provider.FieldResult{FieldKey: "email", Value: email, Confidence: 0.9})
	}
	if phone != "" {
		qr.Fields = append(qr.Fields, provider.FieldResult{FieldKey: "phone", Value: phone, Confidence: 0.85})
	}
	return &mockProvider{
		name:            "lusha",
		supportedFields: []string{provider.FieldEmail, provider.FieldPhone},
		costPerQuery:    0.08,
		queryResult:     qr,
	}
}

var dana = provider.PersonIdentifier{FirstName: "Dana", LastName: "Reyes", CompanyDomain: "acme.com"}

func TestRun_KnownValueWinsWithoutLookup(t *testing.T) {
	h := hunterMock("other@acme.com", 0.99)
	l := lushaMock("", "+1 555 0199")
	exec := NewExecutor(testConfig(), provider.NewRegistry(h, l)).WithNow(now)

	fresh := now.AddDate(0, 0, -10)
	res := exec.Run(context.Background(), dana, map[string]Known{
		"email": {Value: "dana@acme.com", Source: "coresignal", Confidence: 0.9, DataAsOf: &fresh},
	})

	email, ok := res.Winner("email")
	require.True(t, ok)
	assert.Equal(t, "dana@acme.com", email.Value)
	assert.Equal(t, "coresignal", email.Source)
	assert.Equal(t, 0, h.calls)

	// Phone was missing, so lusha was consulted.
	phone, ok := res.Winner("phone")
	require.True(t, ok)
	assert.Equal(t, "lusha", phone.Source)
	assert.Equal(t, 1, l.calls)
	assert.Equal(t, 2, res.FieldsResolved)
	assert.InDelta(t, 0.08, res.TotalCostUSD, 1e-9)
}

func TestRun_StaleKnownValueFallsThrough(t *testing.T) {
	h := hunterMock("dana.reyes@acme.com", 0.92)
	exec := NewExecutor(testConfig(), provider.NewRegistry(h)).WithNow(now)

	stale := now.AddDate(-2, 0, 0)
	res := exec.Run(context.Background(), dana, map[string]Known{
		"email": {Value: "dana@oldco.com", Source: "coresignal", Confidence: 0.9, DataAsOf: &stale},
	}, OnlyFields("email"))

	email, ok := res.Winner("email")
	require.True(t, ok)
	assert.Equal(t, "dana.reyes@acme.com", email.Value)
	assert.Len(t, res.Resolutions["email"].Attempts, 2)
	assert.Equal(t, 1, res.FieldsTotal)
}

func TestRun_CascadesUntilThresholdMet(t *testing.T) {
	h := hunterMock("d.reyes@acme.com", 0.55)
	l := lushaMock("dana@acme.com", "")
	exec := NewExecutor(testConfig(), provider.NewRegistry(h, l)).WithNow(now)

	res := exec.Run(context.Background(), dana, nil, OnlyFields("email"))

	email, ok := res.Winner("email")
	require.True(t, ok)
	assert.Equal(t, "lusha", email.Source)
	assert.True(t, res.Resolutions["email"].ThresholdMet)
	assert.Equal(t, []string{"hunter", "lusha"}, res.Queried)
	assert.InDelta(t, 0.11, res.TotalCostUSD, 1e-9)
}

func TestRun_ProviderQueriedOncePerRun(t *testing.T) {
	l := lushaMock("dana@acme.com", "+1 555 0199")
	exec := NewExecutor(testConfig(), provider.NewRegistry(l)).WithNow(now)

	res := exec.Run(context.Background(), dana, nil)
	assert.Equal(t, 1, l.calls)
	assert.Equal(t, 2, res.FieldsResolved)
}

func TestRun_BudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Defaults.MaxPremiumCostUSD = 0.05
	h := hunterMock("d.reyes@acme.com", 0.55)
	l := lushaMock("dana@acme.com", "")
	exec := NewExecutor(cfg, provider.NewRegistry(h, l)).WithNow(now)

	res := exec.Run(context.Background(), dana, nil, OnlyFields("email"))

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, 0, l.calls)
	assert.Equal(t, []string{"lusha"}, res.BudgetSkipped)
	assert.LessOrEqual(t, res.TotalCostUSD, cfg.Defaults.MaxPremiumCostUSD)

	// Best-effort winner is kept even below threshold.
	email, ok := res.Winner("email")
	require.True(t, ok)
	assert.Equal(t, "hunter", email.Source)
	assert.False(t, res.Resolutions["email"].Resolved)
}

func TestRun_ProviderErrorRecorded(t *testing.T) {
	h := hunterMock("", 0)
	h.queryErr = eris.New("hunter: unexpected status 503")
	l := lushaMock("dana@acme.com", "")
	exec := NewExecutor(testConfig(), provider.NewRegistry(h, l)).WithNow(now)

	res := exec.Run(context.Background(), dana, nil, OnlyFields("email"))

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "hunter", res.Failures[0].Provider)
	email, ok := res.Winner("email")
	require.True(t, ok)
	assert.Equal(t, "lusha", email.Source)
}

func TestRun_ExcludeAndReject(t *testing.T) {
	h := hunterMock("dana@acme.com", 0.95)
	l := lushaMock("dana@acme.com", "")
	exec := NewExecutor(testConfig(), provider.NewRegistry(h, l)).WithNow(now)

	res := exec.Run(context.Background(), dana, nil,
		OnlyFields("email"),
		ExcludeSources("hunter"),
		RejectValue("email", "DANA@acme.com"),
	)

	assert.Equal(t, 0, h.calls)
	assert.Equal(t, 1, l.calls)
	_, ok := res.Winner("email")
	assert.False(t, ok, "the rejected address must not come back")
}

func TestRun_NoProviders(t *testing.T) {
	exec := NewExecutor(nil, nil).WithNow(now)
	res := exec.Run(context.Background(), dana, nil)

	assert.Equal(t, 2, res.FieldsTotal)
	assert.Zero(t, res.FieldsResolved)
	_, ok := res.Winner("email")
	assert.False(t, ok)
}
