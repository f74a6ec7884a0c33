package buyergroup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

func TestPickCompany(t *testing.T) {
	acmeUS := model.Company{ID: "c-us", Name: "Acme Corp", Domain: "acme.com", EmployeeCount: 850}
	acmeUK := model.Company{ID: "c-uk", Name: "Acme Ltd", Domain: "https://www.acme.co.uk", EmployeeCount: 120}
	acmeDE := model.Company{ID: "c-de", Name: "Acme GmbH", Domain: "acme.de", EmployeeCount: 850}
	acmeNew := model.Company{ID: "c-new", Name: "Acme Labs"}

	tests := []struct {
		name       string
		matches    []model.Company
		domain     string
		wantID     string
		wantRule   string
		confidence float64
		low        bool
	}{
		{
			name:       "single match",
			matches:    []model.Company{acmeUK},
			wantID:     "c-uk",
			wantRule:   "single",
			confidence: 1.0,
		},
		{
			name:       "domain hint beats size",
			matches:    []model.Company{acmeUS, acmeUK},
			domain:     "acme.co.uk",
			wantID:     "c-uk",
			wantRule:   "domain",
			confidence: 1.0,
		},
		{
			name:       "unmatched domain falls through to size",
			matches:    []model.Company{acmeUK, acmeUS},
			domain:     "acme.io",
			wantID:     "c-us",
			wantRule:   "largest",
			confidence: 0.8,
		},
		{
			name:       "unique largest employee count",
			matches:    []model.Company{acmeUK, acmeUS},
			wantID:     "c-us",
			wantRule:   "largest",
			confidence: 0.8,
		},
		{
			name:       "tied largest falls back to top ranked",
			matches:    []model.Company{acmeDE, acmeUK, acmeUS},
			wantID:     "c-de",
			wantRule:   "top_ranked",
			confidence: 0.5,
			low:        true,
		},
		{
			name:       "no employee counts",
			matches:    []model.Company{acmeNew, {ID: "c-other", Name: "Acme Other"}},
			wantID:     "c-new",
			wantRule:   "top_ranked",
			confidence: 0.5,
			low:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := pickCompany(tt.matches, tt.domain)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantRule, rule)
			assert.InDelta(t, tt.confidence, got.ResolutionConfidence, 1e-9)
			assert.Equal(t, tt.low, got.LowConfidence)
		})
	}
}

func TestResolver_AmbiguousMatchWarns(t *testing.T) {
	companies := &fakeCompanies{matches: map[string][]model.Company{
		"acme": {
			{ID: "c-de", Name: "Acme GmbH", EmployeeCount: 850},
			{ID: "c-us", Name: "Acme Corp", EmployeeCount: 850},
		},
	}}
	r := NewResolver(companies, nil, testSettings(), nil)

	got, warnings, err := r.Resolve(context.Background(), "Acme", "")
	require.NoError(t, err)

	assert.Equal(t, "c-de", got.ID)
	assert.True(t, got.LowConfidence)
	assert.Equal(t, "501-1000", got.EmployeeBucket)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnLowConfidence, warnings[0].Code)
	assert.Equal(t, model.StageResolving, warnings[0].Stage)
	assert.Contains(t, warnings[0].Message, "2 companies match")
}

func TestResolver_NotFound(t *testing.T) {
	r := NewResolver(&fakeCompanies{}, nil, testSettings(), nil)

	_, _, err := r.Resolve(context.Background(), "Globex", "")
	assert.Equal(t, model.CodeCompanyNotFound, CodeOf(err))
}
