package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/pkg/coresignal"
	"github.com/sells-group/buyer-group-cli/pkg/hunter"
)

// Hunter adapts the Hunter email finder to the waterfall.
type Hunter struct {
	client hunter.Client
	cost   float64
}

// NewHunter wraps c; cost is the USD charged per lookup.
func NewHunter(c hunter.Client, cost float64) *Hunter {
	return &Hunter{client: c, cost: cost}
}

func (h *Hunter) Name() string { return "hunter" }

func (h *Hunter) SupportedFields() []string { return []string{FieldEmail, FieldPhone} }

func (h *Hunter) CanProvide(fieldKey string) bool { return supports(h.SupportedFields(), fieldKey) }

func (h *Hunter) CostPerQuery(_ []string) float64 { return h.cost }

func (h *Hunter) Query(ctx context.Context, person PersonIdentifier, fields []string) (*QueryResult, error) {
	res, err := h.client.FindEmail(ctx, hunter.FindEmailRequest{
		Domain:    person.CompanyDomain,
		Company:   person.CompanyName,
		FirstName: person.FirstName,
		LastName:  person.LastName,
		FullName:  person.FullName,
	})
	if err != nil {
		return nil, eris.Wrap(err, "provider: hunter query")
	}

	out := &QueryResult{Provider: h.Name(), CostUSD: h.cost}
	asOf := coresignal.ParseTime(res.UpdatedAt)
	if res.Email != "" && supports(fields, FieldEmail) {
		conf := float64(res.Score) / 100
		if strings.EqualFold(res.Verified, "valid") {
			conf = max(conf, 0.95)
		}
		out.Fields = append(out.Fields, FieldResult{FieldKey: FieldEmail, Value: res.Email, Confidence: conf, DataAsOf: asOf})
	}
	if res.Phone != "" && supports(fields, FieldPhone) {
		out.Fields = append(out.Fields, FieldResult{FieldKey: FieldPhone, Value: res.Phone, Confidence: 0.6, DataAsOf: asOf})
	}
	return out, nil
}
