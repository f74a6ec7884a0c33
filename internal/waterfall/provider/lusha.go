package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/pkg/coresignal"
	"github.com/sells-group/buyer-group-cli/pkg/lusha"
)

// Lusha adapts the Lusha person API to the waterfall.
type Lusha struct {
	client lusha.Client
	cost   float64
}

// NewLusha wraps c; cost is the USD charged per lookup.
func NewLusha(c lusha.Client, cost float64) *Lusha {
	return &Lusha{client: c, cost: cost}
}

func (l *Lusha) Name() string { return "lusha" }

func (l *Lusha) SupportedFields() []string { return []string{FieldEmail, FieldPhone} }

func (l *Lusha) CanProvide(fieldKey string) bool { return supports(l.SupportedFields(), fieldKey) }

func (l *Lusha) CostPerQuery(_ []string) float64 { return l.cost }

func (l *Lusha) Query(ctx context.Context, person PersonIdentifier, fields []string) (*QueryResult, error) {
	p, err := l.client.LookupPerson(ctx, lusha.PersonRequest{
		FirstName:     person.FirstName,
		LastName:      person.LastName,
		CompanyDomain: person.CompanyDomain,
		CompanyName:   person.CompanyName,
		LinkedInURL:   person.LinkedInURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "provider: lusha query")
	}

	out := &QueryResult{Provider: l.Name(), CostUSD: l.cost}
	asOf := coresignal.ParseTime(p.UpdateDate)
	if e, ok := p.WorkEmail(); ok && supports(fields, FieldEmail) {
		out.Fields = append(out.Fields, FieldResult{FieldKey: FieldEmail, Value: e.Email, Confidence: emailConfidence(e), DataAsOf: asOf})
	}
	if ph, ok := p.BestPhone(); ok && supports(fields, FieldPhone) {
		conf := 0.7
		if ph.Type == "direct" {
			conf = 0.85
		}
		out.Fields = append(out.Fields, FieldResult{FieldKey: FieldPhone, Value: ph.Number, Confidence: conf, DataAsOf: asOf})
	}
	return out, nil
}

// emailConfidence maps Lusha's letter grade to a score.
func emailConfidence(e lusha.Email) float64 {
	grade := strings.ToUpper(strings.TrimSpace(e.Confidence))
	conf := 0.8
	switch grade {
	case "A+":
		conf = 0.97
	case "A":
		conf = 0.9
	case "B":
		conf = 0.75
	case "C":
		conf = 0.55
	}
	if e.Type != "" && e.Type != "work" {
		conf *= 0.5
	}
	return conf
}
