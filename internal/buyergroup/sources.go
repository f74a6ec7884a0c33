package buyergroup

import (
	"context"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
)

// CompanySource searches the company data provider. Results are returned in
// provider rank order.
type CompanySource interface {
	SearchCompanies(ctx context.Context, name, domain string) ([]model.Company, error)
}

// PeopleSource runs people searches and collects full profiles.
type PeopleSource interface {
	// SearchPeople returns candidate stubs (at least ID and Source) in
	// provider rank order.
	SearchPeople(ctx context.Context, q Query, limit int) ([]model.Candidate, error)
	// FetchProfiles returns full profiles for ids. Unknown IDs are omitted.
	FetchProfiles(ctx context.Context, company model.Company, ids []string) ([]model.Candidate, error)
}

// EmailStatus is the deliverability verdict for an address.
type EmailStatus int

const (
	EmailUnknown EmailStatus = iota
	EmailValid
	EmailInvalid
)

// EmailVerifier checks deliverability of an address.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, email string) (EmailStatus, error)
}

// Employment is the verdict of a current-employment check.
type Employment struct {
	// Known is false when the checker could not decide.
	Known    bool
	Current  bool
	Evidence string
}

// EmploymentChecker confirms that a person still works at a company.
type EmploymentChecker interface {
	CheckEmployment(ctx context.Context, person model.Candidate, company model.Company) (Employment, error)
}

// ContactResolver fills missing contact fields through the premium
// waterfall. *waterfall.Executor satisfies it.
type ContactResolver interface {
	Run(ctx context.Context, person provider.PersonIdentifier, known map[string]waterfall.Known, opts ...waterfall.RunOption) *waterfall.Result
}

// personIdentifier builds the waterfall lookup key for a candidate.
func personIdentifier(c model.Candidate, company model.Company) provider.PersonIdentifier {
	return provider.PersonIdentifier{
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		FullName:      c.FullName,
		CompanyDomain: company.Domain,
		CompanyName:   company.Name,
		LinkedInURL:   c.LinkedInURL,
	}
}
