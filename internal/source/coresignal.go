// Package source adapts provider clients to the buyer-group pipeline's
// company, people, email and employment interfaces.
package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/pkg/apierr"
	"github.com/sells-group/buyer-group-cli/pkg/coresignal"
)

// Name identifies CoreSignal as a data source on candidates and contacts.
const Name = "coresignal"

const (
	defaultCompanyMatches = 5
	defaultCollectWorkers = 4
)

// CoreSignal serves company and people lookups from the CoreSignal
// multi-source API.
type CoreSignal struct {
	client  coresignal.Client
	matches int
	workers int
}

// CoreSignalOption configures a CoreSignal source.
type CoreSignalOption func(*CoreSignal)

// WithCompanyMatches caps how many company search hits are collected.
func WithCompanyMatches(n int) CoreSignalOption {
	return func(c *CoreSignal) {
		if n > 0 {
			c.matches = n
		}
	}
}

// WithCollectWorkers sets the number of concurrent collect requests.
func WithCollectWorkers(n int) CoreSignalOption {
	return func(c *CoreSignal) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCoreSignal wraps a CoreSignal client.
func NewCoreSignal(client coresignal.Client, opts ...CoreSignalOption) *CoreSignal {
	c := &CoreSignal{client: client, matches: defaultCompanyMatches, workers: defaultCollectWorkers}
	for _, o := range opts {
		o(c)
	}
	return c
}

var (
	_ buyergroup.CompanySource = (*CoreSignal)(nil)
	_ buyergroup.PeopleSource  = (*CoreSignal)(nil)
)

// SearchCompanies returns collected company records in search rank order.
func (c *CoreSignal) SearchCompanies(ctx context.Context, name, domain string) ([]model.Company, error) {
	ids, err := c.client.SearchCompanies(ctx, coresignal.CompanyQuery{
		Name:    name,
		Website: buyergroup.NormalizeDomain(domain),
		Limit:   c.matches,
	})
	if err != nil {
		return nil, eris.Wrap(err, "coresignal source: search companies")
	}

	records, err := collectAll(ctx, c.workers, ids, c.client.CollectCompany)
	if err != nil {
		return nil, eris.Wrap(err, "coresignal source: collect companies")
	}
	out := make([]model.Company, 0, len(records))
	for _, r := range records {
		out = append(out, toCompany(r))
	}
	return out, nil
}

// SearchPeople runs one employee search and returns stubs.
func (c *CoreSignal) SearchPeople(ctx context.Context, q buyergroup.Query, limit int) ([]model.Candidate, error) {
	companyID, err := strconv.ParseInt(q.CompanyID, 10, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "coresignal source: company id %q", q.CompanyID)
	}
	ids, err := c.client.SearchEmployees(ctx, coresignal.EmployeeQuery{
		CompanyID: companyID,
		Title:     q.Title,
		Keywords:  q.Keywords,
		Limit:     limit,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "coresignal source: search %q", q.Text)
	}
	out := make([]model.Candidate, len(ids))
	for i, id := range ids {
		out[i] = model.Candidate{ID: formatID(id), Source: Name, CompanyID: q.CompanyID}
	}
	return out, nil
}

// FetchProfiles collects full employee records. IDs the provider no longer
// knows are skipped.
func (c *CoreSignal) FetchProfiles(ctx context.Context, company model.Company, ids []string) ([]model.Candidate, error) {
	numeric := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			zap.L().Debug("coresignal source: skipping non-numeric id", zap.String("id", id))
			continue
		}
		numeric = append(numeric, n)
	}

	records, err := collectAll(ctx, c.workers, numeric, c.client.CollectEmployee)
	if err != nil {
		return nil, eris.Wrap(err, "coresignal source: collect employees")
	}
	companyID, _ := strconv.ParseInt(company.ID, 10, 64)
	out := make([]model.Candidate, 0, len(records))
	for _, e := range records {
		out = append(out, toCandidate(e, companyID, company))
	}
	return out, nil
}

// collectAll fetches every id with bounded concurrency, preserving order.
// Not-found records are dropped; any other error fails the whole call.
func collectAll[T any](ctx context.Context, workers int, ids []int64, fetch func(context.Context, int64) (*T, error)) ([]*T, error) {
	results := make([]*T, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := fetch(gctx, id)
			if apierr.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return eris.Wrapf(err, "collect %d", id)
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func toCompany(r *coresignal.Company) model.Company {
	c := model.Company{
		ID:            formatID(r.ID),
		Name:          r.CompanyName,
		Domain:        buyergroup.NormalizeDomain(r.Website),
		Industry:      r.Industry,
		EmployeeCount: r.EmployeesCount,
		LinkedInURL:   r.LinkedInURL,
		Headquarters:  r.HQLocation,
	}
	c.EmployeeBucket = model.EmployeeBucket(c.EmployeeCount)
	if c.EmployeeBucket == "" {
		c.EmployeeBucket = r.SizeRange
	}
	for _, t := range r.Technologies {
		if t.Technology != "" {
			c.TechStack = append(c.TechStack, t.Technology)
		}
	}
	return c
}

func toCandidate(e *coresignal.Employee, companyID int64, company model.Company) model.Candidate {
	c := model.Candidate{
		ID:          formatID(e.ID),
		FullName:    e.FullName,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Title:       e.ActiveTitle,
		Department:  strings.ToLower(e.ActiveDepartment),
		Seniority:   Seniority(e.ActiveManagementLevel),
		Location:    e.Location,
		CompanyID:   company.ID,
		CompanyName: company.Name,
		LinkedInURL: e.LinkedInURL,
		LastUpdated: coresignal.ParseTime(e.UpdatedAt),
		Source:      Name,
		Raw:         e.Raw,
	}
	if e.PrimaryEmail != "" {
		c.Email, c.EmailSource = e.PrimaryEmail, Name
	}
	if x, ok := e.CurrentExperience(companyID); ok {
		if x.Title != "" {
			c.Title = x.Title
		}
		if c.Department == "" {
			c.Department = strings.ToLower(x.Department)
		}
		if c.Seniority == "" {
			c.Seniority = Seniority(x.ManagementLevel)
		}
		c.TenureStart = coresignal.ParseTime(x.DateFrom)
	}
	if c.FullName == "" {
		c.FullName = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return c
}

// Seniority maps a CoreSignal management level onto a seniority tier.
// Unknown levels return "" so the title classifier decides.
func Seniority(level string) string {
	l := strings.ToLower(strings.TrimSpace(level))
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "non-manager"):
		return model.SeniorityIndividual
	case strings.Contains(l, "c-level"), strings.Contains(l, "owner"), strings.Contains(l, "founder"),
		strings.Contains(l, "partner"), l == "president":
		return model.SeniorityExecutive
	case strings.Contains(l, "vice president"), strings.HasPrefix(l, "vp"), strings.Contains(l, "head"):
		return model.SeniorityVP
	case strings.Contains(l, "director"):
		return model.SeniorityDirector
	case strings.Contains(l, "manager"):
		return model.SeniorityManager
	case strings.Contains(l, "intern"), strings.Contains(l, "entry"), strings.Contains(l, "junior"):
		return model.SeniorityEntry
	case strings.Contains(l, "senior"), strings.Contains(l, "specialist"):
		return model.SeniorityIndividual
	default:
		return ""
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
