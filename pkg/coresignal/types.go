package coresignal

import (
	"encoding/json"
	"strings"
	"time"
)

// CompanyQuery searches companies by name and optional website.
type CompanyQuery struct {
	Name    string
	Website string
	Limit   int
}

func (q CompanyQuery) dsl() map[string]any {
	should := []any{
		map[string]any{"match": map[string]any{
			"company_name": map[string]any{"query": q.Name, "operator": "and"},
		}},
	}
	if q.Website != "" {
		should = append(should, map[string]any{"match": map[string]any{
			"website.domain_only": q.Website,
		}})
	}
	return map[string]any{
		"query": map[string]any{"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		}},
	}
}

// EmployeeQuery searches current employees of a company by title.
type EmployeeQuery struct {
	CompanyID int64
	Title     string
	Keywords  []string
	Limit     int
}

func (q EmployeeQuery) dsl() map[string]any {
	must := []any{
		map[string]any{"nested": map[string]any{
			"path": "experience",
			"query": map[string]any{"bool": map[string]any{"must": []any{
				map[string]any{"match": map[string]any{"experience.company_id": q.CompanyID}},
				map[string]any{"match": map[string]any{"experience.active_experience": 1}},
			}}},
		}},
	}
	if q.Title != "" {
		must = append(must, map[string]any{"match": map[string]any{
			"active_experience_title": map[string]any{"query": q.Title, "operator": "and"},
		}})
	}
	query := map[string]any{"must": must}
	if len(q.Keywords) > 0 {
		query["should"] = []any{map[string]any{"match": map[string]any{
			"headline": strings.Join(q.Keywords, " "),
		}}}
	}
	return map[string]any{"query": map[string]any{"bool": query}}
}

// Technology is one entry of a company's detected stack.
type Technology struct {
	Technology string `json:"technology"`
}

// Company is the subset of the multi-source company record the pipeline uses.
type Company struct {
	ID             int64        `json:"id"`
	CompanyName    string       `json:"company_name"`
	Website        string       `json:"website"`
	Industry       string       `json:"industry"`
	EmployeesCount int          `json:"employees_count"`
	SizeRange      string       `json:"size_range"`
	HQLocation     string       `json:"hq_location"`
	LinkedInURL    string       `json:"linkedin_url"`
	Technologies   []Technology `json:"technologies_used"`
}

// Experience is a single employment entry.
type Experience struct {
	CompanyID        int64  `json:"company_id"`
	CompanyName      string `json:"company_name"`
	Title            string `json:"position_title"`
	Department       string `json:"department"`
	ManagementLevel  string `json:"management_level"`
	DateFrom         string `json:"date_from"`
	DateTo           string `json:"date_to"`
	ActiveExperience int    `json:"active_experience"`
}

// Active reports whether the experience is current.
func (e Experience) Active() bool {
	return e.ActiveExperience == 1
}

// Employee is the subset of the multi-source employee record the pipeline uses.
type Employee struct {
	ID                    int64        `json:"id"`
	FullName              string       `json:"full_name"`
	FirstName             string       `json:"first_name"`
	LastName              string       `json:"last_name"`
	Headline              string       `json:"headline"`
	Location              string       `json:"location_full"`
	LinkedInURL           string       `json:"professional_network_url"`
	PrimaryEmail          string       `json:"primary_professional_email"`
	ActiveTitle           string       `json:"active_experience_title"`
	ActiveDepartment      string       `json:"active_experience_department"`
	ActiveManagementLevel string       `json:"active_experience_management_level"`
	ConnectionsCount      int          `json:"connections_count"`
	FollowersCount        int          `json:"followers_count"`
	UpdatedAt             string       `json:"updated_at"`
	Experience            []Experience `json:"experience"`

	Raw json.RawMessage `json:"-"`
}

// CurrentExperience returns the active experience at companyID, if any.
func (e Employee) CurrentExperience(companyID int64) (Experience, bool) {
	for _, x := range e.Experience {
		if x.Active() && x.CompanyID == companyID {
			return x, true
		}
	}
	return Experience{}, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2006",
	"Jan 2006",
	"2006",
}

// ParseTime parses the date formats CoreSignal uses. It returns nil for
// empty or unparseable values.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
