package buyergroup

import (
	"strings"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// Query is one role-targeted people search.
type Query struct {
	Text        string `json:"text"`
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
	// Title is the keyword matched against current job titles.
	Title      string `json:"title"`
	TargetRole string `json:"targetRole"`
	// Keywords narrow the search, for example by solution category.
	Keywords []string `json:"keywords,omitempty"`
}

// TargetRoles returns the profile's target roles trimmed and deduplicated
// case-insensitively in input order, or defaults when none are given.
func TargetRoles(profile model.SellerProfile, defaults []string) []string {
	roles := dedupeFold(profile.TargetRoles)
	if len(roles) == 0 {
		roles = dedupeFold(defaults)
	}
	return roles
}

// GenerateQueries emits one cluster of queries per target role. The output
// is a pure function of its inputs.
func GenerateQueries(company model.Company, profile model.SellerProfile, defaults []string) []Query {
	seen := make(map[string]bool)
	var out []Query

	add := func(role string, extra string) {
		parts := []string{company.Name, role}
		var keywords []string
		if extra = strings.TrimSpace(extra); extra != "" {
			parts = append(parts, extra)
			keywords = []string{extra}
		}
		text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		key := strings.ToLower(text)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Query{
			Text:        text,
			CompanyID:   company.ID,
			CompanyName: company.Name,
			Title:       role,
			TargetRole:  role,
			Keywords:    keywords,
		})
	}

	industry := profile.Industry
	if industry == "" {
		industry = company.Industry
	}
	for _, role := range TargetRoles(profile, defaults) {
		add(role, "")
		add(role, profile.SolutionCategory)
		add(role, industry)
	}
	return out
}

func dedupeFold(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		k := foldText(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
