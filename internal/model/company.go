package model

import "time"

// Company is a resolved target account.
type Company struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Domain               string    `json:"domain,omitempty"`
	Industry             string    `json:"industry,omitempty"`
	EmployeeCount        int       `json:"employeeCount,omitempty"`
	EmployeeBucket       string    `json:"employeeBucket,omitempty"`
	TechStack            []string  `json:"techStack,omitempty"`
	LinkedInURL          string    `json:"linkedinUrl,omitempty"`
	Headquarters         string    `json:"headquarters,omitempty"`
	ResolutionConfidence float64   `json:"resolutionConfidence"`
	LowConfidence        bool      `json:"lowConfidence,omitempty"`
	ResolvedAt           time.Time `json:"resolvedAt"`
}

// employeeBuckets are upper bounds for the size buckets reported on a Company.
var employeeBuckets = []struct {
	max   int
	label string
}{
	{10, "1-10"},
	{50, "11-50"},
	{200, "51-200"},
	{500, "201-500"},
	{1000, "501-1000"},
	{5000, "1001-5000"},
	{10000, "5001-10000"},
}

// EmployeeBucket maps a headcount to its reporting bucket. Unknown (<= 0)
// headcounts return an empty string.
func EmployeeBucket(count int) string {
	if count <= 0 {
		return ""
	}
	for _, b := range employeeBuckets {
		if count <= b.max {
			return b.label
		}
	}
	return "10001+"
}

// Stale reports whether the company record is older than maxAge at now.
func (c Company) Stale(now time.Time, maxAge time.Duration) bool {
	if c.ResolvedAt.IsZero() {
		return true
	}
	return now.Sub(c.ResolvedAt) > maxAge
}
