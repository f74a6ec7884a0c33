package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Seniority tiers inferred from provider data or titles.
const (
	SeniorityExecutive  = "executive"
	SeniorityVP         = "vp"
	SeniorityDirector   = "director"
	SeniorityManager    = "manager"
	SeniorityIndividual = "individual"
	SeniorityEntry      = "entry"
)

// seniorityRank orders tiers from most to least senior.
var seniorityRank = map[string]int{
	SeniorityExecutive:  6,
	SeniorityVP:         5,
	SeniorityDirector:   4,
	SeniorityManager:    3,
	SeniorityIndividual: 2,
	SeniorityEntry:      1,
}

// SeniorityRank returns a comparable rank for a seniority tier (0 if unknown).
func SeniorityRank(tier string) int {
	return seniorityRank[strings.ToLower(tier)]
}

// Candidate is a person surfaced by a people search, keyed by provider ID.
type Candidate struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Title       string `json:"title,omitempty"`
	Department  string `json:"department,omitempty"`
	Seniority   string `json:"seniority,omitempty"`
	Location    string `json:"location,omitempty"`
	CompanyID   string `json:"companyId,omitempty"`
	CompanyName string `json:"companyName,omitempty"`

	Email       string `json:"email,omitempty"`
	EmailSource string `json:"emailSource,omitempty"`
	Phone       string `json:"phone,omitempty"`
	PhoneSource string `json:"phoneSource,omitempty"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`

	TenureStart *time.Time `json:"tenureStart,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`

	// MatchedRoles lists the target roles whose queries returned this person.
	MatchedRoles []string        `json:"matchedRoles,omitempty"`
	Source       string          `json:"source"`
	Raw          json.RawMessage `json:"raw,omitempty"`

	// Enriched is set once full profile data has been collected.
	Enriched bool `json:"enriched,omitempty"`
}

// AddMatchedRole records role on the candidate if not already present.
func (c *Candidate) AddMatchedRole(role string) {
	for _, r := range c.MatchedRoles {
		if strings.EqualFold(r, role) {
			return
		}
	}
	c.MatchedRoles = append(c.MatchedRoles, role)
}

// ScoredCandidate is a Candidate with quality scores computed by the ranker.
type ScoredCandidate struct {
	Candidate
	Completeness float64 `json:"completeness"`
	Recency      float64 `json:"recency"`
	Relevance    float64 `json:"relevance"`
	Confidence   float64 `json:"confidence"`
}
