package model

import "time"

// Role is a buyer-group role.
type Role string

const (
	RoleDecisionMaker Role = "DecisionMaker"
	RoleChampion      Role = "Champion"
	RoleStakeholder   Role = "Stakeholder"
	RoleIntroducer    Role = "Introducer"
	RoleBlocker       Role = "Blocker"
)

// Roles lists every role in overlap-resolution priority order.
var Roles = []Role{RoleDecisionMaker, RoleChampion, RoleStakeholder, RoleIntroducer, RoleBlocker}

// Priority returns the overlap-resolution rank of r. Lower wins.
// Unknown roles sort last.
func (r Role) Priority() int {
	for i, role := range Roles {
		if role == r {
			return i
		}
	}
	return len(Roles)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Priority() < len(Roles)
}

// Verification is the contact-validation outcome for a member.
type Verification string

const (
	VerificationVerified   Verification = "verified"
	VerificationUnverified Verification = "unverified"
	VerificationInvalid    Verification = "invalid"
)

// Check statuses reported by the contact validator.
const (
	CheckPassed      = "passed"
	CheckFailed      = "failed"
	CheckUnavailable = "unavailable"
	CheckSkipped     = "skipped"
)

// RoleAssignment is a ScoredCandidate with its buyer-group role.
type RoleAssignment struct {
	ScoredCandidate
	Role      Role    `json:"role"`
	Authority float64 `json:"authority"`
	Rationale string  `json:"rationale"`
	RuleID    string  `json:"ruleId,omitempty"`

	Verification     Verification `json:"verification,omitempty"`
	EmailCheck       string       `json:"emailCheck,omitempty"`
	EmploymentCheck  string       `json:"employmentCheck,omitempty"`
	ManualReview     bool         `json:"manualReview,omitempty"`
	ReplacementEmail bool         `json:"replacementEmail,omitempty"`
}

// Person is the externally reported identity of a member.
type Person struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Department  string `json:"department,omitempty"`
	Seniority   string `json:"seniority,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
}

// Contact holds a member's contact channels.
type Contact struct {
	Email       string `json:"email,omitempty"`
	EmailSource string `json:"emailSource,omitempty"`
	EmailStatus string `json:"emailStatus,omitempty"`
	Phone       string `json:"phone,omitempty"`
	PhoneSource string `json:"phoneSource,omitempty"`
}

// Member is one entry of a BuyerGroup in the response shape.
type Member struct {
	Person       Person       `json:"person"`
	Role         Role         `json:"role"`
	Confidence   float64      `json:"confidence"`
	Authority    float64      `json:"authority"`
	Rationale    string       `json:"rationale"`
	Contact      Contact      `json:"contact"`
	Verified     bool         `json:"verified"`
	Verification Verification `json:"verification"`
	ManualReview bool         `json:"manualReview,omitempty"`
}

// BuyerGroup is the ranked set of people involved in a purchasing decision.
type BuyerGroup struct {
	CompanyID        string       `json:"companyId"`
	Members          []Member     `json:"members"`
	CohesionScore    float64      `json:"cohesionScore"`
	RoleDistribution map[Role]int `json:"roleDistribution"`
	GeneratedAt      time.Time    `json:"generatedAt"`
}

// CompanySummary is company-level intelligence attached to a response.
type CompanySummary struct {
	Name           string   `json:"name"`
	Domain         string   `json:"domain,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	EmployeeBucket string   `json:"employeeBucket,omitempty"`
	TechStack      []string `json:"techStack,omitempty"`
	RolesCovered   []Role   `json:"rolesCovered"`
	RolesMissing   []Role   `json:"rolesMissing"`
	VerifiedCount  int      `json:"verifiedCount"`
	ManualReviews  int      `json:"manualReviews"`
	CandidatesSeen int      `json:"candidatesSeen"`
	Qualified      int      `json:"qualified"`
}
