package buyergroup

import (
	"sort"
	"time"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// roleWeights weight member confidence in the cohesion score.
var roleWeights = map[model.Role]float64{
	model.RoleDecisionMaker: 1.0,
	model.RoleChampion:      0.8,
	model.RoleStakeholder:   0.6,
	model.RoleBlocker:       0.5,
	model.RoleIntroducer:    0.4,
}

// Stats are pipeline counters reported in the company summary.
type Stats struct {
	CandidatesSeen int
	Qualified      int
}

// Synthesize builds the buyer group and company summary from the final
// assignments. Duplicate person IDs keep their first occurrence. Members
// are ordered by role priority then confidence descending.
func Synthesize(company model.Company, assignments []model.RoleAssignment, stats Stats, now time.Time) (*model.BuyerGroup, model.CompanySummary) {
	seen := make(map[string]bool, len(assignments))
	unique := make([]model.RoleAssignment, 0, len(assignments))
	for _, a := range assignments {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		unique = append(unique, a)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		pi, pj := unique[i].Role.Priority(), unique[j].Role.Priority()
		if pi != pj {
			return pi < pj
		}
		if unique[i].Confidence != unique[j].Confidence {
			return unique[i].Confidence > unique[j].Confidence
		}
		return unique[i].ID < unique[j].ID
	})

	group := &model.BuyerGroup{
		CompanyID:        company.ID,
		Members:          make([]model.Member, 0, len(unique)),
		RoleDistribution: make(map[model.Role]int),
		GeneratedAt:      now,
	}
	summary := model.CompanySummary{
		Name:           company.Name,
		Domain:         company.Domain,
		Industry:       company.Industry,
		EmployeeBucket: company.EmployeeBucket,
		TechStack:      company.TechStack,
		CandidatesSeen: stats.CandidatesSeen,
		Qualified:      stats.Qualified,
	}
	if summary.EmployeeBucket == "" {
		summary.EmployeeBucket = model.EmployeeBucket(company.EmployeeCount)
	}

	var weighted, weights float64
	for _, a := range unique {
		group.Members = append(group.Members, toMember(a))
		group.RoleDistribution[a.Role]++
		w := roleWeights[a.Role]
		weighted += w * a.Confidence
		weights += w
		if a.Verification == model.VerificationVerified {
			summary.VerifiedCount++
		}
		if a.ManualReview {
			summary.ManualReviews++
		}
	}
	if weights > 0 {
		group.CohesionScore = weighted / weights
	}

	summary.RolesCovered = []model.Role{}
	summary.RolesMissing = []model.Role{}
	for _, r := range model.Roles {
		if group.RoleDistribution[r] > 0 {
			summary.RolesCovered = append(summary.RolesCovered, r)
		} else {
			summary.RolesMissing = append(summary.RolesMissing, r)
		}
	}
	return group, summary
}

func toMember(a model.RoleAssignment) model.Member {
	return model.Member{
		Person: model.Person{
			ID:          a.ID,
			Name:        a.FullName,
			Title:       a.Title,
			Department:  a.Department,
			Seniority:   a.Seniority,
			Location:    a.Location,
			LinkedInURL: a.LinkedInURL,
		},
		Role:       a.Role,
		Confidence: a.Confidence,
		Authority:  a.Authority,
		Rationale:  a.Rationale,
		Contact: model.Contact{
			Email:       a.Email,
			EmailSource: a.EmailSource,
			EmailStatus: a.EmailCheck,
			Phone:       a.Phone,
			PhoneSource: a.PhoneSource,
		},
		Verified:     a.Verification == model.VerificationVerified,
		Verification: a.Verification,
		ManualReview: a.ManualReview,
	}
}
