package buyergroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

func TestSynthesize_NoDuplicatesAndOrdering(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	champ := member("p2", "Sam Roe", "sam@acme.com", 0.9)
	champ.Role = model.RoleChampion
	dm := member("p1", "Jane Doe", "jane@acme.com", 0.7)
	dm.Verification = model.VerificationVerified
	dup := dm
	dup.Role = model.RoleStakeholder
	blocker := member("p3", "Lee Park", "", 0.5)
	blocker.Role = model.RoleBlocker
	blocker.ManualReview = true

	company := acme
	company.EmployeeCount = 320
	company.TechStack = []string{"Go", "Postgres"}

	group, summary := Synthesize(company, []model.RoleAssignment{champ, dm, dup, blocker}, Stats{CandidatesSeen: 40, Qualified: 5}, now)

	require.Len(t, group.Members, 3)
	assert.Equal(t, "p1", group.Members[0].Person.ID)
	assert.Equal(t, model.RoleDecisionMaker, group.Members[0].Role)
	assert.True(t, group.Members[0].Verified)
	assert.Equal(t, "p2", group.Members[1].Person.ID)
	assert.Equal(t, "p3", group.Members[2].Person.ID)
	assert.Equal(t, map[model.Role]int{model.RoleDecisionMaker: 1, model.RoleChampion: 1, model.RoleBlocker: 1}, group.RoleDistribution)
	assert.Equal(t, now, group.GeneratedAt)

	wantCohesion := (1.0*0.7 + 0.8*0.9 + 0.5*0.5) / (1.0 + 0.8 + 0.5)
	assert.InDelta(t, wantCohesion, group.CohesionScore, 1e-9)

	assert.Equal(t, "201-500", summary.EmployeeBucket)
	assert.Equal(t, []model.Role{model.RoleDecisionMaker, model.RoleChampion, model.RoleBlocker}, summary.RolesCovered)
	assert.Equal(t, []model.Role{model.RoleStakeholder, model.RoleIntroducer}, summary.RolesMissing)
	assert.Equal(t, 1, summary.VerifiedCount)
	assert.Equal(t, 1, summary.ManualReviews)
	assert.Equal(t, 40, summary.CandidatesSeen)
	assert.Equal(t, []string{"Go", "Postgres"}, summary.TechStack)
}

func TestSynthesize_Empty(t *testing.T) {
	group, summary := Synthesize(acme, nil, Stats{CandidatesSeen: 3}, time.Now())

	assert.Empty(t, group.Members)
	assert.Zero(t, group.CohesionScore)
	assert.Empty(t, summary.RolesCovered)
	assert.Len(t, summary.RolesMissing, len(model.Roles))
}
