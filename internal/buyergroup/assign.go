package buyergroup

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// Assigner gives each ranked candidate one role and balances the group.
type Assigner struct {
	rules   *RuleTable
	caps    map[model.Role]int
	maxSize int
	minSize int
}

// NewAssigner creates an Assigner. A nil rule table uses the embedded default.
func NewAssigner(rules *RuleTable, s Settings) *Assigner {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Assigner{rules: rules, caps: s.RoleCaps, maxSize: s.MaxGroupSize, minSize: s.MinGroupSize}
}

// WithMaxSize overrides the group size cap for one request.
func (a *Assigner) WithMaxSize(n int) *Assigner {
	if n <= 0 {
		return a
	}
	cp := *a
	cp.maxSize = n
	if cp.minSize > n {
		cp.minSize = n
	}
	return &cp
}

func (a *Assigner) capOf(r model.Role) int {
	if n, ok := a.caps[r]; ok {
		return n
	}
	return a.maxSize
}

// Assign classifies and balances cands, which must be sorted best first.
// Candidates over capacity are demoted to their next qualifying role with
// room, then to any lower role with room, and dropped otherwise.
func (a *Assigner) Assign(cands []model.ScoredCandidate, profile model.SellerProfile) ([]model.RoleAssignment, []model.Warning) {
	counts := make(map[model.Role]int)
	var out []model.RoleAssignment
	dropped := 0

	for _, sc := range cands {
		sc.Candidate = a.rules.Classify(sc.Candidate)
		if a.maxSize > 0 && len(out) >= a.maxSize {
			dropped++
			continue
		}

		matches := a.rules.Matches(sc, profile)
		if len(matches) == 0 {
			matches = []Match{{Role: a.rules.FallbackRole, Authority: a.rules.FallbackAuthority, RuleID: "fallback"}}
		}

		ra, ok := a.place(sc, matches, counts)
		if !ok {
			dropped++
			continue
		}
		counts[ra.Role]++
		out = append(out, ra)
	}

	var warnings []model.Warning
	if dropped > 0 {
		warnings = append(warnings, warn(model.StageAssigning, model.WarnMembersDropped,
			"%d qualified candidates exceeded role caps or the group size of %d", dropped, a.maxSize))
	}
	if len(out) > 0 && len(out) < a.minSize {
		warnings = append(warnings, warn(model.StageAssigning, model.WarnUnderfilled,
			"buyer group has %d members, below the target minimum of %d", len(out), a.minSize))
	}
	zap.L().Debug("assign: roles assigned", zap.Int("members", len(out)), zap.Int("dropped", dropped))
	return out, warnings
}

// place picks the first qualifying role with capacity, then any lower role.
func (a *Assigner) place(sc model.ScoredCandidate, matches []Match, counts map[model.Role]int) (model.RoleAssignment, bool) {
	top := matches[0]
	for _, m := range matches {
		if counts[m.Role] < a.capOf(m.Role) {
			return a.assignment(sc, m, top, matches), true
		}
	}

	for _, r := range model.Roles {
		if r.Priority() <= top.Role.Priority() || counts[r] >= a.capOf(r) {
			continue
		}
		m := Match{Role: r, Authority: min(top.Authority, a.rules.FallbackAuthority), RuleID: "demoted"}
		return a.assignment(sc, m, top, matches), true
	}
	return model.RoleAssignment{}, false
}

func (a *Assigner) assignment(sc model.ScoredCandidate, m, top Match, matches []Match) model.RoleAssignment {
	return model.RoleAssignment{
		ScoredCandidate: sc,
		Role:            m.Role,
		Authority:       m.Authority,
		RuleID:          m.RuleID,
		Rationale:       rationale(sc, m, top, matches),
	}
}

func rationale(sc model.ScoredCandidate, m, top Match, matches []Match) string {
	var b strings.Builder
	title := sc.Title
	if title == "" {
		title = "untitled"
	}
	switch m.RuleID {
	case "fallback":
		fmt.Fprintf(&b, "%s matched no role rule; assigned %s", title, m.Role)
	case "demoted":
		fmt.Fprintf(&b, "%s qualified as %s (rule %s) but the role was full; demoted to %s", title, top.Role, top.RuleID, m.Role)
	default:
		fmt.Fprintf(&b, "%s matched rule %s for %s", title, m.RuleID, m.Role)
		if m.Role != top.Role {
			fmt.Fprintf(&b, " after %s reached its cap", top.Role)
		}
	}
	if len(matches) > 1 {
		roles := make([]string, 0, len(matches))
		for _, x := range matches {
			roles = append(roles, string(x.Role))
		}
		fmt.Fprintf(&b, "; qualified for %s", strings.Join(roles, ", "))
	}
	if sc.Seniority != "" || sc.Department != "" {
		fmt.Fprintf(&b, " (seniority %s, department %s)", orDash(sc.Seniority), orDash(sc.Department))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
