package buyergroup

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// targetMatchThreshold is the relevance a candidate needs for rules with
// target_role_match set.
const targetMatchThreshold = 0.5

//go:embed rules.yaml
var defaultRules []byte

// Pattern maps a title regex to a value such as a seniority tier.
type Pattern struct {
	Value   string `yaml:"value"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Rule grants a role to candidates matching every condition that is set.
type Rule struct {
	ID                 string     `yaml:"id"`
	Title              string     `yaml:"title"`
	Departments        []string   `yaml:"departments"`
	Seniorities        []string   `yaml:"seniorities"`
	SolutionCategories []string   `yaml:"solution_categories"`
	TargetRoleMatch    bool       `yaml:"target_role_match"`
	Role               model.Role `yaml:"role"`
	Authority          float64    `yaml:"authority"`

	re *regexp.Regexp
}

// RuleTable is the data-driven role classifier.
type RuleTable struct {
	FallbackRole       model.Role `yaml:"fallback_role"`
	FallbackAuthority  float64    `yaml:"fallback_authority"`
	DefaultTargetRoles []string   `yaml:"default_target_roles"`
	Seniority          []Pattern  `yaml:"seniority"`
	Departments        []Pattern  `yaml:"departments"`
	Rules              []Rule     `yaml:"rules"`
}

// Match is one qualifying role for a candidate.
type Match struct {
	Role      model.Role
	Authority float64
	RuleID    string
}

// DefaultRules returns the embedded rule table.
func DefaultRules() *RuleTable {
	t, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("buyergroup: embedded rules: %v", err))
	}
	return t
}

// LoadRules reads a rule table from path. An empty path returns the
// embedded default.
func LoadRules(path string) (*RuleTable, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	return ParseRules(data)
}

// ParseRules parses and compiles a YAML rule table.
func ParseRules(data []byte) (*RuleTable, error) {
	var t RuleTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "rules: parse yaml")
	}
	if len(t.Rules) == 0 {
		return nil, eris.New("rules: no rules defined")
	}
	if t.FallbackRole == "" {
		t.FallbackRole = model.RoleIntroducer
	}
	if !t.FallbackRole.Valid() {
		return nil, eris.Errorf("rules: unknown fallback role %q", t.FallbackRole)
	}

	for i := range t.Seniority {
		re, err := compile(t.Seniority[i].Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: seniority %q", t.Seniority[i].Value)
		}
		t.Seniority[i].re = re
	}
	for i := range t.Departments {
		re, err := compile(t.Departments[i].Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "rules: department %q", t.Departments[i].Value)
		}
		t.Departments[i].re = re
	}

	ids := make(map[string]bool, len(t.Rules))
	for i := range t.Rules {
		r := &t.Rules[i]
		if r.ID == "" {
			return nil, eris.Errorf("rules: rule %d has no id", i)
		}
		if ids[r.ID] {
			return nil, eris.Errorf("rules: duplicate rule id %q", r.ID)
		}
		ids[r.ID] = true
		if !r.Role.Valid() {
			return nil, eris.Errorf("rules: rule %q has unknown role %q", r.ID, r.Role)
		}
		if r.Title != "" {
			re, err := compile(r.Title)
			if err != nil {
				return nil, eris.Wrapf(err, "rules: rule %q", r.ID)
			}
			r.re = re
		}
	}
	return &t, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// InferSeniority returns the first seniority tier whose pattern matches title.
func (t *RuleTable) InferSeniority(title string) string {
	return firstMatch(t.Seniority, title)
}

// InferDepartment returns the first department whose pattern matches title.
func (t *RuleTable) InferDepartment(title string) string {
	return firstMatch(t.Departments, title)
}

func firstMatch(ps []Pattern, title string) string {
	folded := foldText(title)
	if strings.TrimSpace(folded) == "" {
		return ""
	}
	for _, p := range ps {
		if p.re != nil && p.re.MatchString(folded) {
			return p.Value
		}
	}
	return ""
}

// Classify fills a candidate's missing seniority and department from its
// title. Provider values are kept.
func (t *RuleTable) Classify(c model.Candidate) model.Candidate {
	if c.Seniority == "" {
		c.Seniority = t.InferSeniority(c.Title)
	}
	if c.Department == "" {
		c.Department = t.InferDepartment(c.Title)
	}
	return c
}

// Matches returns every qualifying role for c, one per role with its best
// rule, ordered by role priority. c should already be classified.
func (t *RuleTable) Matches(c model.ScoredCandidate, profile model.SellerProfile) []Match {
	best := make(map[model.Role]Match)
	title := foldText(c.Title)
	for _, r := range t.Rules {
		if !r.matches(c, title, profile) {
			continue
		}
		if m, ok := best[r.Role]; !ok || r.Authority > m.Authority {
			best[r.Role] = Match{Role: r.Role, Authority: r.Authority, RuleID: r.ID}
		}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role.Priority() < out[j].Role.Priority() })
	return out
}

func (r Rule) matches(c model.ScoredCandidate, foldedTitle string, profile model.SellerProfile) bool {
	if r.re != nil && !r.re.MatchString(foldedTitle) {
		return false
	}
	if len(r.Departments) > 0 && !categoryMatches(r.Departments, c.Department) {
		return false
	}
	if len(r.Seniorities) > 0 && !containsFold(r.Seniorities, c.Seniority) {
		return false
	}
	if len(r.SolutionCategories) > 0 && !categoryMatches(r.SolutionCategories, profile.SolutionCategory) {
		return false
	}
	if r.TargetRoleMatch && c.Relevance < targetMatchThreshold {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// categoryMatches reports whether any entry occurs in value as a whole
// word or phrase.
func categoryMatches(entries []string, value string) bool {
	padded := " " + strings.Join(titleWords(value), " ") + " "
	if padded == "  " {
		return false
	}
	for _, e := range entries {
		if w := titleWords(e); len(w) > 0 && strings.Contains(padded, " "+strings.Join(w, " ")+" ") {
			return true
		}
	}
	return false
}
