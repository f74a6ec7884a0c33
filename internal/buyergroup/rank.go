package buyergroup

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
)

// unknownRecency is the freshness of a profile with no update timestamp.
const unknownRecency = 0.5

// titleAbbreviations expand common title shorthand before token matching.
var titleAbbreviations = map[string]string{
	"vp":   "vice president",
	"svp":  "senior vice president",
	"evp":  "executive vice president",
	"avp":  "assistant vice president",
	"ceo":  "chief executive officer",
	"cto":  "chief technology officer",
	"cio":  "chief information officer",
	"ciso": "chief information security officer",
	"cfo":  "chief financial officer",
	"coo":  "chief operating officer",
	"cmo":  "chief marketing officer",
	"cro":  "chief revenue officer",
	"cpo":  "chief product officer",
	"dir":  "director",
	"mgr":  "manager",
	"sr":   "senior",
	"jr":   "junior",
	"eng":  "engineering",
	"ops":  "operations",
	"it":   "information technology",
}

var titleStopwords = map[string]bool{
	"of": true, "the": true, "and": true, "&": true, "for": true, "a": true, "in": true, "at": true,
}

// Ranker scores candidates and removes those below the quality thresholds.
type Ranker struct {
	weights         Weights
	minCompleteness float64
	minConfidence   float64
	decay           waterfall.DecayConfig
	now             func() time.Time
}

// NewRanker creates a Ranker.
func NewRanker(s Settings) *Ranker {
	return &Ranker{
		weights:         s.Weights,
		minCompleteness: s.MinCompleteness,
		minConfidence:   s.MinConfidence,
		decay:           s.RecencyDecay,
		now:             time.Now,
	}
}

// WithNow pins the clock used for recency.
func (r *Ranker) WithNow(t time.Time) *Ranker {
	r.now = func() time.Time { return t }
	return r
}

// Score computes the quality scores for one candidate. targetRoles is used
// when the candidate carries no matched roles.
func (r *Ranker) Score(c model.Candidate, targetRoles []string) model.ScoredCandidate {
	roles := c.MatchedRoles
	if len(roles) == 0 {
		roles = targetRoles
	}
	sc := model.ScoredCandidate{
		Candidate:    c,
		Completeness: Completeness(c),
		Recency:      waterfall.Freshness(c.LastUpdated, r.now(), r.decay, unknownRecency),
		Relevance:    Relevance(c.Title, roles),
	}
	sum := r.weights.Completeness + r.weights.Recency + r.weights.Relevance
	if sum > 0 {
		sc.Confidence = (r.weights.Completeness*sc.Completeness +
			r.weights.Recency*sc.Recency +
			r.weights.Relevance*sc.Relevance) / sum
	}
	return sc
}

// Rank scores, filters and sorts candidates: confidence descending, then
// recency descending, then provider ID ascending.
func (r *Ranker) Rank(cands []model.Candidate, targetRoles []string) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		sc := r.Score(c, targetRoles)
		if sc.Completeness < r.minCompleteness || sc.Confidence < r.minConfidence {
			continue
		}
		out = append(out, sc)
	}
	sortScored(out)
	return out
}

func sortScored(s []model.ScoredCandidate) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Confidence != s[j].Confidence {
			return s[i].Confidence > s[j].Confidence
		}
		if s[i].Recency != s[j].Recency {
			return s[i].Recency > s[j].Recency
		}
		return s[i].ID < s[j].ID
	})
}

// Completeness is the fraction of expected profile fields present.
func Completeness(c model.Candidate) float64 {
	fields := []string{c.FullName, c.Title, c.Department, c.Seniority, c.Email, c.Phone, c.LinkedInURL}
	present := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			present++
		}
	}
	return float64(present) / float64(len(fields))
}

// Relevance is the best token overlap between title and any role: the
// share of a role's tokens found in the title.
func Relevance(title string, roles []string) float64 {
	titleTokens := make(map[string]bool)
	for _, t := range titleTokensOf(title) {
		titleTokens[t] = true
	}
	if len(titleTokens) == 0 {
		return 0
	}

	best := 0.0
	for _, role := range roles {
		tokens := titleTokensOf(role)
		if len(tokens) == 0 {
			continue
		}
		hit := 0
		for _, t := range tokens {
			if titleTokens[t] {
				hit++
			}
		}
		if score := float64(hit) / float64(len(tokens)); score > best {
			best = score
		}
	}
	return best
}

// titleTokensOf folds, splits and expands a title into distinct tokens.
func titleTokensOf(s string) []string {
	words := titleWords(s)
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		expanded := []string{w}
		if full, ok := titleAbbreviations[w]; ok {
			expanded = strings.Fields(full)
		}
		for _, t := range expanded {
			if titleStopwords[t] || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
