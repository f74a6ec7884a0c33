package buyergroup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/resilience"
	"github.com/sells-group/buyer-group-cli/internal/waterfall"
	"github.com/sells-group/buyer-group-cli/internal/waterfall/provider"
)

// testSettings are DefaultSettings without backoff or batch delays.
func testSettings() Settings {
	s := DefaultSettings()
	s.EnrichBatchDelay = 0
	s.Retry = resilience.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
	s.ContactLookup = false
	return s
}

type fakeCompanies struct {
	mu      sync.Mutex
	matches map[string][]model.Company
	err     error
	// failing maps a normalized name to the error its searches return.
	failing map[string]error
	calls   map[string]int
}

func (f *fakeCompanies) SearchCompanies(_ context.Context, name, _ string) ([]model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := NormalizeName(name)
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	if err := f.failing[key]; err != nil {
		return nil, err
	}
	return f.matches[key], nil
}

func (f *fakeCompanies) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakePeople struct {
	mu sync.Mutex
	// byTitle returns stubs for a query's Title.
	byTitle   map[string][]model.Candidate
	profiles  map[string]model.Candidate
	searchErr map[string]error
	fetchErr  error
	fetches   int
}

func (f *fakePeople) SearchPeople(_ context.Context, q Query, limit int) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.searchErr[q.Text]; err != nil {
		return nil, err
	}
	if len(q.Keywords) > 0 {
		return nil, nil
	}
	out := f.byTitle[q.Title]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]model.Candidate(nil), out...), nil
}

func (f *fakePeople) FetchProfiles(_ context.Context, _ model.Company, ids []string) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []model.Candidate
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeEmail struct {
	mu       sync.Mutex
	statuses map[string]EmailStatus
	err      error
	calls    []string
}

func (f *fakeEmail) VerifyEmail(_ context.Context, email string) (EmailStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, email)
	if f.err != nil {
		return EmailUnknown, f.err
	}
	if s, ok := f.statuses[email]; ok {
		return s, nil
	}
	return EmailValid, nil
}

type fakeEmployment struct {
	notCurrent map[string]bool
	err        error
}

func (f *fakeEmployment) CheckEmployment(_ context.Context, person model.Candidate, _ model.Company) (Employment, error) {
	if f.err != nil {
		return Employment{}, f.err
	}
	if f.notCurrent[person.ID] {
		return Employment{Known: true, Current: false, Evidence: "left the company"}, nil
	}
	return Employment{Known: true, Current: true}, nil
}

// fakeContacts answers waterfall lookups from a fixed table keyed by full
// name and counts calls.
type fakeContacts struct {
	mu     sync.Mutex
	emails map[string]waterfall.SourceValue
	phones map[string]waterfall.SourceValue
	calls  int
}

func (f *fakeContacts) Run(_ context.Context, person provider.PersonIdentifier, _ map[string]waterfall.Known, _ ...waterfall.RunOption) *waterfall.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	res := &waterfall.Result{Resolutions: map[string]waterfall.FieldResolution{}}
	if v, ok := f.emails[person.FullName]; ok {
		res.Resolutions[provider.FieldEmail] = waterfall.FieldResolution{FieldKey: provider.FieldEmail, Resolved: true, Winner: &v}
	}
	if v, ok := f.phones[person.FullName]; ok {
		res.Resolutions[provider.FieldPhone] = waterfall.FieldResolution{FieldKey: provider.FieldPhone, Resolved: true, Winner: &v}
	}
	return res
}

// memRuns records run transitions in memory.
type memRuns struct {
	mu       sync.Mutex
	stages   []model.Stage
	records  []model.StageRecord
	failCode model.ErrorCode
	result   *model.Response
}

func (m *memRuns) CreateRun(_ context.Context, _ model.Request) (*model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, model.StagePending)
	return &model.Run{ID: "run-test", Stage: model.StagePending}, nil
}

func (m *memRuns) UpdateRunStage(_ context.Context, _ string, stage model.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
	return nil
}

func (m *memRuns) FailRun(_ context.Context, _ string, code model.ErrorCode, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, model.StageFailed)
	m.failCode = code
	return nil
}

func (m *memRuns) CompleteRun(_ context.Context, _ string, result *model.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, model.StageComplete)
	m.result = result
	return nil
}

func (m *memRuns) RecordStage(_ context.Context, rec model.StageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func person(id, name, title string) model.Candidate {
	first, last, _ := strings.Cut(name, " ")
	return model.Candidate{ID: id, FullName: name, FirstName: first, LastName: last, Title: title, Source: "coresignal"}
}

func scored(c model.Candidate, confidence float64) model.ScoredCandidate {
	return model.ScoredCandidate{Candidate: c, Confidence: confidence, Relevance: 1, Completeness: 1}
}

func ids(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return out
}
