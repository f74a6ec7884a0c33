package waterfall

import "time"

// Known is a value already on the person before the waterfall runs.
type Known struct {
	Value      string
	Source     string
	Confidence float64
	DataAsOf   *time.Time
}

// SourceValue represents a field value from a specific source.
type SourceValue struct {
	Source              string     `json:"source"`
	Value               string     `json:"value"`
	RawConfidence       float64    `json:"raw_confidence"`
	EffectiveConfidence float64    `json:"effective_confidence"`
	DataAsOf            *time.Time `json:"data_as_of,omitempty"`
	Tier                int        `json:"tier"`
}

// FieldResolution is the outcome of waterfall evaluation for a single field.
type FieldResolution struct {
	FieldKey     string        `json:"field_key"`
	Resolved     bool          `json:"resolved"`
	Winner       *SourceValue  `json:"winner,omitempty"`
	Threshold    float64       `json:"threshold"`
	ThresholdMet bool          `json:"threshold_met"`
	Attempts     []SourceValue `json:"attempts"`
}

// Failure records a provider that errored during a run.
type Failure struct {
	Provider string
	Err      error
}

// Result is the output of running the waterfall for one person.
type Result struct {
	Resolutions    map[string]FieldResolution `json:"resolutions"`
	TotalCostUSD   float64                    `json:"total_cost_usd"`
	FieldsResolved int                        `json:"fields_resolved"`
	FieldsTotal    int                        `json:"fields_total"`
	Queried        []string                   `json:"queried,omitempty"`
	BudgetSkipped  []string                   `json:"budget_skipped,omitempty"`
	Failures       []Failure                  `json:"-"`
}

// Winner returns the best value found for field, if any.
func (r *Result) Winner(field string) (SourceValue, bool) {
	if r == nil {
		return SourceValue{}, false
	}
	res, ok := r.Resolutions[field]
	if !ok || res.Winner == nil || res.Winner.Value == "" {
		return SourceValue{}, false
	}
	return *res.Winner, true
}
