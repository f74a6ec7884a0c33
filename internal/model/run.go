package model

import "time"

// Stage is a pipeline state.
type Stage string

const (
	StagePending      Stage = "pending"
	StageResolving    Stage = "resolving"
	StageSearching    Stage = "searching"
	StageEnriching    Stage = "enriching"
	StageFiltering    Stage = "filtering"
	StageAssigning    Stage = "assigning"
	StageValidating   Stage = "validating"
	StageSynthesizing Stage = "synthesizing"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// stageOrder is the linear happy path.
var stageOrder = []Stage{
	StagePending,
	StageResolving,
	StageSearching,
	StageEnriching,
	StageFiltering,
	StageAssigning,
	StageValidating,
	StageSynthesizing,
	StageComplete,
}

// Next returns the stage following s on the happy path, or "" for terminal
// stages.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return ""
}

// Terminal reports whether s ends a run.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// CanTransition reports whether a run may move from s to next. Failed is
// only reachable from Resolving.
func (s Stage) CanTransition(next Stage) bool {
	if next == StageFailed {
		return s == StageResolving
	}
	return s.Next() == next
}

// StageStatus is the outcome of one stage in a run.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
	StageStatusFailed   StageStatus = "failed"
)

// StageRecord is the persisted record of a stage execution.
type StageRecord struct {
	ID         string      `json:"id"`
	RunID      string      `json:"runId"`
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	DurationMs int64       `json:"durationMs"`
	Items      int         `json:"items"`
	Warnings   int         `json:"warnings"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
}

// Run is a persisted pipeline run.
type Run struct {
	ID        string        `json:"id"`
	Request   Request       `json:"request"`
	Stage     Stage         `json:"stage"`
	ErrorCode ErrorCode     `json:"errorCode,omitempty"`
	Error     string        `json:"error,omitempty"`
	Result    *Response     `json:"result,omitempty"`
	Stages    []StageRecord `json:"stages,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
