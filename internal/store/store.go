// Package store persists pipeline runs, resolved companies and cached buyer
// groups in SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Stage       model.Stage `json:"stage,omitempty"`
	CompanyName string      `json:"companyName,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Offset      int         `json:"offset,omitempty"`
}

// Store defines the persistence interface for the buyer-group pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, req model.Request) (*model.Run, error)
	UpdateRunStage(ctx context.Context, runID string, stage model.Stage) error
	FailRun(ctx context.Context, runID string, code model.ErrorCode, msg string) error
	CompleteRun(ctx context.Context, runID string, result *model.Response) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	RecordStage(ctx context.Context, rec model.StageRecord) error

	// Company cache. A maxAge of zero disables staleness.
	GetCompany(ctx context.Context, key string, maxAge time.Duration) (*model.Company, error)
	SetCompany(ctx context.Context, key string, company model.Company) error

	// Buyer-group cache
	GetBuyerGroup(ctx context.Context, companyID, profileHash string) (*model.Response, error)
	SetBuyerGroup(ctx context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error
	InvalidateBuyerGroups(ctx context.Context, companyID string) (int, error)
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
