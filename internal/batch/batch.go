package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/workpool"
)

// Runner runs one buyer-group request. *buyergroup.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req model.Request) (*model.Response, error)
}

// Outcome is the result of one batch entry.
type Outcome struct {
	Request  model.Request
	Response *model.Response
	Err      error
}

// Summary tallies a batch.
type Summary struct {
	Total       int
	Succeeded   int
	Failed      int
	NoQualified int
	Cached      int
	Duration    time.Duration
	ByCode      map[model.ErrorCode]int
}

// Run executes every request on a pool of workers. A failing company never
// stops the batch; outcomes are returned in input order.
func Run(ctx context.Context, runner Runner, reqs []model.Request, workers int) ([]Outcome, Summary) {
	start := time.Now()
	pool := workpool.New(workers, workpool.WithQueueSize(workers))

	results := workpool.Map(ctx, pool, reqs, func(ctx context.Context, req model.Request) (*model.Response, error) {
		return runner.Run(ctx, req)
	})

	out := make([]Outcome, len(reqs))
	sum := Summary{Total: len(reqs), ByCode: map[model.ErrorCode]int{}}
	for i, r := range results {
		out[i] = Outcome{Request: reqs[i], Response: r.Value, Err: r.Err}
		switch {
		case r.Err != nil:
			sum.Failed++
			code := buyergroup.CodeOf(r.Err)
			if code == "" {
				code = model.CodeProviderUnavailable
			}
			sum.ByCode[code]++
			zap.L().Warn("batch: company failed",
				zap.String("company", reqs[i].CompanyName),
				zap.String("code", string(code)),
				zap.Error(r.Err),
			)
		case r.Value != nil && r.Value.Code == model.CodeNoQualifiedCandidates:
			sum.Succeeded++
			sum.NoQualified++
		default:
			sum.Succeeded++
			if r.Value != nil && r.Value.Cached {
				sum.Cached++
			}
		}
	}
	sum.Duration = time.Since(start)

	zap.L().Info("batch: complete",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("no_qualified", sum.NoQualified),
		zap.Int("cached", sum.Cached),
		zap.Duration("duration", sum.Duration),
	)
	return out, sum
}

// Responses returns the successful responses in input order.
func Responses(outcomes []Outcome) []*model.Response {
	var out []*model.Response
	for _, o := range outcomes {
		if o.Err == nil && o.Response != nil {
			out = append(out, o.Response)
		}
	}
	return out
}
