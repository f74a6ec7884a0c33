// Package salesforce wraps go-salesforce with a rate limit and the small
// set of calls CRM sync needs: SOQL queries and Contact collections.
package salesforce

import (
	"context"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// maxBatchSize is the Collections API limit per request.
const maxBatchSize = 200

// Client is the Salesforce surface used by CRM sync.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
}

// CollectionRecord is one record of a collection update.
type CollectionRecord struct {
	ID     string         `json:"Id"`
	Fields map[string]any `json:"fields"`
}

// CollectionResult is the per-record outcome of a collection call.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// ClientOption configures the client.
type ClientOption func(*client)

// WithRateLimit caps API calls per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64) ClientOption {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// client adapts *gosf.Salesforce. The library takes no context, so ctx
// gates the call before it starts and bounds the limiter wait.
type client struct {
	sf      *gosf.Salesforce
	limiter *rate.Limiter
}

// NewClient wraps an initialized go-salesforce instance.
func NewClient(sf *gosf.Salesforce, opts ...ClientOption) Client {
	c := &client{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) ready(ctx context.Context, action string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "sf: %s", action)
	}
	if c.limiter == nil {
		return nil
	}
	return eris.Wrapf(c.limiter.Wait(ctx), "sf: %s: rate limit", action)
}

func (c *client) Query(ctx context.Context, soql string, out any) error {
	if err := c.ready(ctx, "query"); err != nil {
		return err
	}
	return eris.Wrap(c.sf.Query(soql, out), "sf: query")
}

func (c *client) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	if err := c.ready(ctx, "insert collection "+sObjectName); err != nil {
		return nil, err
	}
	res, err := c.sf.InsertCollection(sObjectName, records, maxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: insert collection %s", sObjectName)
	}
	out := make([]CollectionResult, 0, len(res.Results))
	for _, r := range res.Results {
		cr := CollectionResult{ID: r.Id, Success: r.Success}
		for _, e := range r.Errors {
			cr.Errors = append(cr.Errors, e.Message)
		}
		out = append(out, cr)
	}
	return out, nil
}

func (c *client) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if err := c.ready(ctx, "update collection "+sObjectName); err != nil {
		return nil, err
	}
	res, err := c.sf.UpdateCollection(sObjectName, withIDs(records), maxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: update collection %s", sObjectName)
	}
	out := make([]CollectionResult, 0, len(res.Results))
	for _, r := range res.Results {
		cr := CollectionResult{ID: r.Id, Success: r.Success}
		for _, e := range r.Errors {
			cr.Errors = append(cr.Errors, e.Message)
		}
		out = append(out, cr)
	}
	return out, nil
}

// withIDs flattens records into the map shape go-salesforce expects, with
// the record ID under "Id".
func withIDs(records []CollectionRecord) []map[string]any {
	maps := make([]map[string]any, len(records))
	for i, rec := range records {
		m := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			m[k] = v
		}
		m["Id"] = rec.ID
		maps[i] = m
	}
	return maps
}
