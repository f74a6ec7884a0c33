// Package coresignal is a client for the CoreSignal multi-source company and
// employee APIs.
package coresignal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/buyer-group-cli/pkg/apierr"
)

const (
	defaultBaseURL = "https://api.coresignal.com/cdapi/v2"
	providerName   = "coresignal"
)

// Client searches and collects companies and employees.
type Client interface {
	SearchCompanies(ctx context.Context, q CompanyQuery) ([]int64, error)
	CollectCompany(ctx context.Context, id int64) (*Company, error)
	SearchEmployees(ctx context.Context, q EmployeeQuery) ([]int64, error)
	CollectEmployee(ctx context.Context, id int64) (*Employee, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second across all endpoints.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a CoreSignal client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchCompanies(ctx context.Context, q CompanyQuery) ([]int64, error) {
	var ids []int64
	if err := c.do(ctx, http.MethodPost, "/company_multi_source/search/es_dsl", q.dsl(), &ids, nil); err != nil {
		return nil, eris.Wrap(err, "coresignal: search companies")
	}
	return truncate(ids, q.Limit), nil
}

func (c *httpClient) CollectCompany(ctx context.Context, id int64) (*Company, error) {
	var co Company
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/company_multi_source/collect/%d", id), nil, &co, nil); err != nil {
		return nil, eris.Wrapf(err, "coresignal: collect company %d", id)
	}
	return &co, nil
}

func (c *httpClient) SearchEmployees(ctx context.Context, q EmployeeQuery) ([]int64, error) {
	var ids []int64
	if err := c.do(ctx, http.MethodPost, "/employee_multi_source/search/es_dsl", q.dsl(), &ids, nil); err != nil {
		return nil, eris.Wrap(err, "coresignal: search employees")
	}
	return truncate(ids, q.Limit), nil
}

func (c *httpClient) CollectEmployee(ctx context.Context, id int64) (*Employee, error) {
	var emp Employee
	var raw []byte
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/employee_multi_source/collect/%d", id), nil, &emp, &raw); err != nil {
		return nil, eris.Wrapf(err, "coresignal: collect employee %d", id)
	}
	emp.Raw = raw
	return &emp, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any, raw *[]byte) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return apierr.FromResponse(providerName, resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	if raw != nil {
		*raw = respBody
	}
	return nil
}

func truncate(ids []int64, limit int) []int64 {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
