// Package hunter is a client for the Hunter.io email finder.
package hunter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/buyer-group-cli/pkg/apierr"
)

const defaultBaseURL = "https://api.hunter.io/v2"

// Client finds professional email addresses.
type Client interface {
	FindEmail(ctx context.Context, req FindEmailRequest) (*EmailResult, error)
}

// FindEmailRequest identifies a person at a company domain.
type FindEmailRequest struct {
	Domain    string
	Company   string
	FirstName string
	LastName  string
	FullName  string
}

// EmailResult is the email-finder answer. Score is 0-100.
type EmailResult struct {
	Email     string   `json:"email"`
	Score     int      `json:"score"`
	Position  string   `json:"position"`
	Phone     string   `json:"phone_number"`
	Sources   []Source `json:"sources"`
	Verified  string   `json:"-"`
	UpdatedAt string   `json:"-"`
}

// Source is a public page the address was seen on.
type Source struct {
	Domain      string `json:"domain"`
	URI         string `json:"uri"`
	ExtractedOn string `json:"extracted_on"`
	LastSeenOn  string `json:"last_seen_on"`
}

type findResponse struct {
	Data struct {
		EmailResult
		Verification struct {
			Date   string `json:"date"`
			Status string `json:"status"`
		} `json:"verification"`
	} `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second.
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

// NewClient creates a Hunter client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) FindEmail(ctx context.Context, req FindEmailRequest) (*EmailResult, error) {
	if req.Domain == "" && req.Company == "" {
		return nil, eris.New("hunter: domain or company is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "hunter: rate limit")
		}
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if req.Domain != "" {
		q.Set("domain", req.Domain)
	} else {
		q.Set("company", req.Company)
	}
	if req.FirstName != "" && req.LastName != "" {
		q.Set("first_name", req.FirstName)
		q.Set("last_name", req.LastName)
	} else {
		q.Set("full_name", req.FullName)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/email-finder?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse("hunter", resp, body)
	}

	var out findResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "hunter: unmarshal response")
	}
	res := out.Data.EmailResult
	res.Verified = out.Data.Verification.Status
	res.UpdatedAt = out.Data.Verification.Date
	return &res, nil
}
