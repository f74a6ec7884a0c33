// Package zerobounce is a client for the ZeroBounce email validation API.
package zerobounce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/buyer-group-cli/pkg/apierr"
)

const defaultBaseURL = "https://api.zerobounce.net/v2"

// Status is a ZeroBounce validation status.
type Status string

const (
	StatusValid     Status = "valid"
	StatusInvalid   Status = "invalid"
	StatusCatchAll  Status = "catch-all"
	StatusUnknown   Status = "unknown"
	StatusSpamtrap  Status = "spamtrap"
	StatusAbuse     Status = "abuse"
	StatusDoNotMail Status = "do_not_mail"
)

// Deliverable reports whether mail to the address should be accepted.
// Catch-all domains accept everything and count as deliverable.
func (s Status) Deliverable() bool {
	return s == StatusValid || s == StatusCatchAll
}

// Undeliverable reports whether the address is known bad.
func (s Status) Undeliverable() bool {
	switch s {
	case StatusInvalid, StatusSpamtrap, StatusAbuse, StatusDoNotMail:
		return true
	default:
		return false
	}
}

// Result is a single validation answer.
type Result struct {
	Address   string `json:"address"`
	Status    Status `json:"status"`
	SubStatus string `json:"sub_status"`
	FreeEmail bool   `json:"free_email"`
	Domain    string `json:"domain"`
	MXFound   string `json:"mx_found"`
	Error     string `json:"error"`
}

// Client validates email deliverability.
type Client interface {
	Validate(ctx context.Context, email string) (*Result, error)
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

// NewClient creates a ZeroBounce client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Validate(ctx context.Context, email string) (*Result, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, eris.New("zerobounce: email is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "zerobounce: rate limit")
		}
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("email", email)
	q.Set("ip_address", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/validate?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "zerobounce: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse("zerobounce", resp, body)
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, eris.Wrap(err, "zerobounce: unmarshal response")
	}
	// The API reports credit and key problems with a 200 and an error field.
	if res.Error != "" {
		return nil, eris.Errorf("zerobounce: %s", res.Error)
	}
	res.Status = Status(strings.ToLower(string(res.Status)))
	return &res, nil
}
