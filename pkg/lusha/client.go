// Package lusha is a client for the Lusha person enrichment API.
package lusha

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

const defaultBaseURL = "https://api.lusha.com/v2"

// Client looks up contact details for a person.
type Client interface {
	LookupPerson(ctx context.Context, req PersonRequest) (*Person, error)
}

// PersonRequest identifies a person. LinkedInURL alone is sufficient;
// otherwise a name plus company domain or name is required.
type PersonRequest struct {
	FirstName     string
	LastName      string
	CompanyDomain string
	CompanyName   string
	LinkedInURL   string
}

// Email is one address on a Lusha record.
type Email struct {
	Email      string `json:"email"`
	Type       string `json:"emailType"`
	Confidence string `json:"emailConfidence"`
}

// Phone is one number on a Lusha record.
type Phone struct {
	Number string `json:"number"`
	Type   string `json:"phoneType"`
}

// Person is the contact payload of a lookup.
type Person struct {
	FullName   string  `json:"fullName"`
	JobTitle   string  `json:"jobTitle"`
	Emails     []Email `json:"emailAddresses"`
	Phones     []Phone `json:"phoneNumbers"`
	UpdateDate string  `json:"updateDate"`
}

// WorkEmail returns the first work address, falling back to the first address.
func (p *Person) WorkEmail() (Email, bool) {
	for _, e := range p.Emails {
		if e.Type == "work" && e.Email != "" {
			return e, true
		}
	}
	if len(p.Emails) > 0 && p.Emails[0].Email != "" {
		return p.Emails[0], true
	}
	return Email{}, false
}

// BestPhone prefers direct dials, then mobile, then anything.
func (p *Person) BestPhone() (Phone, bool) {
	for _, want := range []string{"direct", "mobile"} {
		for _, ph := range p.Phones {
			if ph.Type == want && ph.Number != "" {
				return ph, true
			}
		}
	}
	if len(p.Phones) > 0 && p.Phones[0].Number != "" {
		return p.Phones[0], true
	}
	return Phone{}, false
}

type personResponse struct {
	Contact struct {
		Data  *Person `json:"data"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"contact"`
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

// NewClient creates a Lusha client.
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

func (c *httpClient) LookupPerson(ctx context.Context, req PersonRequest) (*Person, error) {
	q := url.Values{}
	switch {
	case req.LinkedInURL != "":
		q.Set("linkedinUrl", req.LinkedInURL)
	case req.FirstName != "" && req.LastName != "" && (req.CompanyDomain != "" || req.CompanyName != ""):
		q.Set("firstName", req.FirstName)
		q.Set("lastName", req.LastName)
		if req.CompanyDomain != "" {
			q.Set("companyDomain", req.CompanyDomain)
		} else {
			q.Set("companyName", req.CompanyName)
		}
	default:
		return nil, eris.New("lusha: linkedin url or name with company is required")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "lusha: rate limit")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/person?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "lusha: create request")
	}
	httpReq.Header.Set("api_key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "lusha: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "lusha: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse("lusha", resp, body)
	}

	var out personResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "lusha: unmarshal response")
	}
	if out.Contact.Error != nil {
		return nil, eris.Errorf("lusha: lookup error %d: %s", out.Contact.Error.Code, out.Contact.Error.Message)
	}
	if out.Contact.Data == nil {
		return &Person{}, nil
	}
	return out.Contact.Data, nil
}
