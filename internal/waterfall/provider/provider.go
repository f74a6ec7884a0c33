// Package provider defines the interface and implementations for contact
// waterfall data providers.
package provider

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Field keys a provider can supply.
const (
	FieldEmail = "email"
	FieldPhone = "phone"
)

// PersonIdentifier holds the identifiers used to look up one person.
type PersonIdentifier struct {
	FirstName     string
	LastName      string
	FullName      string
	CompanyDomain string
	CompanyName   string
	LinkedInURL   string
}

// FieldResult is a single field value returned by a provider.
type FieldResult struct {
	FieldKey   string     `json:"field_key"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	DataAsOf   *time.Time `json:"data_as_of,omitempty"`
}

// QueryResult is the complete response from a provider.
type QueryResult struct {
	Provider string        `json:"provider"`
	Fields   []FieldResult `json:"fields"`
	CostUSD  float64       `json:"cost_usd"`
}

// Field returns the result for key, if present.
func (q *QueryResult) Field(key string) (FieldResult, bool) {
	if q == nil {
		return FieldResult{}, false
	}
	for _, f := range q.Fields {
		if f.FieldKey == key && f.Value != "" {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Provider defines the interface for contact data providers.
type Provider interface {
	// Name returns the provider identifier (matches source name in waterfall config).
	Name() string
	// SupportedFields returns the list of field keys this provider can supply.
	SupportedFields() []string
	// CanProvide checks if the provider can supply a specific field.
	CanProvide(fieldKey string) bool
	// CostPerQuery estimates cost for querying specific fields.
	CostPerQuery(fields []string) float64
	// Query fetches contact data for a person.
	Query(ctx context.Context, person PersonIdentifier, fields []string) (*QueryResult, error)
}

// Registry manages available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds a provider to the registry. Nil providers are ignored.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func supports(fields []string, key string) bool {
	return slices.Contains(fields, key)
}
