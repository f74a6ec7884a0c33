package buyergroup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-group-cli/internal/model"
)

// Cache stores buyer-group responses keyed by company ID and profile hash.
// A miss returns (nil, nil). Writes are last-writer-wins.
type Cache interface {
	Get(ctx context.Context, companyID, profileHash string) (*model.Response, error)
	Set(ctx context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error
	Invalidate(ctx context.Context, companyID string) (int, error)
}

// ProfileHash is the SHA-256 of the normalized seller profile and the
// options that change the output.
func ProfileHash(profile model.SellerProfile, opts model.Options) string {
	roles := make([]string, 0, len(profile.TargetRoles))
	for _, r := range dedupeFold(profile.TargetRoles) {
		roles = append(roles, foldText(r))
	}
	key := struct {
		Product       string   `json:"p"`
		Category      string   `json:"c"`
		Industry      string   `json:"i"`
		Roles         []string `json:"r"`
		MaxGroupSize  int      `json:"m"`
		MinConfidence float64  `json:"f"`
		SkipValidate  bool     `json:"s"`
	}{
		Product:       foldText(strings.TrimSpace(profile.ProductName)),
		Category:      foldText(strings.TrimSpace(profile.SolutionCategory)),
		Industry:      foldText(strings.TrimSpace(profile.Industry)),
		Roles:         roles,
		MaxGroupSize:  opts.MaxGroupSize,
		MinConfidence: opts.MinConfidence,
		SkipValidate:  opts.SkipValidate,
	}
	data, _ := json.Marshal(key)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string) (*model.Response, error) { return nil, nil }

func (NoopCache) Set(context.Context, string, string, *model.Response, time.Duration) error {
	return nil
}

func (NoopCache) Invalidate(context.Context, string) (int, error) { return 0, nil }

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Entries are stored serialized so
// callers never share a response value.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, companyID, profileHash string) (*model.Response, error) {
	c.mu.Lock()
	e, ok := c.entries[companyID][profileHash]
	c.mu.Unlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, nil
	}
	var resp model.Response
	if err := json.Unmarshal(e.data, &resp); err != nil {
		return nil, eris.Wrap(err, "cache: decode")
	}
	return &resp, nil
}

func (c *MemoryCache) Set(_ context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return eris.Wrap(err, "cache: encode")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[companyID] == nil {
		c.entries[companyID] = make(map[string]memoryEntry)
	}
	c.entries[companyID][profileHash] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, companyID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries[companyID])
	delete(c.entries, companyID)
	return n, nil
}

// BuyerGroupStore is the subset of store.Store backing StoreCache.
type BuyerGroupStore interface {
	GetBuyerGroup(ctx context.Context, companyID, profileHash string) (*model.Response, error)
	SetBuyerGroup(ctx context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error
	InvalidateBuyerGroups(ctx context.Context, companyID string) (int, error)
}

// StoreCache is a Cache persisted in the SQLite or Postgres store.
type StoreCache struct {
	store BuyerGroupStore
}

// NewStoreCache wraps a store as a Cache.
func NewStoreCache(s BuyerGroupStore) *StoreCache {
	return &StoreCache{store: s}
}

func (c *StoreCache) Get(ctx context.Context, companyID, profileHash string) (*model.Response, error) {
	return c.store.GetBuyerGroup(ctx, companyID, profileHash)
}

func (c *StoreCache) Set(ctx context.Context, companyID, profileHash string, resp *model.Response, ttl time.Duration) error {
	return c.store.SetBuyerGroup(ctx, companyID, profileHash, resp, ttl)
}

func (c *StoreCache) Invalidate(ctx context.Context, companyID string) (int, error) {
	return c.store.InvalidateBuyerGroups(ctx, companyID)
}

// markCached prepares a cached response for reuse. Verification results are
// never carried across runs, so verified members come back unverified.
func markCached(resp *model.Response, runID string) *model.Response {
	resp.Cached = true
	resp.RunID = runID
	if resp.BuyerGroup == nil {
		return resp
	}
	for i := range resp.BuyerGroup.Members {
		m := &resp.BuyerGroup.Members[i]
		if m.Verified {
			m.Verified = false
			m.Verification = model.VerificationUnverified
		}
	}
	resp.Summary.VerifiedCount = 0
	resp.Warnings = append(resp.Warnings, warn(model.StageSynthesizing, model.WarnCachedResult,
		"served from cache generated at %s; contact verification not re-run", resp.GeneratedAt.Format(time.RFC3339)))
	return resp
}
