package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultDiscoveryCacheTTL is how long a fetched discovery document is
// reused before it is refreshed.
const DefaultDiscoveryCacheTTL = time.Hour

// DiscoveryDocument is the subset of OpenID Connect provider metadata the
// adapter needs.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
}

// cachedDocument holds a discovery document with its fetch timestamp.
type cachedDocument struct {
	document  *DiscoveryDocument
	fetchedAt time.Time
}

// DiscoveryClient fetches and caches OIDC discovery documents. Safe for
// concurrent use.
type DiscoveryClient struct {
	httpClient *http.Client
	cacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]*cachedDocument
}

// NewDiscoveryClient creates a discovery client. A nil httpClient falls
// back to a client with a 10s timeout; a zero cacheTTL falls back to
// DefaultDiscoveryCacheTTL.
func NewDiscoveryClient(httpClient *http.Client, cacheTTL time.Duration) *DiscoveryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultDiscoveryCacheTTL
	}
	return &DiscoveryClient{
		httpClient: httpClient,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*cachedDocument),
	}
}

// Discover returns the discovery document for issuerURL, from cache when
// fresh.
func (c *DiscoveryClient) Discover(ctx context.Context, issuerURL string) (*DiscoveryDocument, error) {
	c.mu.Lock()
	cached, ok := c.cache[issuerURL]
	c.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		return cached.document, nil
	}

	doc, err := c.fetch(ctx, issuerURL)
	if err != nil {
		// A stale document beats a hard failure when the issuer flaps.
		if ok {
			return cached.document, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.cache[issuerURL] = &cachedDocument{document: doc, fetchedAt: time.Now()}
	c.mu.Unlock()

	return doc, nil
}

func (c *DiscoveryClient) fetch(ctx context.Context, issuerURL string) (*DiscoveryDocument, error) {
	wellKnown := strings.TrimSuffix(issuerURL, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, fmt.Errorf("creating discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding discovery document: %w", err)
	}

	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return nil, fmt.Errorf("discovery document is missing required endpoints")
	}

	return &doc, nil
}
