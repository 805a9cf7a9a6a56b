// Package factory maps provider kinds to adapter constructors. It is the
// single place a deployment selects its identity provider; there is no
// string-driven dispatch or conditional loading anywhere else.
package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/giantswarm/mcp-authbridge/providers"
	"github.com/giantswarm/mcp-authbridge/providers/atlassian"
	"github.com/giantswarm/mcp-authbridge/providers/github"
	"github.com/giantswarm/mcp-authbridge/providers/google"
	"github.com/giantswarm/mcp-authbridge/providers/oidc"
	"github.com/giantswarm/mcp-authbridge/providers/salesforce"
)

// Config carries the provider-independent settings every adapter
// constructor accepts. Provider-specific knobs (Atlassian endpoints,
// Salesforce login host) keep their defaults; construct those adapters
// directly when the defaults do not fit.
type Config struct {
	// ClientID is the provider-issued client ID (required).
	ClientID string

	// ClientSecret is the provider-issued client secret (required).
	ClientSecret string

	// IssuerURL is the OIDC issuer URL. Required for KindOIDC, ignored
	// otherwise.
	IssuerURL string

	// URLs resolves callback paths to absolute URLs (required).
	URLs providers.CallbackURLBuilder

	// CallbackPath overrides the adapter's default callback path.
	CallbackPath string

	// Scopes override the adapter's default scopes.
	Scopes []string

	// StateTTL bounds pending authorization states.
	StateTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for provider API calls.
	RequestTimeout time.Duration
}

// New constructs the adapter for the given kind. Unknown kinds are a
// configuration error, reported at construction time.
func New(kind providers.Kind, cfg Config) (providers.Adapter, error) {
	switch kind {
	case providers.KindGitHub:
		return github.NewAdapter(&github.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			URLs:           cfg.URLs,
			CallbackPath:   cfg.CallbackPath,
			Scopes:         cfg.Scopes,
			StateTTL:       cfg.StateTTL,
			HTTPClient:     cfg.HTTPClient,
			RequestTimeout: cfg.RequestTimeout,
		})
	case providers.KindAtlassian:
		return atlassian.NewAdapter(&atlassian.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			URLs:           cfg.URLs,
			CallbackPath:   cfg.CallbackPath,
			Scopes:         cfg.Scopes,
			StateTTL:       cfg.StateTTL,
			HTTPClient:     cfg.HTTPClient,
			RequestTimeout: cfg.RequestTimeout,
		})
	case providers.KindSalesforce:
		return salesforce.NewAdapter(&salesforce.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			URLs:           cfg.URLs,
			CallbackPath:   cfg.CallbackPath,
			Scopes:         cfg.Scopes,
			StateTTL:       cfg.StateTTL,
			HTTPClient:     cfg.HTTPClient,
			RequestTimeout: cfg.RequestTimeout,
		})
	case providers.KindGoogle:
		return google.NewAdapter(&google.Config{
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			URLs:           cfg.URLs,
			CallbackPath:   cfg.CallbackPath,
			Scopes:         cfg.Scopes,
			StateTTL:       cfg.StateTTL,
			HTTPClient:     cfg.HTTPClient,
			RequestTimeout: cfg.RequestTimeout,
		})
	case providers.KindOIDC:
		return oidc.NewAdapter(&oidc.Config{
			IssuerURL:      cfg.IssuerURL,
			ClientID:       cfg.ClientID,
			ClientSecret:   cfg.ClientSecret,
			URLs:           cfg.URLs,
			CallbackPath:   cfg.CallbackPath,
			Scopes:         cfg.Scopes,
			StateTTL:       cfg.StateTTL,
			HTTPClient:     cfg.HTTPClient,
			RequestTimeout: cfg.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider kind %q", kind)
	}
}
