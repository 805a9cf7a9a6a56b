// Package oidc implements the provider adapter for generic OpenID Connect
// issuers (Keycloak, Dex, and compatible). Endpoints come from OIDC
// discovery rather than hard-wired constants.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-authbridge/providers"
)

// Compile-time check that Adapter implements the providers.Adapter interface.
var _ providers.Adapter = (*Adapter)(nil)

const adapterName = "oidc"

// DefaultCallbackPath is the callback path routed to this adapter unless
// overridden in Config.
const DefaultCallbackPath = "/oidc/callback"

// defaultScopes is the minimum scope set for OIDC identities.
var defaultScopes = []string{"openid", "profile", "email"}

// Adapter implements providers.Adapter for generic OIDC issuers.
type Adapter struct {
	config         *oauth2.Config
	discovery      *DiscoveryClient
	issuerURL      string
	userinfoURL    string
	states         *providers.StateStore
	urls           providers.CallbackURLBuilder
	callbackPath   string
	httpClient     *http.Client
	requestTimeout time.Duration
}

// Config holds generic OIDC configuration.
type Config struct {
	// IssuerURL is the OIDC issuer (required), e.g. a Keycloak realm URL.
	IssuerURL string

	// ClientID is the OAuth client ID (required).
	ClientID string

	// ClientSecret is the OAuth client secret (required).
	ClientSecret string

	// URLs resolves the adapter's callback path to an absolute URL (required).
	URLs providers.CallbackURLBuilder

	// CallbackPath overrides DefaultCallbackPath.
	CallbackPath string

	// Scopes are optional custom scopes (defaults to ["openid", "profile", "email"]).
	Scopes []string

	// StateTTL bounds pending authorization states (default: 10 minutes).
	StateTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for issuer API calls (default: 30s).
	RequestTimeout time.Duration

	// DiscoveryCacheTTL overrides the discovery document cache TTL.
	DiscoveryCacheTTL time.Duration
}

// NewAdapter creates a new generic OIDC adapter. It performs discovery
// against the issuer and fails fast when required configuration is
// missing or the issuer is unreachable.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("oidc: issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oidc: client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oidc: client secret is required")
	}
	if cfg.URLs == nil {
		return nil, fmt.Errorf("oidc: callback URL builder is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	scopesCopy := make([]string, len(scopes))
	copy(scopesCopy, scopes)

	callbackPath := cfg.CallbackPath
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	discovery := NewDiscoveryClient(httpClient, cfg.DiscoveryCacheTTL)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	doc, err := discovery.Discover(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc: discovery against %s failed: %w", cfg.IssuerURL, err)
	}

	return &Adapter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopesCopy,
			Endpoint: oauth2.Endpoint{
				AuthURL:  doc.AuthorizationEndpoint,
				TokenURL: doc.TokenEndpoint,
			},
		},
		discovery:      discovery,
		issuerURL:      cfg.IssuerURL,
		userinfoURL:    doc.UserInfoEndpoint,
		states:         providers.NewStateStore(cfg.StateTTL),
		urls:           cfg.URLs,
		callbackPath:   callbackPath,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
	}, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return adapterName
}

// CallbackPath returns the path the transport layer routes to this adapter.
func (a *Adapter) CallbackPath() string {
	return a.callbackPath
}

// BuildAuthorizeURL records the pending authorization and returns the
// issuer's authorize URL.
func (a *Adapter) BuildAuthorizeURL(clientID string, params providers.AuthorizeParams) (string, error) {
	callbackURL, err := a.urls.CallbackURL(a.callbackPath)
	if err != nil {
		return "", fmt.Errorf("oidc: resolving callback URL: %w", err)
	}

	st := a.states.Begin(clientID, callbackURL, params)

	cfg := *a.config
	cfg.RedirectURL = callbackURL
	if len(params.Scopes) > 0 {
		cfg.Scopes = append([]string(nil), params.Scopes...)
	}

	return cfg.AuthCodeURL(st.State), nil
}

// ExchangeCode exchanges the issuer's code for a token using the standard
// form-encoded token request.
func (a *Adapter) ExchangeCode(ctx context.Context, code string, st *providers.AuthorizeState) (*providers.ExternalIdentity, error) {
	if st == nil {
		return nil, providers.ErrInvalidState
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	cfg := *a.config
	cfg.RedirectURL = st.CallbackURL
	token, err := providers.ExchangeAuthCode(ctx, &cfg, a.httpClient, adapterName, code)
	if err != nil {
		return nil, err
	}

	return &providers.ExternalIdentity{
		SubjectID: st.ClientID,
		Scopes:    append([]string(nil), defaultScopes...),
		Token:     token.AccessToken,
		Provider:  adapterName,
	}, nil
}

// GetUserContext fetches the issuer's userinfo endpoint. The subject id
// is the "sub" claim; "preferred_username" becomes the username.
func (a *Adapter) GetUserContext(ctx context.Context, token string) (*providers.UserContext, error) {
	if a.userinfoURL == "" {
		return nil, &providers.ProfileError{
			Provider: adapterName,
			Err:      fmt.Errorf("issuer %s advertises no userinfo endpoint", a.issuerURL),
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userinfoURL, nil)
	if err != nil {
		return nil, &providers.ProfileError{Provider: adapterName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &providers.ProfileError{Provider: adapterName, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.ProfileError{Provider: adapterName, Status: resp.StatusCode}
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &providers.ProfileError{Provider: adapterName, Err: err}
	}

	uc := &providers.UserContext{
		Provider: adapterName,
		Raw:      raw,
	}
	if sub, ok := raw["sub"].(string); ok {
		uc.ID = sub
	}
	if username, ok := raw["preferred_username"].(string); ok {
		uc.Username = username
	}
	if email, ok := raw["email"].(string); ok {
		uc.Email = email
	}
	if name, ok := raw["name"].(string); ok {
		uc.DisplayName = name
	}
	if picture, ok := raw["picture"].(string); ok {
		uc.AvatarURL = picture
	}

	return uc, nil
}

// State returns the pending state without consuming it.
func (a *Adapter) State(state string) (*providers.AuthorizeState, bool) {
	return a.states.Get(state)
}

// ConsumeState atomically removes and returns the pending state.
func (a *Adapter) ConsumeState(state string) (*providers.AuthorizeState, bool) {
	return a.states.Consume(state)
}

// CleanupState removes the state.
func (a *Adapter) CleanupState(state string) {
	a.states.Delete(state)
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.requestTimeout)
}
