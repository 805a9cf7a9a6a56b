// Package google implements the provider adapter for Google OAuth.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/giantswarm/mcp-authbridge/providers"
)

// Compile-time check that Adapter implements the providers.Adapter interface.
var _ providers.Adapter = (*Adapter)(nil)

const adapterName = "google"

// DefaultCallbackPath is the callback path routed to this adapter unless
// overridden in Config.
const DefaultCallbackPath = "/google/callback"

// defaultUserinfoEndpoint is Google's OIDC userinfo endpoint.
const defaultUserinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"

// defaultScopes is the minimum scope set for Google identities.
var defaultScopes = []string{"openid", "profile", "email"}

// Adapter implements providers.Adapter for Google.
type Adapter struct {
	config           *oauth2.Config
	states           *providers.StateStore
	urls             providers.CallbackURLBuilder
	callbackPath     string
	userinfoEndpoint string
	httpClient       *http.Client
	requestTimeout   time.Duration
}

// Config holds Google OAuth configuration.
type Config struct {
	// ClientID is the Google OAuth client ID (required).
	ClientID string

	// ClientSecret is the Google OAuth client secret (required).
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

	// RequestTimeout is the timeout for Google API calls (default: 30s).
	RequestTimeout time.Duration
}

// NewAdapter creates a new Google adapter. It fails fast when required
// credentials are missing.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google: client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google: client secret is required")
	}
	if cfg.URLs == nil {
		return nil, fmt.Errorf("google: callback URL builder is required")
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

	return &Adapter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopesCopy,
			Endpoint:     oauthgoogle.Endpoint,
		},
		states:           providers.NewStateStore(cfg.StateTTL),
		urls:             cfg.URLs,
		callbackPath:     callbackPath,
		userinfoEndpoint: defaultUserinfoEndpoint,
		httpClient:       httpClient,
		requestTimeout:   requestTimeout,
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
// Google authorize URL. Google requires offline access and a forced
// consent prompt so a refresh-capable provider token is always issued;
// these are dialect constants, not configuration.
func (a *Adapter) BuildAuthorizeURL(clientID string, params providers.AuthorizeParams) (string, error) {
	callbackURL, err := a.urls.CallbackURL(a.callbackPath)
	if err != nil {
		return "", fmt.Errorf("google: resolving callback URL: %w", err)
	}

	st := a.states.Begin(clientID, callbackURL, params)

	cfg := *a.config
	cfg.RedirectURL = callbackURL
	if len(params.Scopes) > 0 {
		cfg.Scopes = append([]string(nil), params.Scopes...)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	}

	return cfg.AuthCodeURL(st.State, opts...), nil
}

// ExchangeCode exchanges the Google code for a token using the standard
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

// GetUserContext fetches the OIDC userinfo document. The subject id is
// the "sub" claim.
func (a *Adapter) GetUserContext(ctx context.Context, token string) (*providers.UserContext, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userinfoEndpoint, nil)
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
	if email, ok := raw["email"].(string); ok {
		uc.Email = email
		uc.Username = email
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
