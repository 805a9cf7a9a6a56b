// Package salesforce implements the provider adapter for Salesforce
// connected apps.
package salesforce

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

const adapterName = "salesforce"

// DefaultCallbackPath is the callback path routed to this adapter unless
// overridden in Config.
const DefaultCallbackPath = "/salesforce/callback"

// DefaultLoginURL is the production Salesforce login host. Sandboxes use
// https://test.salesforce.com.
const DefaultLoginURL = "https://login.salesforce.com"

// defaultScopes is the minimum scope set for Salesforce identities.
var defaultScopes = []string{"id", "api"}

// Adapter implements providers.Adapter for Salesforce.
type Adapter struct {
	config         *oauth2.Config
	states         *providers.StateStore
	urls           providers.CallbackURLBuilder
	callbackPath   string
	httpClient     *http.Client
	requestTimeout time.Duration
	userinfoURL    string
}

// Config holds Salesforce OAuth configuration.
type Config struct {
	// ClientID is the connected app consumer key (required).
	ClientID string

	// ClientSecret is the connected app consumer secret (required).
	ClientSecret string

	// URLs resolves the adapter's callback path to an absolute URL (required).
	URLs providers.CallbackURLBuilder

	// CallbackPath overrides DefaultCallbackPath.
	CallbackPath string

	// LoginURL overrides DefaultLoginURL, e.g. for sandboxes or My Domain.
	LoginURL string

	// Scopes are optional custom scopes (defaults to ["id", "api"]).
	Scopes []string

	// StateTTL bounds pending authorization states (default: 10 minutes).
	StateTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for Salesforce API calls (default: 30s).
	RequestTimeout time.Duration
}

// NewAdapter creates a new Salesforce adapter. It fails fast when
// required credentials are missing.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("salesforce: client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("salesforce: client secret is required")
	}
	if cfg.URLs == nil {
		return nil, fmt.Errorf("salesforce: callback URL builder is required")
	}

	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = DefaultLoginURL
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
			Endpoint: oauth2.Endpoint{
				AuthURL:  loginURL + "/services/oauth2/authorize",
				TokenURL: loginURL + "/services/oauth2/token",
			},
		},
		states:         providers.NewStateStore(cfg.StateTTL),
		urls:           cfg.URLs,
		callbackPath:   callbackPath,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		userinfoURL:    loginURL + "/services/oauth2/userinfo",
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
// Salesforce authorize URL.
func (a *Adapter) BuildAuthorizeURL(clientID string, params providers.AuthorizeParams) (string, error) {
	callbackURL, err := a.urls.CallbackURL(a.callbackPath)
	if err != nil {
		return "", fmt.Errorf("salesforce: resolving callback URL: %w", err)
	}

	st := a.states.Begin(clientID, callbackURL, params)

	cfg := *a.config
	cfg.RedirectURL = callbackURL
	if len(params.Scopes) > 0 {
		cfg.Scopes = append([]string(nil), params.Scopes...)
	}

	return cfg.AuthCodeURL(st.State), nil
}

// ExchangeCode exchanges the Salesforce code for a token using the
// standard form-encoded token request.
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

// GetUserContext fetches the Salesforce userinfo document. The subject id
// is the "user_id" field, not the OIDC "sub" URL form.
func (a *Adapter) GetUserContext(ctx context.Context, token string) (*providers.UserContext, error) {
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
	if id, ok := raw["user_id"].(string); ok {
		uc.ID = id
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
