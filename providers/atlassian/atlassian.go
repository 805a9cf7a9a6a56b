// Package atlassian implements the provider adapter for Atlassian
// (Jira/Confluence cloud) 3LO OAuth.
package atlassian

import (
	"bytes"
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

const adapterName = "atlassian"

// DefaultCallbackPath is the callback path routed to this adapter unless
// overridden in Config.
const DefaultCallbackPath = "/atlassian/callback"

// Atlassian endpoints. The token endpoint accepts a JSON request body,
// not the form encoding most providers use.
const (
	authorizeEndpoint = "https://auth.atlassian.com/authorize"
	tokenEndpoint     = "https://auth.atlassian.com/oauth/token"
	meEndpoint        = "https://api.atlassian.com/me"
)

// requiredAudience is the audience parameter Atlassian requires on every
// authorize request. A dialect constant, not configuration.
const requiredAudience = "api.atlassian.com"

// defaultScopes is the minimum scope set for Atlassian identities.
var defaultScopes = []string{"read:me"}

// Adapter implements providers.Adapter for Atlassian.
type Adapter struct {
	config         *oauth2.Config
	states         *providers.StateStore
	urls           providers.CallbackURLBuilder
	callbackPath   string
	httpClient     *http.Client
	requestTimeout time.Duration

	// endpoint overrides for tests
	tokenURL string
	meURL    string
}

// Config holds Atlassian OAuth configuration.
type Config struct {
	// ClientID is the Atlassian app client ID (required).
	ClientID string

	// ClientSecret is the Atlassian app client secret (required).
	ClientSecret string

	// URLs resolves the adapter's callback path to an absolute URL (required).
	URLs providers.CallbackURLBuilder

	// CallbackPath overrides DefaultCallbackPath.
	CallbackPath string

	// Scopes are optional custom scopes (defaults to ["read:me"]).
	Scopes []string

	// StateTTL bounds pending authorization states (default: 10 minutes).
	StateTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout is the timeout for Atlassian API calls (default: 30s).
	RequestTimeout time.Duration

	// TokenEndpoint and MeEndpoint override the Atlassian endpoints.
	// Intended for tests against local servers.
	TokenEndpoint string
	MeEndpoint    string
}

// NewAdapter creates a new Atlassian adapter. It fails fast when required
// credentials are missing.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("atlassian: client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("atlassian: client secret is required")
	}
	if cfg.URLs == nil {
		return nil, fmt.Errorf("atlassian: callback URL builder is required")
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

	tokenURL := cfg.TokenEndpoint
	if tokenURL == "" {
		tokenURL = tokenEndpoint
	}
	meURL := cfg.MeEndpoint
	if meURL == "" {
		meURL = meEndpoint
	}

	return &Adapter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopesCopy,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authorizeEndpoint,
				TokenURL: tokenURL,
			},
		},
		states:         providers.NewStateStore(cfg.StateTTL),
		urls:           cfg.URLs,
		callbackPath:   callbackPath,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		tokenURL:       tokenURL,
		meURL:          meURL,
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
// Atlassian authorize URL. Atlassian requires the audience parameter and
// a forced consent prompt on every request.
func (a *Adapter) BuildAuthorizeURL(clientID string, params providers.AuthorizeParams) (string, error) {
	callbackURL, err := a.urls.CallbackURL(a.callbackPath)
	if err != nil {
		return "", fmt.Errorf("atlassian: resolving callback URL: %w", err)
	}

	st := a.states.Begin(clientID, callbackURL, params)

	cfg := *a.config
	cfg.RedirectURL = callbackURL
	if len(params.Scopes) > 0 {
		cfg.Scopes = append([]string(nil), params.Scopes...)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("audience", requiredAudience),
		oauth2.SetAuthURLParam("prompt", "consent"),
	}

	return cfg.AuthCodeURL(st.State, opts...), nil
}

// tokenRequest is the JSON body Atlassian's token endpoint expects.
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
}

// tokenResponse covers both the success and error shapes of the token
// endpoint response.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode exchanges the Atlassian code for a token. Unlike most
// providers the token endpoint takes a JSON body, so the exchange is a
// hand-rolled POST rather than an oauth2.Config.Exchange call.
func (a *Adapter) ExchangeCode(ctx context.Context, code string, st *providers.AuthorizeState) (*providers.ExternalIdentity, error) {
	if st == nil {
		return nil, providers.ErrInvalidState
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(tokenRequest{
		GrantType:    "authorization_code",
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		Code:         code,
		RedirectURI:  st.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("atlassian: encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("atlassian: creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("atlassian: token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("atlassian: decoding token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return nil, &providers.ExchangeError{
			Provider:    adapterName,
			Code:        tr.Error,
			Description: tr.ErrorDescription,
			Status:      resp.StatusCode,
		}
	}

	return &providers.ExternalIdentity{
		SubjectID: st.ClientID,
		Scopes:    append([]string(nil), defaultScopes...),
		Token:     tr.AccessToken,
		Provider:  adapterName,
	}, nil
}

// GetUserContext fetches the Atlassian "me" document. The subject id is
// the "account_id" field.
func (a *Adapter) GetUserContext(ctx context.Context, token string) (*providers.UserContext, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.meURL, nil)
	if err != nil {
		return nil, &providers.ProfileError{Provider: adapterName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

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
	if id, ok := raw["account_id"].(string); ok {
		uc.ID = id
	}
	if nickname, ok := raw["nickname"].(string); ok {
		uc.Username = nickname
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
