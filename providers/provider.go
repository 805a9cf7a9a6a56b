package providers

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies a supported provider dialect. New dialects require a
// new adapter implementation; there is no string-driven dispatch.
type Kind string

// Supported provider kinds.
const (
	KindGitHub     Kind = "github"
	KindAtlassian  Kind = "atlassian"
	KindSalesforce Kind = "salesforce"
	KindGoogle     Kind = "google"
	KindOIDC       Kind = "oidc"
)

// ErrInvalidState is returned when a callback presents a state token that
// was never issued, already consumed, or has expired.
var ErrInvalidState = errors.New("invalid or expired state parameter")

// Adapter speaks one provider's dialect of OAuth2. Implementations own
// their pending-state store and must be safe for concurrent use: many
// authorize/callback pairs for the same provider run at once.
type Adapter interface {
	// Name returns the provider name (e.g., "github", "atlassian").
	Name() string

	// CallbackPath is the fixed URL path the transport layer must route to
	// this adapter's callback handler.
	CallbackPath() string

	// BuildAuthorizeURL validates provider configuration, records an
	// AuthorizeState for the request (generating a CSRF state token when
	// the caller supplied none), and returns the fully-formed authorize
	// URL including the provider's required query parameters.
	BuildAuthorizeURL(clientID string, params AuthorizeParams) (string, error)

	// ExchangeCode exchanges the provider's authorization code for the
	// provider token, using the callback URL recorded on the consumed
	// state as the redirect URI. Returns ErrInvalidState when st is nil
	// and an *ExchangeError carrying the upstream error code and
	// description when the token endpoint rejects the exchange.
	ExchangeCode(ctx context.Context, code string, st *AuthorizeState) (*ExternalIdentity, error)

	// GetUserContext fetches the provider's profile endpoint with the
	// external token and maps the provider-specific fields into the
	// normalized shape.
	GetUserContext(ctx context.Context, token string) (*UserContext, error)

	// State returns the pending AuthorizeState recorded for a state token,
	// without consuming it.
	State(state string) (*AuthorizeState, bool)

	// ConsumeState atomically removes and returns the AuthorizeState for a
	// state token. The callback must consume the state before the upstream
	// exchange so that a replayed state token loses, success or failure;
	// states are never reused.
	ConsumeState(state string) (*AuthorizeState, bool)

	// CleanupState removes the AuthorizeState for a state token that will
	// not be consumed, such as an abandoned flow cancelled by the
	// embedding application.
	CleanupState(state string)
}

// CallbackURLBuilder resolves an adapter's callback path into an absolute
// URL. Host, port, and scheme settings belong to the embedding
// application, so the capability is injected rather than derived here.
type CallbackURLBuilder interface {
	CallbackURL(path string) (string, error)
}

// BaseURLBuilder is a CallbackURLBuilder that joins paths onto a fixed
// base URL. Suitable for single-host deployments and tests.
type BaseURLBuilder struct {
	Base string
}

// CallbackURL joins path onto the base URL.
func (b BaseURLBuilder) CallbackURL(path string) (string, error) {
	if b.Base == "" {
		return "", fmt.Errorf("base URL is not configured")
	}
	base := b.Base
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if len(path) == 0 || path[0] != '/' {
		path = "/" + path
	}
	return base + path, nil
}

// AuthorizeParams carries the already-parsed parameters of an authorize
// request. Transport-level parsing happens upstream.
type AuthorizeParams struct {
	// RedirectURI is the internal client's redirect URI.
	RedirectURI string

	// RedirectURIProvidedExplicitly records whether the client supplied
	// the redirect URI itself or it was defaulted from its registration.
	RedirectURIProvidedExplicitly bool

	// State is the client's CSRF state token. Empty means the adapter
	// generates one.
	State string

	// CodeChallenge is the client's PKCE code challenge, if any.
	CodeChallenge string

	// Scopes are the scopes requested from the provider. Empty means the
	// adapter's defaults.
	Scopes []string
}

// ExternalIdentity is the result of exchanging a code with the provider.
// It is ephemeral: the orchestrator consumes it immediately to mint an
// internal authorization code.
type ExternalIdentity struct {
	// SubjectID is the requesting internal client's ID. The provider token
	// is not yet tied to a verified end-user profile at exchange time, so
	// the subject is the client, not a profile field.
	SubjectID string

	// Scopes are the granted scopes, defaulted to the adapter's minimum.
	Scopes []string

	// Token is the raw external token. It is never exposed to internal
	// clients.
	Token string

	// Provider is the adapter name that produced this identity.
	Provider string
}

// UserContext is the normalized identity surfaced to the rest of the
// platform. Immutable once constructed; field mapping is each adapter's
// sole responsibility.
type UserContext struct {
	Provider    string
	ID          string
	Username    string
	Email       string
	DisplayName string
	AvatarURL   string

	// Raw is the provider's profile document as decoded JSON, for
	// downstream consumers that need provider-specific fields.
	Raw map[string]any
}

// ExchangeError reports a failed exchange at the provider's token
// endpoint, carrying the upstream OAuth error code and description.
type ExchangeError struct {
	Provider    string
	Code        string // upstream "error" field, if any
	Description string // upstream "error_description" field, if any
	Status      int    // upstream HTTP status
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s token exchange failed: %s: %s", e.Provider, e.Code, e.Description)
	}
	return fmt.Sprintf("%s token exchange failed with status %d", e.Provider, e.Status)
}

// ProfileError reports a failed call to a provider's identity endpoint.
type ProfileError struct {
	Provider string
	Status   int
	Err      error
}

// Error implements the error interface.
func (e *ProfileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s profile fetch failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s profile fetch failed with status %d", e.Provider, e.Status)
}

// Unwrap returns the underlying transport error, if any.
func (e *ProfileError) Unwrap() error {
	return e.Err
}
