// Package storage defines the persistence contract for registered
// clients, issued authorization codes, and issued access tokens, plus the
// entity types that cross it. Persistence is a secondary durable mirror:
// the in-memory credential registry is always the source of truth, and
// every Backend operation is individually fallible without aborting the
// calling operation.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load* methods when the requested item does
// not exist in the backend.
var ErrNotFound = errors.New("storage: not found")

// Backend is the durable mirror behind the credential registry. All
// methods take a context; implementations must not retry indefinitely,
// since callers treat failures as degraded operation, not fatal errors.
type Backend interface {
	// StoreClient persists a registered client.
	StoreClient(ctx context.Context, client *Client) error

	// LoadClient retrieves a client by ID, ErrNotFound when absent.
	LoadClient(ctx context.Context, clientID string) (*Client, error)

	// ListClients lists all persisted clients.
	ListClients(ctx context.Context) ([]*Client, error)

	// StoreToken persists an issued access token.
	StoreToken(ctx context.Context, token *AccessToken) error

	// LoadToken retrieves an access token by value, ErrNotFound when absent.
	LoadToken(ctx context.Context, token string) (*AccessToken, error)

	// DeleteToken removes an access token. Deleting an absent token is
	// not an error.
	DeleteToken(ctx context.Context, token string) error

	// StoreAuthCode persists an issued authorization code.
	StoreAuthCode(ctx context.Context, code *AuthorizationCode) error

	// LoadAuthCode retrieves an authorization code by value, ErrNotFound
	// when absent.
	LoadAuthCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthCode removes an authorization code. Deleting an absent
	// code is not an error.
	DeleteAuthCode(ctx context.Context, code string) error
}

// Client is a registered internal OAuth2 client.
type Client struct {
	// ID is the unique client identifier.
	ID string

	// SecretHash is the bcrypt hash of the client secret. Empty for
	// public clients.
	SecretHash string

	// RedirectURIs are the client's registered redirect URIs. Each must
	// be a well-formed absolute URL or the client fails to load.
	RedirectURIs []string

	// GrantTypes are the grant types the client may use.
	GrantTypes []string

	// ResponseTypes are the response types the client may use.
	ResponseTypes []string

	// Scope is the client's space-joined scope.
	Scope string

	// Name is the human-readable client name.
	Name string

	// CreatedAt is when the client was registered.
	CreatedAt time.Time
}

// AuthorizationCode is an internal, single-use code exchanged for an
// access token. The value carries the mcp_ prefix; the recorded client ID
// must match the client presenting the code at exchange time.
type AuthorizationCode struct {
	Code                          string
	ClientID                      string
	RedirectURI                   string
	RedirectURIProvidedExplicitly bool
	CodeChallenge                 string
	Scopes                        []string
	CreatedAt                     time.Time
	ExpiresAt                     time.Time
}

// AccessToken is an internal, client-scoped bearer credential. A zero
// ExpiresAt means the token does not expire.
type AccessToken struct {
	Token     string
	ClientID  string
	Scopes    []string
	CreatedAt time.Time
	ExpiresAt time.Time
}
