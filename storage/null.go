package storage

import "context"

// NullBackend is the Backend used when no durable persistence is
// configured. Writes succeed and are discarded; reads report ErrNotFound.
// Modeling "no persistence" as a backend keeps the registry free of
// is-persistence-configured branches.
type NullBackend struct{}

// Compile-time check that NullBackend implements Backend.
var _ Backend = NullBackend{}

// NewNullBackend returns the no-op backend.
func NewNullBackend() NullBackend {
	return NullBackend{}
}

// StoreClient discards the client.
func (NullBackend) StoreClient(context.Context, *Client) error { return nil }

// LoadClient reports ErrNotFound.
func (NullBackend) LoadClient(context.Context, string) (*Client, error) {
	return nil, ErrNotFound
}

// ListClients returns no clients.
func (NullBackend) ListClients(context.Context) ([]*Client, error) { return nil, nil }

// StoreToken discards the token.
func (NullBackend) StoreToken(context.Context, *AccessToken) error { return nil }

// LoadToken reports ErrNotFound.
func (NullBackend) LoadToken(context.Context, string) (*AccessToken, error) {
	return nil, ErrNotFound
}

// DeleteToken does nothing.
func (NullBackend) DeleteToken(context.Context, string) error { return nil }

// StoreAuthCode discards the code.
func (NullBackend) StoreAuthCode(context.Context, *AuthorizationCode) error { return nil }

// LoadAuthCode reports ErrNotFound.
func (NullBackend) LoadAuthCode(context.Context, string) (*AuthorizationCode, error) {
	return nil, ErrNotFound
}

// DeleteAuthCode does nothing.
func (NullBackend) DeleteAuthCode(context.Context, string) error { return nil }
