// Package mock provides an in-memory Backend with failure injection for
// testing read-through, write-through, and degraded operation.
package mock

import (
	"context"
	"sync"

	"github.com/giantswarm/mcp-authbridge/storage"
)

// Compile-time check that Backend implements storage.Backend.
var _ storage.Backend = (*Backend)(nil)

// Backend is an in-memory storage.Backend. Set FailWrites or FailReads
// to force every write or read to return that error.
type Backend struct {
	mu        sync.Mutex
	clients   map[string]*storage.Client
	tokens    map[string]*storage.AccessToken
	authCodes map[string]*storage.AuthorizationCode

	// FailWrites, when non-nil, is returned from every Store*/Delete* call.
	FailWrites error

	// FailReads, when non-nil, is returned from every Load*/List* call.
	FailReads error

	callCounts map[string]int
}

// NewBackend creates an empty mock backend.
func NewBackend() *Backend {
	return &Backend{
		clients:    make(map[string]*storage.Client),
		tokens:     make(map[string]*storage.AccessToken),
		authCodes:  make(map[string]*storage.AuthorizationCode),
		callCounts: make(map[string]int),
	}
}

// CallCount returns how many times a method was invoked.
func (b *Backend) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callCounts[method]
}

// StoreClient persists a client.
func (b *Backend) StoreClient(_ context.Context, client *storage.Client) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["StoreClient"]++
	if b.FailWrites != nil {
		return b.FailWrites
	}
	b.clients[client.ID] = client
	return nil
}

// LoadClient retrieves a client by ID.
func (b *Backend) LoadClient(_ context.Context, clientID string) (*storage.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["LoadClient"]++
	if b.FailReads != nil {
		return nil, b.FailReads
	}
	client, ok := b.clients[clientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return client, nil
}

// ListClients lists all persisted clients.
func (b *Backend) ListClients(_ context.Context) ([]*storage.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["ListClients"]++
	if b.FailReads != nil {
		return nil, b.FailReads
	}
	clients := make([]*storage.Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	return clients, nil
}

// StoreToken persists an access token.
func (b *Backend) StoreToken(_ context.Context, token *storage.AccessToken) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["StoreToken"]++
	if b.FailWrites != nil {
		return b.FailWrites
	}
	b.tokens[token.Token] = token
	return nil
}

// LoadToken retrieves an access token by value.
func (b *Backend) LoadToken(_ context.Context, token string) (*storage.AccessToken, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["LoadToken"]++
	if b.FailReads != nil {
		return nil, b.FailReads
	}
	t, ok := b.tokens[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

// DeleteToken removes an access token.
func (b *Backend) DeleteToken(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["DeleteToken"]++
	if b.FailWrites != nil {
		return b.FailWrites
	}
	delete(b.tokens, token)
	return nil
}

// StoreAuthCode persists an authorization code.
func (b *Backend) StoreAuthCode(_ context.Context, code *storage.AuthorizationCode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["StoreAuthCode"]++
	if b.FailWrites != nil {
		return b.FailWrites
	}
	b.authCodes[code.Code] = code
	return nil
}

// LoadAuthCode retrieves an authorization code by value.
func (b *Backend) LoadAuthCode(_ context.Context, code string) (*storage.AuthorizationCode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["LoadAuthCode"]++
	if b.FailReads != nil {
		return nil, b.FailReads
	}
	c, ok := b.authCodes[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

// DeleteAuthCode removes an authorization code.
func (b *Backend) DeleteAuthCode(_ context.Context, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callCounts["DeleteAuthCode"]++
	if b.FailWrites != nil {
		return b.FailWrites
	}
	delete(b.authCodes, code)
	return nil
}
