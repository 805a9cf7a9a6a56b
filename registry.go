package authbridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/mcp-authbridge/security"
	"github.com/giantswarm/mcp-authbridge/storage"
)

// CredentialRegistry is the in-memory cache of clients, authorization
// codes, access tokens, and the external-token mapping. It reads through
// and writes through to a storage.Backend; the cache is the source of
// truth and the backend a durable mirror.
//
// A single mutex guards all four maps so that lookup-then-mutate
// sequences (consuming a code, re-keying the external mapping) are
// atomic. Backend I/O always happens outside the lock.
type CredentialRegistry struct {
	mu       sync.Mutex
	clients  map[string]*storage.Client
	codes    map[string]*storage.AuthorizationCode
	tokens   map[string]*storage.AccessToken
	external map[string]string // internal code/token value -> external token

	backend storage.Backend
	logger  *slog.Logger
	grace   time.Duration
}

// NewCredentialRegistry creates a registry backed by the given storage.
// A nil backend degrades to memory-only operation via storage.NullBackend.
func NewCredentialRegistry(backend storage.Backend, logger *slog.Logger) *CredentialRegistry {
	if backend == nil {
		backend = storage.NewNullBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialRegistry{
		clients:  make(map[string]*storage.Client),
		codes:    make(map[string]*storage.AuthorizationCode),
		tokens:   make(map[string]*storage.AccessToken),
		external: make(map[string]string),
		backend:  backend,
		logger:   logger,
		grace:    security.DefaultClockSkewGracePeriod,
	}
}

// SetClockSkewGracePeriod adjusts the grace period applied to expiry
// checks at lookup time. The grace widens the acceptance window: a
// credential is honored until its recorded expiry plus the grace
// period, not just until the expiry itself.
func (r *CredentialRegistry) SetClockSkewGracePeriod(grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grace = grace
}

func (r *CredentialRegistry) gracePeriod() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grace
}

// PutClient stores a client in the cache and mirrors it to the backend.
// A backend write failure is logged and does not fail the operation.
func (r *CredentialRegistry) PutClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return errors.New("client with a non-empty ID is required")
	}

	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()

	if err := r.backend.StoreClient(ctx, client); err != nil {
		r.logger.Warn("Failed to persist client, continuing with in-memory state",
			"client_id", client.ID,
			"error", err)
	}
	return nil
}

// Client retrieves a client by ID, falling back to the backend on a
// cache miss. Backend read failures are treated as a miss.
func (r *CredentialRegistry) Client(ctx context.Context, clientID string) (*storage.Client, error) {
	r.mu.Lock()
	if client, ok := r.clients[clientID]; ok {
		r.mu.Unlock()
		return client, nil
	}
	r.mu.Unlock()

	client, err := r.backend.LoadClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("Failed to load client from persistence",
				"client_id", clientID,
				"error", err)
		}
		return nil, ErrNotFound
	}

	r.mu.Lock()
	r.clients[client.ID] = client
	r.mu.Unlock()
	return client, nil
}

// Clients lists all known clients, merging the backend's view with the
// cache. The cache wins on conflicts.
func (r *CredentialRegistry) Clients(ctx context.Context) ([]*storage.Client, error) {
	merged := make(map[string]*storage.Client)

	persisted, err := r.backend.ListClients(ctx)
	if err != nil {
		r.logger.Warn("Failed to list clients from persistence, using in-memory state only",
			"error", err)
	} else {
		for _, c := range persisted {
			merged[c.ID] = c
		}
	}

	r.mu.Lock()
	for id, c := range r.clients {
		merged[id] = c
	}
	r.mu.Unlock()

	clients := make([]*storage.Client, 0, len(merged))
	for _, c := range merged {
		clients = append(clients, c)
	}
	return clients, nil
}

// PutCode stores an authorization code together with the external token
// it was derived from. The external mapping lives in memory only; its
// lifetime is bounded by the code's own expiry.
func (r *CredentialRegistry) PutCode(ctx context.Context, code *storage.AuthorizationCode, externalToken string) error {
	if code == nil || code.Code == "" {
		return errors.New("authorization code with a non-empty value is required")
	}

	r.mu.Lock()
	r.codes[code.Code] = code
	if externalToken != "" {
		r.external[code.Code] = externalToken
	}
	r.mu.Unlock()

	if err := r.backend.StoreAuthCode(ctx, code); err != nil {
		r.logger.Warn("Failed to persist authorization code, continuing with in-memory state",
			"client_id", code.ClientID,
			"error", err)
	}
	return nil
}

// Code retrieves an authorization code, falling back to the backend on
// a cache miss. Expired codes are deleted and reported as not found.
func (r *CredentialRegistry) Code(ctx context.Context, value string) (*storage.AuthorizationCode, error) {
	grace := r.gracePeriod()

	r.mu.Lock()
	if code, ok := r.codes[value]; ok {
		if security.IsExpiredWithGracePeriod(code.ExpiresAt, grace) {
			delete(r.codes, value)
			delete(r.external, value)
			r.mu.Unlock()
			r.deleteAuthCodeFromBackend(ctx, value)
			return nil, ErrNotFound
		}
		r.mu.Unlock()
		return code, nil
	}
	r.mu.Unlock()

	code, err := r.backend.LoadAuthCode(ctx, value)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("Failed to load authorization code from persistence", "error", err)
		}
		return nil, ErrNotFound
	}
	if security.IsExpiredWithGracePeriod(code.ExpiresAt, grace) {
		r.deleteAuthCodeFromBackend(ctx, value)
		return nil, ErrNotFound
	}

	// A code recovered from persistence has no external-token mapping;
	// the mapping is never persisted.
	r.mu.Lock()
	r.codes[code.Code] = code
	r.mu.Unlock()
	return code, nil
}

// Exchange atomically consumes an authorization code and records the
// access token minted for it, re-keying the external-token mapping from
// the code to the token. Returns ErrNotFound if the code was already
// consumed or has expired, guaranteeing a code is exchanged at most
// once even under concurrent attempts.
func (r *CredentialRegistry) Exchange(ctx context.Context, codeValue string, token *storage.AccessToken) error {
	if token == nil || token.Token == "" {
		return errors.New("access token with a non-empty value is required")
	}
	grace := r.gracePeriod()

	r.mu.Lock()
	code, ok := r.codes[codeValue]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if security.IsExpiredWithGracePeriod(code.ExpiresAt, grace) {
		delete(r.codes, codeValue)
		delete(r.external, codeValue)
		r.mu.Unlock()
		r.deleteAuthCodeFromBackend(ctx, codeValue)
		return ErrNotFound
	}

	delete(r.codes, codeValue)
	r.tokens[token.Token] = token
	if ext, ok := r.external[codeValue]; ok {
		delete(r.external, codeValue)
		r.external[token.Token] = ext
	}
	r.mu.Unlock()

	r.deleteAuthCodeFromBackend(ctx, codeValue)
	if err := r.backend.StoreToken(ctx, token); err != nil {
		r.logger.Warn("Failed to persist access token, continuing with in-memory state",
			"client_id", token.ClientID,
			"error", err)
	}
	return nil
}

// Token retrieves an access token record, falling back to the backend
// on a cache miss. Expired tokens are deleted and reported as not found.
func (r *CredentialRegistry) Token(ctx context.Context, value string) (*storage.AccessToken, error) {
	grace := r.gracePeriod()

	r.mu.Lock()
	if token, ok := r.tokens[value]; ok {
		if security.IsExpiredWithGracePeriod(token.ExpiresAt, grace) {
			delete(r.tokens, value)
			delete(r.external, value)
			r.mu.Unlock()
			r.deleteTokenFromBackend(ctx, value)
			return nil, ErrNotFound
		}
		r.mu.Unlock()
		return token, nil
	}
	r.mu.Unlock()

	token, err := r.backend.LoadToken(ctx, value)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("Failed to load access token from persistence", "error", err)
		}
		return nil, ErrNotFound
	}
	if security.IsExpiredWithGracePeriod(token.ExpiresAt, grace) {
		r.deleteTokenFromBackend(ctx, value)
		return nil, ErrNotFound
	}

	r.mu.Lock()
	r.tokens[token.Token] = token
	r.mu.Unlock()
	return token, nil
}

// DeleteToken removes an access token and its external-token mapping
// from cache and persistence. Deleting an unknown token is not an error.
func (r *CredentialRegistry) DeleteToken(ctx context.Context, value string) error {
	r.mu.Lock()
	delete(r.tokens, value)
	delete(r.external, value)
	r.mu.Unlock()

	r.deleteTokenFromBackend(ctx, value)
	return nil
}

// ExternalToken returns the external provider token recorded for an
// internal code or token value.
func (r *CredentialRegistry) ExternalToken(internalKey string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext, ok := r.external[internalKey]
	return ext, ok
}

func (r *CredentialRegistry) deleteAuthCodeFromBackend(ctx context.Context, value string) {
	if err := r.backend.DeleteAuthCode(ctx, value); err != nil {
		r.logger.Warn("Failed to delete authorization code from persistence", "error", err)
	}
}

func (r *CredentialRegistry) deleteTokenFromBackend(ctx context.Context, value string) {
	if err := r.backend.DeleteToken(ctx, value); err != nil {
		r.logger.Warn("Failed to delete access token from persistence", "error", err)
	}
}
