package providers

import (
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-authbridge/security"
)

// DefaultStateTTL bounds the lifetime of a pending authorization state.
// One browser round trip to the provider and back fits comfortably.
const DefaultStateTTL = 10 * time.Minute

// AuthorizeState is one pending authorize request, keyed by its CSRF
// state token. It is created by BuildAuthorizeURL, consumed exactly once
// by the callback, and never persisted.
type AuthorizeState struct {
	State                         string
	ClientID                      string
	CallbackURL                   string
	RedirectURI                   string
	RedirectURIProvidedExplicitly bool
	CodeChallenge                 string
	Scopes                        []string
	CreatedAt                     time.Time
	ExpiresAt                     time.Time
}

// StateStore is the per-adapter, mutex-guarded store of pending
// authorization states. The resolved callback URL is recorded on each
// state so the callback does not recompute it.
type StateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[string]*AuthorizeState
}

// NewStateStore creates a state store with the given TTL. Zero or
// negative means DefaultStateTTL.
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		ttl:    ttl,
		states: make(map[string]*AuthorizeState),
	}
}

// Begin records a pending authorization. When params.State is empty a
// fresh CSRF token is generated. Returns the stored state.
func (s *StateStore) Begin(clientID, callbackURL string, params AuthorizeParams) *AuthorizeState {
	state := params.State
	if state == "" {
		state = oauth2.GenerateVerifier()
	}

	now := time.Now()
	st := &AuthorizeState{
		State:                         state,
		ClientID:                      clientID,
		CallbackURL:                   callbackURL,
		RedirectURI:                   params.RedirectURI,
		RedirectURIProvidedExplicitly: params.RedirectURIProvidedExplicitly,
		CodeChallenge:                 params.CodeChallenge,
		Scopes:                        params.Scopes,
		CreatedAt:                     now,
		ExpiresAt:                     now.Add(s.ttl),
	}

	s.mu.Lock()
	s.states[state] = st
	s.mu.Unlock()

	return st
}

// Get returns the pending state without consuming it. Expired entries
// are deleted on lookup and reported as absent.
func (s *StateStore) Get(state string) (*AuthorizeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[state]
	if !ok {
		return nil, false
	}
	if security.IsExpired(st.ExpiresAt) {
		delete(s.states, state)
		return nil, false
	}
	return st, true
}

// Consume removes and returns the pending state under a single lock
// acquisition, so concurrent callbacks presenting the same state token
// see exactly one winner. Expired entries are deleted and reported as
// absent.
func (s *StateStore) Consume(state string) (*AuthorizeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[state]
	if !ok {
		return nil, false
	}
	delete(s.states, state)
	if security.IsExpired(st.ExpiresAt) {
		return nil, false
	}
	return st, true
}

// Delete removes a state.
func (s *StateStore) Delete(state string) {
	s.mu.Lock()
	delete(s.states, state)
	s.mu.Unlock()
}

// Len returns the number of pending states, expired entries included.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
