// Package mock provides a scripted implementation of the Adapter
// interface for testing the orchestrator.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/giantswarm/mcp-authbridge/providers"
)

// Compile-time check that Adapter implements the providers.Adapter interface.
var _ providers.Adapter = (*Adapter)(nil)

// Adapter is a scripted providers.Adapter. Each method delegates to its
// corresponding func field; unset fields use a safe default backed by the
// embedded StateStore, so orchestrator tests exercise real state
// handling by default.
type Adapter struct {
	NameFunc              func() string
	CallbackPathFunc      func() string
	BuildAuthorizeURLFunc func(clientID string, params providers.AuthorizeParams) (string, error)
	ExchangeCodeFunc      func(ctx context.Context, code string, st *providers.AuthorizeState) (*providers.ExternalIdentity, error)
	GetUserContextFunc    func(ctx context.Context, token string) (*providers.UserContext, error)

	// States is the real state store backing the default behaviors.
	States *providers.StateStore

	mu         sync.Mutex
	callCounts map[string]int
}

// NewAdapter creates a mock adapter with working defaults.
func NewAdapter() *Adapter {
	return &Adapter{
		States:     providers.NewStateStore(0),
		callCounts: make(map[string]int),
	}
}

func (a *Adapter) count(method string) {
	a.mu.Lock()
	a.callCounts[method]++
	a.mu.Unlock()
}

// CallCount returns how many times a method was invoked.
func (a *Adapter) CallCount(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.callCounts[method]
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	a.count("Name")
	if a.NameFunc != nil {
		return a.NameFunc()
	}
	return "mock"
}

// CallbackPath returns the adapter's callback path.
func (a *Adapter) CallbackPath() string {
	a.count("CallbackPath")
	if a.CallbackPathFunc != nil {
		return a.CallbackPathFunc()
	}
	return "/mock/callback"
}

// BuildAuthorizeURL records a pending state and returns a synthetic
// authorize URL containing it.
func (a *Adapter) BuildAuthorizeURL(clientID string, params providers.AuthorizeParams) (string, error) {
	a.count("BuildAuthorizeURL")
	if a.BuildAuthorizeURLFunc != nil {
		return a.BuildAuthorizeURLFunc(clientID, params)
	}
	st := a.States.Begin(clientID, "https://bridge.example.com/mock/callback", params)
	return fmt.Sprintf("https://idp.example.com/authorize?state=%s&client_id=mock-app", st.State), nil
}

// ExchangeCode returns a synthetic external identity for a consumed
// state and providers.ErrInvalidState when st is nil.
func (a *Adapter) ExchangeCode(ctx context.Context, code string, st *providers.AuthorizeState) (*providers.ExternalIdentity, error) {
	a.count("ExchangeCode")
	if a.ExchangeCodeFunc != nil {
		return a.ExchangeCodeFunc(ctx, code, st)
	}
	if st == nil {
		return nil, providers.ErrInvalidState
	}
	return &providers.ExternalIdentity{
		SubjectID: st.ClientID,
		Scopes:    []string{"mock:read"},
		Token:     "ext-" + code,
		Provider:  "mock",
	}, nil
}

// GetUserContext returns a synthetic user context.
func (a *Adapter) GetUserContext(ctx context.Context, token string) (*providers.UserContext, error) {
	a.count("GetUserContext")
	if a.GetUserContextFunc != nil {
		return a.GetUserContextFunc(ctx, token)
	}
	return &providers.UserContext{
		Provider:    "mock",
		ID:          "mock-user-123",
		Username:    "mock-user",
		Email:       "mock@example.com",
		DisplayName: "Mock User",
	}, nil
}

// State returns the pending state without consuming it.
func (a *Adapter) State(state string) (*providers.AuthorizeState, bool) {
	a.count("State")
	return a.States.Get(state)
}

// ConsumeState atomically removes and returns the pending state.
func (a *Adapter) ConsumeState(state string) (*providers.AuthorizeState, bool) {
	a.count("ConsumeState")
	return a.States.Consume(state)
}

// CleanupState removes the state.
func (a *Adapter) CleanupState(state string) {
	a.count("CleanupState")
	a.States.Delete(state)
}
