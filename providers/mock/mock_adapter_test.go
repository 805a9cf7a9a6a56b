package mock

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/giantswarm/mcp-authbridge/providers"
)

func TestDefaultFlowUsesRealStateStore(t *testing.T) {
	adapter := NewAdapter()

	authURL, err := adapter.BuildAuthorizeURL("internal-client", providers.AuthorizeParams{
		Scopes: []string{"read"},
	})
	if err != nil {
		t.Fatalf("BuildAuthorizeURL() error = %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("unparseable URL: %v", err)
	}
	state := parsed.Query().Get("state")

	st, ok := adapter.ConsumeState(state)
	if !ok {
		t.Fatal("state not tracked")
	}
	if st.ClientID != "internal-client" {
		t.Errorf("ClientID = %q", st.ClientID)
	}

	identity, err := adapter.ExchangeCode(context.Background(), "code-1", st)
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if identity.Token != "ext-code-1" {
		t.Errorf("Token = %q", identity.Token)
	}

	if _, ok := adapter.State(state); ok {
		t.Error("state survived ConsumeState")
	}
}

func TestCleanupStateRemovesState(t *testing.T) {
	adapter := NewAdapter()

	st := adapter.States.Begin("internal-client", "https://bridge.example.com/mock/callback", providers.AuthorizeParams{})
	adapter.CleanupState(st.State)
	if _, ok := adapter.State(st.State); ok {
		t.Error("state survived CleanupState")
	}
}

func TestExchangeCodeUnknownState(t *testing.T) {
	adapter := NewAdapter()

	if _, ok := adapter.ConsumeState("never-issued"); ok {
		t.Error("ConsumeState() found state that was never issued")
	}
	_, err := adapter.ExchangeCode(context.Background(), "code", nil)
	if !errors.Is(err, providers.ErrInvalidState) {
		t.Fatalf("ExchangeCode() error = %v, want ErrInvalidState", err)
	}
}

func TestScriptedFuncsOverrideDefaults(t *testing.T) {
	adapter := NewAdapter()
	adapter.NameFunc = func() string { return "scripted" }
	adapter.ExchangeCodeFunc = func(ctx context.Context, code string, st *providers.AuthorizeState) (*providers.ExternalIdentity, error) {
		return nil, errors.New("scripted failure")
	}

	if got := adapter.Name(); got != "scripted" {
		t.Errorf("Name() = %q", got)
	}
	if _, err := adapter.ExchangeCode(context.Background(), "c", &providers.AuthorizeState{}); err == nil {
		t.Error("scripted ExchangeCode should fail")
	}
}

func TestCallCount(t *testing.T) {
	adapter := NewAdapter()

	if n := adapter.CallCount("Name"); n != 0 {
		t.Errorf("CallCount before use = %d", n)
	}
	adapter.Name()
	adapter.Name()
	if n := adapter.CallCount("Name"); n != 2 {
		t.Errorf("CallCount = %d, want 2", n)
	}
}
