package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/giantswarm/mcp-authbridge/internal/testutil"
	"github.com/giantswarm/mcp-authbridge/providers"
)

// newTestIssuer runs a minimal OIDC issuer: discovery, token, and
// userinfo endpoints on one server.
func newTestIssuer(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(DiscoveryDocument{
				Issuer:                server.URL,
				AuthorizationEndpoint: server.URL + "/protocol/openid-connect/auth",
				TokenEndpoint:         server.URL + "/protocol/openid-connect/token",
				UserInfoEndpoint:      server.URL + "/protocol/openid-connect/userinfo",
			})
		case "/protocol/openid-connect/token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"access_token": "oidc-token-xyz",
				"token_type":   "Bearer",
			})
		case "/protocol/openid-connect/userinfo":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub":                "f7e2c1aa-0b3d-4a91-9c2e-8d5f6a7b8c9d",
				"preferred_username": "auser",
				"email":              "user@example.com",
				"name":               "A. User",
			})
		default:
			http.NotFound(w, r)
		}
	})
	return server
}

func newTestAdapter(t *testing.T, issuerURL string) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(&Config{
		IssuerURL:    issuerURL,
		ClientID:     "oidc-client-id",
		ClientSecret: "oidc-client-secret",
		URLs:         providers.BaseURLBuilder{Base: "https://bridge.example.com"},
	})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	return adapter
}

func TestNewAdapterValidation(t *testing.T) {
	urls := providers.BaseURLBuilder{Base: "https://b"}

	if _, err := NewAdapter(&Config{ClientID: "i", ClientSecret: "s", URLs: urls}); err == nil {
		t.Error("NewAdapter() without issuer URL should fail")
	}
	if _, err := NewAdapter(&Config{IssuerURL: "https://iss", ClientSecret: "s", URLs: urls}); err == nil {
		t.Error("NewAdapter() without client ID should fail")
	}
	if _, err := NewAdapter(&Config{IssuerURL: "https://iss", ClientID: "i", ClientSecret: "s"}); err == nil {
		t.Error("NewAdapter() without URL builder should fail")
	}
}

func TestNewAdapterFailsWhenIssuerUnreachable(t *testing.T) {
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer server.Close()

	_, err := NewAdapter(&Config{
		IssuerURL:    server.URL,
		ClientID:     "i",
		ClientSecret: "s",
		URLs:         providers.BaseURLBuilder{Base: "https://b"},
	})
	if err == nil {
		t.Error("NewAdapter() should fail when discovery fails")
	}
}

func TestBuildAuthorizeURLUsesDiscoveredEndpoint(t *testing.T) {
	issuer := newTestIssuer(t)
	defer issuer.Close()

	adapter := newTestAdapter(t, issuer.URL)

	authURL, err := adapter.BuildAuthorizeURL("internal-client", providers.AuthorizeParams{})
	if err != nil {
		t.Fatalf("BuildAuthorizeURL() error = %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("unparseable URL: %v", err)
	}
	if parsed.Path != "/protocol/openid-connect/auth" {
		t.Errorf("authorize path = %q, want discovered endpoint", parsed.Path)
	}

	q := parsed.Query()
	if got := q.Get("redirect_uri"); got != "https://bridge.example.com/oidc/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	if _, ok := adapter.State(q.Get("state")); !ok {
		t.Error("state in URL not tracked by adapter")
	}
}

func TestExchangeCode(t *testing.T) {
	issuer := newTestIssuer(t)
	defer issuer.Close()

	adapter := newTestAdapter(t, issuer.URL)

	authURL, err := adapter.BuildAuthorizeURL("internal-client", providers.AuthorizeParams{})
	if err != nil {
		t.Fatalf("BuildAuthorizeURL() error = %v", err)
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("unparseable URL: %v", err)
	}

	st, ok := adapter.ConsumeState(parsed.Query().Get("state"))
	if !ok {
		t.Fatal("state not recorded")
	}

	identity, err := adapter.ExchangeCode(context.Background(), "upstream-code", st)
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if identity.Token != "oidc-token-xyz" {
		t.Errorf("Token = %q", identity.Token)
	}
	if identity.SubjectID != "internal-client" {
		t.Errorf("SubjectID = %q", identity.SubjectID)
	}
	if identity.Provider != "oidc" {
		t.Errorf("Provider = %q", identity.Provider)
	}
}

func TestExchangeCodeUnknownState(t *testing.T) {
	issuer := newTestIssuer(t)
	defer issuer.Close()

	adapter := newTestAdapter(t, issuer.URL)

	if _, ok := adapter.ConsumeState("never-issued"); ok {
		t.Error("ConsumeState() found state that was never issued")
	}
	_, err := adapter.ExchangeCode(context.Background(), "code", nil)
	if !errors.Is(err, providers.ErrInvalidState) {
		t.Fatalf("ExchangeCode() error = %v, want ErrInvalidState", err)
	}
}

func TestGetUserContextMapping(t *testing.T) {
	issuer := newTestIssuer(t)
	defer issuer.Close()

	adapter := newTestAdapter(t, issuer.URL)

	uc, err := adapter.GetUserContext(context.Background(), "oidc-token")
	if err != nil {
		t.Fatalf("GetUserContext() error = %v", err)
	}
	if uc.ID != "f7e2c1aa-0b3d-4a91-9c2e-8d5f6a7b8c9d" {
		t.Errorf("ID = %q, want sub claim", uc.ID)
	}
	if uc.Username != "auser" {
		t.Errorf("Username = %q", uc.Username)
	}
	if uc.Email != "user@example.com" {
		t.Errorf("Email = %q", uc.Email)
	}
}

func TestGetUserContextNoUserinfoEndpoint(t *testing.T) {
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			AuthorizationEndpoint: "https://issuer.example.com/authorize",
			TokenEndpoint:         "https://issuer.example.com/token",
		})
	})
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	_, err := adapter.GetUserContext(context.Background(), "tok")

	var profErr *providers.ProfileError
	if !errors.As(err, &profErr) {
		t.Fatalf("GetUserContext() error = %T, want *providers.ProfileError", err)
	}
}
