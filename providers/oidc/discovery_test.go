package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giantswarm/mcp-authbridge/internal/testutil"
)

func TestDiscoverFetchesWellKnown(t *testing.T) {
	var gotPath string
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer:                "https://issuer.example.com",
			AuthorizationEndpoint: "https://issuer.example.com/authorize",
			TokenEndpoint:         "https://issuer.example.com/token",
			UserInfoEndpoint:      "https://issuer.example.com/userinfo",
		})
	})
	defer server.Close()

	client := NewDiscoveryClient(nil, 0)

	doc, err := client.Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if gotPath != "/.well-known/openid-configuration" {
		t.Errorf("request path = %q", gotPath)
	}
	if doc.TokenEndpoint != "https://issuer.example.com/token" {
		t.Errorf("TokenEndpoint = %q", doc.TokenEndpoint)
	}
}

func TestDiscoverTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			AuthorizationEndpoint: "https://issuer.example.com/authorize",
			TokenEndpoint:         "https://issuer.example.com/token",
		})
	})
	defer server.Close()

	client := NewDiscoveryClient(nil, 0)

	if _, err := client.Discover(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if gotPath != "/.well-known/openid-configuration" {
		t.Errorf("request path = %q, double slash not collapsed", gotPath)
	}
}

func TestDiscoverCachesDocument(t *testing.T) {
	var calls atomic.Int64
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			AuthorizationEndpoint: "https://issuer.example.com/authorize",
			TokenEndpoint:         "https://issuer.example.com/token",
		})
	})
	defer server.Close()

	client := NewDiscoveryClient(nil, time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := client.Discover(context.Background(), server.URL); err != nil {
			t.Fatalf("Discover() #%d error = %v", i, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("issuer fetched %d times, want 1 (cached)", n)
	}
}

func TestDiscoverServesStaleOnFetchFailure(t *testing.T) {
	var fail atomic.Bool
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			AuthorizationEndpoint: "https://issuer.example.com/authorize",
			TokenEndpoint:         "https://issuer.example.com/token",
		})
	})
	defer server.Close()

	// TTL short enough that the second Discover goes back to the issuer.
	client := NewDiscoveryClient(nil, time.Nanosecond)

	doc, err := client.Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("initial Discover() error = %v", err)
	}

	fail.Store(true)
	stale, err := client.Discover(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Discover() with flapping issuer error = %v, want stale document", err)
	}
	if stale.TokenEndpoint != doc.TokenEndpoint {
		t.Errorf("stale TokenEndpoint = %q", stale.TokenEndpoint)
	}
}

func TestDiscoverMissingEndpointsRejected(t *testing.T) {
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer: "https://issuer.example.com",
		})
	})
	defer server.Close()

	client := NewDiscoveryClient(nil, 0)

	if _, err := client.Discover(context.Background(), server.URL); err == nil {
		t.Error("Discover() accepted a document without endpoints")
	}
}

func TestDiscoverNonSuccessStatus(t *testing.T) {
	server := testutil.NewMockHTTPServer(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	defer server.Close()

	client := NewDiscoveryClient(nil, 0)

	if _, err := client.Discover(context.Background(), server.URL); err == nil {
		t.Error("Discover() accepted a 404 response")
	}
}
