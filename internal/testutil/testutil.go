// Package testutil provides test fixtures and helpers for the
// authbridge library.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/giantswarm/mcp-authbridge/providers"
	"github.com/giantswarm/mcp-authbridge/security"
	"github.com/giantswarm/mcp-authbridge/storage"
)

// NewMockHTTPServer creates a test HTTP server with the given handler.
func NewMockHTTPServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

// GenerateRandomString creates a random URL-safe string of roughly n
// characters.
func GenerateRandomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}

// GenerateTestClient creates a registered confidential client.
func GenerateTestClient() *storage.Client {
	return &storage.Client{
		ID:            "test-client-id",
		SecretHash:    "$2a$10$o/LfooqfLFb.lVBKGS8C0.sjVNbBhUAdilcZ9z4vB9MLzc8Mkkebm", // hash of "test"
		RedirectURIs:  []string{"https://example.com/callback"},
		GrantTypes:    []string{"authorization_code"},
		ResponseTypes: []string{"code"},
		Scope:         "openid email profile",
		Name:          "Test Client",
		CreatedAt:     time.Now(),
	}
}

// GenerateTestAuthorizationCode creates an unexpired authorization code
// owned by the test client.
func GenerateTestAuthorizationCode() *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:                          security.NewToken(security.KindAuthorizationCode).Value,
		ClientID:                      "test-client-id",
		RedirectURI:                   "https://example.com/callback",
		RedirectURIProvidedExplicitly: true,
		Scopes:                        []string{"read:user"},
		CreatedAt:                     time.Now(),
		ExpiresAt:                     time.Now().Add(5 * time.Minute),
	}
}

// GenerateTestAccessToken creates an unexpired access token owned by
// the test client.
func GenerateTestAccessToken() *storage.AccessToken {
	return &storage.AccessToken{
		Token:     security.NewToken(security.KindAccessToken).Value,
		ClientID:  "test-client-id",
		Scopes:    []string{"read:user"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// GenerateTestUserContext creates a normalized identity fixture.
func GenerateTestUserContext() *providers.UserContext {
	return &providers.UserContext{
		Provider:    "mock",
		ID:          "test-user-123",
		Username:    "testuser",
		Email:       "test@example.com",
		DisplayName: "Test User",
		AvatarURL:   "https://example.com/photo.jpg",
	}
}
