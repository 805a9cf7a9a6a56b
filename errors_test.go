package authbridge

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestOAuthErrorError(t *testing.T) {
	err := NewOAuthError(ErrorCodeInvalidGrant, "code expired", http.StatusBadRequest)
	want := "invalid_grant: code expired"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorConstructorsClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    *OAuthError
		code   string
		status int
	}{
		{"invalid_request", ErrInvalidRequest("x"), ErrorCodeInvalidRequest, http.StatusBadRequest},
		{"invalid_grant", ErrInvalidGrant("x"), ErrorCodeInvalidGrant, http.StatusBadRequest},
		{"invalid_client", ErrInvalidClient("x"), ErrorCodeInvalidClient, http.StatusBadRequest},
		{"invalid_scope", ErrInvalidScope("x"), ErrorCodeInvalidScope, http.StatusBadRequest},
		{"invalid_token", ErrInvalidToken("x"), ErrorCodeInvalidToken, http.StatusUnauthorized},
		{"unsupported_grant_type", ErrUnsupportedGrantType("x"), ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{"server_error", ErrServerError("x"), ErrorCodeServerError, http.StatusInternalServerError},
		{"invalid_redirect_uri", ErrInvalidRedirectURI("x"), ErrorCodeInvalidRedirectURI, http.StatusBadRequest},
		{"rate_limit_exceeded", ErrRateLimitExceeded("x"), ErrorCodeRateLimitExceeded, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Description != "x" {
				t.Errorf("Description = %q", tt.err.Description)
			}
		})
	}
}

func TestOAuthErrorUnwrapsWithErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("token endpoint: %w", ErrInvalidGrant("expired"))

	var oauthErr *OAuthError
	if !errors.As(wrapped, &oauthErr) {
		t.Fatal("errors.As failed to find OAuthError")
	}
	if oauthErr.Code != ErrorCodeInvalidGrant {
		t.Errorf("Code = %q", oauthErr.Code)
	}
}

func TestErrNotFoundIsSentinel(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("errors.Is failed on wrapped ErrNotFound")
	}
}
