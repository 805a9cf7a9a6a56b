package authbridge

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTokenResponseJSON(t *testing.T) {
	resp := TokenResponse{
		AccessToken: "mcp_abc",
		TokenType:   "bearer",
		ExpiresIn:   3600,
		Scope:       "read:user user:email",
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, want := range []string{
		`"access_token":"mcp_abc"`,
		`"token_type":"bearer"`,
		`"expires_in":3600`,
		`"scope":"read:user user:email"`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}
}

func TestClientRegistrationResponseSecretExpiryAlwaysSerialized(t *testing.T) {
	resp := ClientRegistrationResponse{
		ClientID:     "abc",
		ClientSecret: "shhh",
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	// A zero client_secret_expires_at means "never expires" and must be
	// present in the response, not omitted.
	if !strings.Contains(string(data), `"client_secret_expires_at":0`) {
		t.Errorf("JSON %s missing client_secret_expires_at", data)
	}
}
