package providers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBaseURLBuilder(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{"simple join", "https://bridge.example.com", "/github/callback", "https://bridge.example.com/github/callback", false},
		{"trailing slash on base", "https://bridge.example.com/", "/cb", "https://bridge.example.com/cb", false},
		{"missing leading slash", "https://bridge.example.com", "cb", "https://bridge.example.com/cb", false},
		{"empty base", "", "/cb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BaseURLBuilder{Base: tt.base}.CallbackURL(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CallbackURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CallbackURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExchangeErrorMessage(t *testing.T) {
	withCode := &ExchangeError{
		Provider:    "github",
		Code:        "bad_verification_code",
		Description: "the code is incorrect",
		Status:      401,
	}
	if !strings.Contains(withCode.Error(), "bad_verification_code") {
		t.Errorf("Error() = %q, want upstream code included", withCode.Error())
	}

	statusOnly := &ExchangeError{Provider: "github", Status: 502}
	if !strings.Contains(statusOnly.Error(), "502") {
		t.Errorf("Error() = %q, want status included", statusOnly.Error())
	}
}

func TestProfileErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProfileError{Provider: "google", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is failed to find wrapped cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q", err.Error())
	}

	statusOnly := &ProfileError{Provider: "google", Status: 403}
	if !strings.Contains(statusOnly.Error(), "403") {
		t.Errorf("Error() = %q", statusOnly.Error())
	}

	wrapped := fmt.Errorf("user context: %w", err)
	var pe *ProfileError
	if !errors.As(wrapped, &pe) {
		t.Error("errors.As failed to find ProfileError")
	}
}

func TestTruncateCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcdefghij", "abcdef..."},
		{"abc", "abc"},
		{"abcdef", "abcdef"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TruncateCode(tt.in); got != tt.want {
			t.Errorf("TruncateCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
