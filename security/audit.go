package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. User
// identifiers are hashed before they reach the log; token values are
// never logged at all.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	Provider  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"provider", event.Provider,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogFlowStarted logs the start of an authorization flow
func (a *Auditor) LogFlowStarted(clientID, provider, redirectURI string) {
	a.LogEvent(Event{
		Type:     "authorization_flow_started",
		ClientID: clientID,
		Provider: provider,
		Details: map[string]any{
			"redirect_uri": redirectURI,
		},
	})
}

// LogCodeIssued logs issuance of an internal authorization code
func (a *Auditor) LogCodeIssued(clientID, provider string) {
	a.LogEvent(Event{
		Type:     "authorization_code_issued",
		ClientID: clientID,
		Provider: provider,
	})
}

// LogTokenIssued logs issuance of an internal access token
func (a *Auditor) LogTokenIssued(clientID, scope string) {
	a.LogEvent(Event{
		Type:     "token_issued",
		ClientID: clientID,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogTokenRevoked logs revocation of an internal token
func (a *Auditor) LogTokenRevoked(clientID string) {
	a.LogEvent(Event{
		Type:     "token_revoked",
		ClientID: clientID,
	})
}

// LogClientRegistered logs registration of a new client
func (a *Auditor) LogClientRegistered(clientID, clientIP string) {
	a.LogEvent(Event{
		Type:     "client_registered",
		ClientID: clientID,
		Details: map[string]any{
			"client_ip": clientIP,
		},
	})
}

// LogAuthFailure logs a rejected request: forged state, expired or reused
// codes, client mismatches, and similar caller-side failures.
func (a *Auditor) LogAuthFailure(clientID, provider, reason string) {
	a.LogEvent(Event{
		Type:     "auth_failure",
		ClientID: clientID,
		Provider: provider,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// hashForLogging returns a short SHA-256 digest of an identifier so that
// events can be correlated without storing the identifier itself.
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}
