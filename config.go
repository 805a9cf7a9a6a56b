package authbridge

import "log/slog"

// ServerConfig holds authorization server configuration.
type ServerConfig struct {
	// Issuer is the server's issuer identifier (base URL). Optional;
	// when set, NewServer rejects a value that is not a well-formed
	// absolute URL.
	Issuer string

	// AuthorizationCodeTTL is how long internal authorization codes are
	// valid.
	AuthorizationCodeTTL int64 // seconds, default: 300 (5 minutes)

	// AccessTokenTTL is how long internal access tokens are valid.
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// SupportedScopes lists the scopes that are allowed for clients.
	// If empty, all scopes are allowed.
	SupportedScopes []string

	// RegistrationRate is the sustained dynamic-registration rate allowed
	// per client IP, in requests per second.
	RegistrationRate int // default: 1

	// RegistrationBurst is the dynamic-registration burst allowed per
	// client IP.
	RegistrationBurst int // default: 5

	// ClockSkewGracePeriod is the grace period for expiry checks (in
	// seconds). Prevents false expiration errors due to time
	// synchronization issues.
	ClockSkewGracePeriod int64 // seconds, default: 5
}

// applySecureDefaults fills in defaults for unset configuration values.
func applySecureDefaults(config *ServerConfig, logger *slog.Logger) *ServerConfig {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 300 // 5 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.RegistrationRate == 0 {
		config.RegistrationRate = 1
	}
	if config.RegistrationBurst == 0 {
		config.RegistrationBurst = 5
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = 5
	}

	if config.AuthorizationCodeTTL > config.AccessTokenTTL {
		logger.Warn("Authorization code TTL exceeds access token TTL",
			"code_ttl", config.AuthorizationCodeTTL,
			"token_ttl", config.AccessTokenTTL)
	}

	return config
}
