package authbridge

import "testing"

func TestApplySecureDefaults(t *testing.T) {
	config := applySecureDefaults(&ServerConfig{}, testLogger())

	if config.AuthorizationCodeTTL != 300 {
		t.Errorf("AuthorizationCodeTTL = %d, want 300", config.AuthorizationCodeTTL)
	}
	if config.AccessTokenTTL != 3600 {
		t.Errorf("AccessTokenTTL = %d, want 3600", config.AccessTokenTTL)
	}
	if config.RegistrationRate != 1 {
		t.Errorf("RegistrationRate = %d, want 1", config.RegistrationRate)
	}
	if config.RegistrationBurst != 5 {
		t.Errorf("RegistrationBurst = %d, want 5", config.RegistrationBurst)
	}
	if config.ClockSkewGracePeriod != 5 {
		t.Errorf("ClockSkewGracePeriod = %d, want 5", config.ClockSkewGracePeriod)
	}
}

func TestApplySecureDefaultsPreservesExplicitValues(t *testing.T) {
	config := applySecureDefaults(&ServerConfig{
		AuthorizationCodeTTL: 60,
		AccessTokenTTL:       7200,
		RegistrationRate:     2,
		RegistrationBurst:    10,
		ClockSkewGracePeriod: 1,
	}, testLogger())

	if config.AuthorizationCodeTTL != 60 {
		t.Errorf("AuthorizationCodeTTL = %d, want 60", config.AuthorizationCodeTTL)
	}
	if config.AccessTokenTTL != 7200 {
		t.Errorf("AccessTokenTTL = %d, want 7200", config.AccessTokenTTL)
	}
	if config.RegistrationRate != 2 {
		t.Errorf("RegistrationRate = %d, want 2", config.RegistrationRate)
	}
	if config.RegistrationBurst != 10 {
		t.Errorf("RegistrationBurst = %d, want 10", config.RegistrationBurst)
	}
	if config.ClockSkewGracePeriod != 1 {
		t.Errorf("ClockSkewGracePeriod = %d, want 1", config.ClockSkewGracePeriod)
	}
}
