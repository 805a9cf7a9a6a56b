package security

import "time"

// DefaultClockSkewGracePeriod is the grace period applied to expiry
// checks. Credentials are treated as live until they have been expired
// for longer than this, which absorbs typical NTP drift between the
// bridge, its clients, and the identity provider.
const DefaultClockSkewGracePeriod = 5 * time.Second

// IsExpired reports whether a credential with the given absolute expiry
// is past its lifetime, with the default clock-skew grace period.
// A zero expiry means the credential never expires.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod is IsExpired with a caller-chosen grace period.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}
