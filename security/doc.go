// Package security provides the security primitives used by the
// authentication bridge: opaque token minting, constant-time comparison,
// expiry checks with clock-skew tolerance, audit logging with PII hashing,
// and per-IP rate limiting for client registration.
package security
