package security

import (
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// TokenPrefix is prepended to every internally-minted credential. The
// prefix makes internal tokens easy to spot in logs and user reports; it
// carries no semantics. Code must branch on Token.Kind, never on the
// string prefix.
const TokenPrefix = "mcp_"

// TokenKind distinguishes the two internal credential namespaces.
type TokenKind int

const (
	// KindAuthorizationCode is a single-use code exchanged for an access token.
	KindAuthorizationCode TokenKind = iota

	// KindAccessToken is a bearer credential presented by internal clients.
	KindAccessToken
)

// String returns a short name for the kind, used in logs and audit events.
func (k TokenKind) String() string {
	switch k {
	case KindAuthorizationCode:
		return "authorization_code"
	case KindAccessToken:
		return "access_token"
	default:
		return "unknown"
	}
}

// Token is an internally-minted opaque credential. The zero value is
// invalid; use NewToken.
type Token struct {
	Kind  TokenKind
	Value string
}

// NewToken mints a fresh opaque token of the given kind. The value is
// TokenPrefix plus 43 characters of URL-safe entropy, the same quality as
// a PKCE verifier.
func NewToken(kind TokenKind) Token {
	return Token{
		Kind:  kind,
		Value: TokenPrefix + oauth2.GenerateVerifier(),
	}
}

// Redacted returns a log-safe form of the token value: the prefix and the
// first eight characters of entropy.
func (t Token) Redacted() string {
	const visible = len(TokenPrefix) + 8
	if len(t.Value) <= visible {
		return t.Value
	}
	return t.Value[:visible] + "..."
}

// ConstantTimeEquals compares two credential strings in constant time to
// prevent timing side channels on state and token validation.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
