// Package providers defines the adapter interface for external identity
// providers and the shared pieces every adapter needs: the pending
// authorization state store, the callback URL capability, and upstream
// error types.
//
// One adapter exists per provider dialect (GitHub, Atlassian, Salesforce,
// Google, generic OIDC). The dialects differ in default scopes, required
// non-standard authorize parameters, token endpoint encoding, and profile
// field mapping; those differences live entirely inside the adapter
// subpackages.
package providers
