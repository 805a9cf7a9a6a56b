// Package authbridge implements a provider-agnostic OAuth 2.0 authorization
// server that bridges platform-internal clients to external identity
// providers (GitHub, Atlassian, Salesforce, Google, generic OIDC).
//
// The package deliberately contains no HTTP transport. The orchestrator
// (Server) receives already-parsed parameters and returns redirect targets
// or typed errors; routing, request parsing, and response formatting are
// the caller's concern.
//
// Basic wiring:
//
//	adapter, err := github.NewAdapter(&github.Config{
//		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
//		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
//		URLs:         urls, // providers.CallbackURLBuilder from the host app
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	registry := authbridge.NewCredentialRegistry(storage.NewNullBackend(), nil)
//	server, err := authbridge.NewServer(adapter, registry, nil, nil)
package authbridge
