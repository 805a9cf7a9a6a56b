package authbridge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-authbridge/instrumentation"
	"github.com/giantswarm/mcp-authbridge/providers"
	"github.com/giantswarm/mcp-authbridge/security"
	"github.com/giantswarm/mcp-authbridge/storage"
)

// Server implements the internal-facing OAuth2 authorization-server
// contract: client registration, authorize, callback handling, code
// exchange, token validation, revocation. It composes one provider
// adapter and a CredentialRegistry; HTTP transport is the caller's
// concern.
type Server struct {
	adapter  providers.Adapter
	registry *CredentialRegistry
	config   *ServerConfig
	logger   *slog.Logger

	auditor             *security.Auditor
	registrationLimiter *security.RegistrationLimiter
	instruments         *instrumentation.Instrumentation
}

// NewServer creates a new authorization server.
func NewServer(adapter providers.Adapter, registry *CredentialRegistry, config *ServerConfig, logger *slog.Logger) (*Server, error) {
	if adapter == nil {
		return nil, fmt.Errorf("provider adapter is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("credential registry is required")
	}
	if config == nil {
		config = &ServerConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Issuer != "" {
		if err := validateAbsoluteURL(config.Issuer); err != nil {
			return nil, fmt.Errorf("issuer %q: %w", config.Issuer, err)
		}
	}

	config = applySecureDefaults(config, logger)
	registry.SetClockSkewGracePeriod(time.Duration(config.ClockSkewGracePeriod) * time.Second)

	return &Server{
		adapter:  adapter,
		registry: registry,
		config:   config,
		logger:   logger,
	}, nil
}

// SetAuditor sets the security auditor.
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.auditor = aud
}

// SetRegistrationLimiter sets the per-IP rate limiter for dynamic
// client registration.
func (s *Server) SetRegistrationLimiter(rl *security.RegistrationLimiter) {
	s.registrationLimiter = rl
}

// SetInstrumentation sets the OpenTelemetry instrumentation.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instruments = inst
}

// metrics returns the metric instruments, or nil when instrumentation
// is not configured. All Metrics methods are nil-safe.
func (s *Server) metrics() *instrumentation.Metrics {
	if s.instruments == nil {
		return nil
	}
	return s.instruments.Metrics()
}

// tracer returns the configured tracer, or a no-op tracer when
// instrumentation is not configured, so spans can be started
// unconditionally.
func (s *Server) tracer() trace.Tracer {
	if s.instruments == nil {
		return tracenoop.NewTracerProvider().Tracer("authbridge")
	}
	return s.instruments.Tracer("authbridge")
}

// observeProviderCall returns a completion func that records the
// provider API call's duration and outcome on both the metric
// instruments and the span.
func (s *Server) observeProviderCall(ctx context.Context, span trace.Span, operation string) func(error) {
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrProviderName, s.adapter.Name()),
		attribute.String(instrumentation.AttrProviderOp, operation),
	)
	start := time.Now()
	return func(err error) {
		s.metrics().RecordProviderAPICall(ctx, s.adapter.Name(), operation,
			float64(time.Since(start))/float64(time.Millisecond), err)
		if err != nil {
			instrumentation.RecordError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
	}
}

// RegisterClient registers a statically configured client. Each
// redirect URI must be a well-formed absolute URL or the client fails
// to load.
func (s *Server) RegisterClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ID == "" {
		return ErrInvalidRequest("client with a non-empty ID is required")
	}
	for _, uri := range client.RedirectURIs {
		if err := validateAbsoluteURL(uri); err != nil {
			return ErrInvalidRedirectURI(fmt.Sprintf("redirect URI %q: %v", uri, err))
		}
	}

	if len(client.GrantTypes) == 0 {
		client.GrantTypes = []string{"authorization_code"}
	}
	if len(client.ResponseTypes) == 0 {
		client.ResponseTypes = []string{"code"}
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}

	if err := s.registry.PutClient(ctx, client); err != nil {
		return ErrServerError(err.Error())
	}

	s.logger.Info("Registered client", "client_id", client.ID, "client_name", client.Name)
	return nil
}

// GetClient retrieves a registered client by ID.
func (s *Server) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	return s.registry.Client(ctx, clientID)
}

// ListClients lists all registered clients.
func (s *Server) ListClients(ctx context.Context) ([]*storage.Client, error) {
	return s.registry.Clients(ctx)
}

// RegisterClientDynamically registers a client per RFC 7591. No
// pre-shared secret is required from the caller; a fresh client id and
// secret are generated. Unset grant and response types default to
// authorization_code / code. A request without redirect URIs still
// yields a usable id/secret pair with empty redirect URIs.
func (s *Server) RegisterClientDynamically(ctx context.Context, req *ClientRegistrationRequest, clientIP string) (*ClientRegistrationResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest("registration request is required")
	}
	if !s.registrationLimiter.Allow(clientIP) {
		s.logger.Warn("Client registration rate limit exceeded", "client_ip", clientIP)
		return nil, ErrRateLimitExceeded("too many registration requests")
	}
	for _, uri := range req.RedirectURIs {
		if err := validateAbsoluteURL(uri); err != nil {
			return nil, ErrInvalidRedirectURI(fmt.Sprintf("redirect URI %q: %v", uri, err))
		}
	}

	clientID := uuid.NewString()
	clientSecret := oauth2.GenerateVerifier()

	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrServerError("failed to hash client secret")
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code"}
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{"code"}
	}

	now := time.Now()
	client := &storage.Client{
		ID:            clientID,
		SecretHash:    string(hash),
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    grantTypes,
		ResponseTypes: responseTypes,
		Scope:         req.Scope,
		Name:          req.ClientName,
		CreatedAt:     now,
	}

	if err := s.registry.PutClient(ctx, client); err != nil {
		return nil, ErrServerError(err.Error())
	}

	if s.auditor != nil {
		s.auditor.LogClientRegistered(clientID, clientIP)
	}
	s.metrics().RecordClientRegistration(ctx)
	s.logger.Info("Dynamically registered client",
		"client_id", clientID,
		"client_name", req.ClientName)

	return &ClientRegistrationResponse{
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		ClientIDIssuedAt:      now.Unix(),
		ClientSecretExpiresAt: 0,
		RedirectURIs:          req.RedirectURIs,
		GrantTypes:            grantTypes,
		ResponseTypes:         responseTypes,
		ClientName:            req.ClientName,
		Scope:                 req.Scope,
	}, nil
}

// Authorize starts an authorization flow for a registered client and
// returns the provider's authorize URL to redirect the end user to.
func (s *Server) Authorize(ctx context.Context, clientID string, params providers.AuthorizeParams) (string, error) {
	client, err := s.registry.Client(ctx, clientID)
	if err != nil {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(clientID, s.adapter.Name(), "unknown_client")
		}
		return "", ErrInvalidClient("unknown client")
	}

	if err := s.validateScopes(params.Scopes); err != nil {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(clientID, s.adapter.Name(), "invalid_scope")
		}
		return "", ErrInvalidScope(err.Error())
	}

	if params.RedirectURI == "" && len(client.RedirectURIs) > 0 {
		params.RedirectURI = client.RedirectURIs[0]
		params.RedirectURIProvidedExplicitly = false
	} else if params.RedirectURI != "" && len(client.RedirectURIs) > 0 {
		if !containsString(client.RedirectURIs, params.RedirectURI) {
			if s.auditor != nil {
				s.auditor.LogAuthFailure(clientID, s.adapter.Name(), "unregistered_redirect_uri")
			}
			return "", ErrInvalidRedirectURI("redirect URI not registered for client")
		}
	}

	authURL, err := s.adapter.BuildAuthorizeURL(clientID, params)
	if err != nil {
		return "", ErrServerError(err.Error())
	}

	if s.auditor != nil {
		s.auditor.LogFlowStarted(clientID, s.adapter.Name(), params.RedirectURI)
	}
	s.metrics().RecordAuthorizationStarted(ctx, clientID)

	return authURL, nil
}

// HandleCallback processes the provider's redirect back to the bridge.
// It exchanges the provider code, mints an internal authorization code
// bound to the external token, and returns the original client's
// redirect URI with code and state appended. The state is consumed
// atomically before the upstream exchange, so a replayed callback with
// the same state fails regardless of interleaving.
func (s *Server) HandleCallback(ctx context.Context, code, state string) (string, error) {
	if code == "" || state == "" {
		return "", ErrInvalidRequest("code and state parameters are required")
	}

	st, ok := s.adapter.ConsumeState(state)
	if !ok {
		if s.auditor != nil {
			s.auditor.LogAuthFailure("", s.adapter.Name(), "invalid_state")
		}
		s.metrics().RecordCallbackProcessed(ctx, "", false)
		return "", ErrInvalidGrant("invalid or expired state parameter")
	}

	spanCtx, span := s.tracer().Start(ctx, "provider.exchange_code")
	done := s.observeProviderCall(spanCtx, span, "exchange_code")
	identity, err := s.adapter.ExchangeCode(spanCtx, code, st)
	done(err)
	if err != nil {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(st.ClientID, s.adapter.Name(), "code_exchange_failed")
		}
		s.metrics().RecordCallbackProcessed(ctx, st.ClientID, false)

		var exchErr *providers.ExchangeError
		if errors.As(err, &exchErr) {
			return "", ErrInvalidGrant(fmt.Sprintf("provider rejected code exchange: %s: %s", exchErr.Code, exchErr.Description))
		}
		if errors.Is(err, providers.ErrInvalidState) {
			return "", ErrInvalidGrant("invalid or expired state parameter")
		}
		s.logger.Error("Provider code exchange failed",
			"provider", s.adapter.Name(),
			"error", err)
		return "", ErrServerError("code exchange failed")
	}

	redirect, err := url.Parse(st.RedirectURI)
	if err != nil || !redirect.IsAbs() || redirect.Host == "" {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(st.ClientID, s.adapter.Name(), "malformed_redirect_uri")
		}
		s.metrics().RecordCallbackProcessed(ctx, st.ClientID, false)
		return "", ErrInvalidRedirectURI("stored redirect URI is not a well-formed absolute URL")
	}

	authCode := security.NewToken(security.KindAuthorizationCode)
	now := time.Now()
	record := &storage.AuthorizationCode{
		Code:                          authCode.Value,
		ClientID:                      st.ClientID,
		RedirectURI:                   st.RedirectURI,
		RedirectURIProvidedExplicitly: st.RedirectURIProvidedExplicitly,
		CodeChallenge:                 st.CodeChallenge,
		Scopes:                        identity.Scopes,
		CreatedAt:                     now,
		ExpiresAt:                     now.Add(time.Duration(s.config.AuthorizationCodeTTL) * time.Second),
	}

	if err := s.registry.PutCode(ctx, record, identity.Token); err != nil {
		return "", ErrServerError(err.Error())
	}

	if s.auditor != nil {
		s.auditor.LogCodeIssued(st.ClientID, s.adapter.Name())
	}
	s.metrics().RecordCallbackProcessed(ctx, st.ClientID, true)
	s.logger.Debug("Issued authorization code",
		"client_id", st.ClientID,
		"code", authCode.Redacted())

	q := redirect.Query()
	q.Set("code", authCode.Value)
	q.Set("state", st.State)
	redirect.RawQuery = q.Encode()
	return redirect.String(), nil
}

// LoadAuthorizationCode retrieves an authorization code by value.
// Expired codes are deleted and reported as not found. When clientID is
// non-empty, a code owned by a different client is reported as not
// found rather than leaked.
func (s *Server) LoadAuthorizationCode(ctx context.Context, clientID, code string) (*storage.AuthorizationCode, error) {
	record, err := s.registry.Code(ctx, code)
	if err != nil {
		return nil, err
	}
	if clientID != "" && record.ClientID != clientID {
		return nil, ErrNotFound
	}
	return record, nil
}

// HandleTokenRequest dispatches a token-endpoint request by grant type.
// Only the authorization_code grant is supported; refresh_token in
// particular is deliberately not implemented at this layer.
func (s *Server) HandleTokenRequest(ctx context.Context, grantType, clientID, code string) (*TokenResponse, error) {
	if grantType != "authorization_code" {
		return nil, ErrUnsupportedGrantType(fmt.Sprintf("grant type %q is not supported", grantType))
	}
	return s.ExchangeAuthorizationCode(ctx, clientID, code)
}

// ExchangeAuthorizationCode exchanges a single-use internal
// authorization code for an internal access token. The presenting
// client must be the client the code was issued to. The external-token
// mapping moves from the consumed code to the new token.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, clientID, code string) (*TokenResponse, error) {
	record, err := s.registry.Code(ctx, code)
	if err != nil {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(clientID, s.adapter.Name(), "invalid_authorization_code")
		}
		return nil, ErrInvalidGrant("authorization code not found or expired")
	}

	if record.ClientID != clientID {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(clientID, s.adapter.Name(), "client_mismatch")
		}
		return nil, ErrInvalidClient("authorization code was issued to a different client")
	}

	accessToken := security.NewToken(security.KindAccessToken)
	now := time.Now()
	token := &storage.AccessToken{
		Token:     accessToken.Value,
		ClientID:  record.ClientID,
		Scopes:    record.Scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.config.AccessTokenTTL) * time.Second),
	}

	// Exchange re-checks the code under the registry lock, so a code is
	// consumed at most once even under concurrent attempts.
	if err := s.registry.Exchange(ctx, code, token); err != nil {
		if s.auditor != nil {
			s.auditor.LogAuthFailure(clientID, s.adapter.Name(), "authorization_code_reuse")
		}
		return nil, ErrInvalidGrant("authorization code not found or expired")
	}

	scope := strings.Join(record.Scopes, " ")
	if s.auditor != nil {
		s.auditor.LogTokenIssued(clientID, scope)
	}
	s.metrics().RecordCodeExchange(ctx, clientID)
	s.logger.Debug("Issued access token",
		"client_id", clientID,
		"token", accessToken.Redacted())

	return &TokenResponse{
		AccessToken: accessToken.Value,
		TokenType:   "bearer",
		ExpiresIn:   s.config.AccessTokenTTL,
		Scope:       scope,
	}, nil
}

// LoadAccessToken retrieves an access token's metadata. Expired tokens
// are deleted and reported as not found.
func (s *Server) LoadAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	return s.registry.Token(ctx, token)
}

// RevokeToken removes an access token and its external-token mapping.
// Revoking an unknown token is not an error.
func (s *Server) RevokeToken(ctx context.Context, token string) error {
	record, err := s.registry.Token(ctx, token)
	if err == nil {
		if s.auditor != nil {
			s.auditor.LogTokenRevoked(record.ClientID)
		}
		s.metrics().RecordTokenRevocation(ctx, record.ClientID)
	}
	return s.registry.DeleteToken(ctx, token)
}

// UserContext resolves an internal access token to the normalized
// identity behind it by fetching the provider's profile endpoint with
// the mapped external token.
func (s *Server) UserContext(ctx context.Context, token string) (*providers.UserContext, error) {
	if _, err := s.registry.Token(ctx, token); err != nil {
		return nil, ErrInvalidToken("access token not found or expired")
	}

	ext, ok := s.registry.ExternalToken(token)
	if !ok {
		return nil, ErrInvalidToken("no provider token associated with access token")
	}

	spanCtx, span := s.tracer().Start(ctx, "provider.get_user_context")
	done := s.observeProviderCall(spanCtx, span, "get_user_context")
	uc, err := s.adapter.GetUserContext(spanCtx, ext)
	done(err)
	if err != nil {
		s.logger.Warn("Provider profile fetch failed",
			"provider", s.adapter.Name(),
			"error", err)
		return nil, err
	}
	return uc, nil
}

// dummyBcryptHash keeps secret validation constant-work for unknown
// clients (bcrypt hash of "test").
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// ValidateClientSecret validates a client's secret. A client without a
// stored secret hash is a public client and matches only an empty
// secret. A bcrypt comparison runs even for unknown clients so the
// timing does not reveal whether a client exists.
func (s *Server) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.registry.Client(ctx, clientID)

	hash := dummyBcryptHash
	if err == nil && client.SecretHash != "" {
		hash = client.SecretHash
	}

	if err == nil && client.SecretHash == "" {
		// Public client: constant-time check that no secret was sent.
		if subtle.ConstantTimeCompare([]byte(clientSecret), []byte("")) == 1 {
			return nil
		}
		return ErrInvalidClient("invalid client credentials")
	}

	cmpErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(clientSecret))
	if err != nil || cmpErr != nil {
		return ErrInvalidClient("invalid client credentials")
	}
	return nil
}

// validateScopes checks requested scopes against the configured
// supported set. An empty configuration allows all scopes.
func (s *Server) validateScopes(scopes []string) error {
	if len(s.config.SupportedScopes) == 0 {
		return nil
	}
	for _, scope := range scopes {
		if !containsString(s.config.SupportedScopes, scope) {
			return fmt.Errorf("unsupported scope: %s", scope)
		}
	}
	return nil
}

// validateAbsoluteURL rejects URLs that are relative, missing a host,
// or fail to parse.
func validateAbsoluteURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("URL must be absolute")
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
