package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Never set actual credential values (tokens,
// codes, secrets) as attributes; only metadata.
const (
	AttrClientID      = "oauth.client_id"
	AttrScope         = "oauth.scope"
	AttrGrantType     = "oauth.grant_type"
	AttrRedirectURI   = "oauth.redirect_uri"
	AttrError         = "oauth.error"
	AttrProviderName  = "provider.name"
	AttrProviderOp    = "provider.operation"
	AttrStorageOp     = "storage.operation"
	AttrStorageResult = "storage.result"
)

// RecordError records an error on a span with proper status codes
// (nil-safe).
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe).
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe).
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
