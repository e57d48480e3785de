// Package context carries request-scoped identifiers used by logs, traces
// and metrics.
package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type correlationIDKey struct{}
type fingerprintKey struct{}

// SpinOutcomeKey is the gin context key the spin handler stores its outcome
// under for request logs and spans.
const SpinOutcomeKey = "spin_outcome"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return v
	}
	return ""
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating
// a ULID when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := CorrelationIDFromContext(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return WithCorrelationID(ctx, cid), cid
}

// WithFingerprint records the hashed client address. Raw addresses never go
// into the context.
func WithFingerprint(ctx context.Context, fingerprint string) context.Context {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return ctx
	}
	return context.WithValue(ctx, fingerprintKey{}, fingerprint)
}

func FingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(fingerprintKey{}).(string); ok {
		return v
	}
	return ""
}
