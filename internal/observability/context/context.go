// Package context carries request-scoped identifiers through a context.Context
// so logging and tracing middleware can attach them without threading extra
// parameters through every call site.
package context

import "context"

type requestIDKey struct{}
type sessionIDKey struct{}
type actorKey struct{}

// WithRequestID attaches an inbound request identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request identifier, or "" if unset.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithSessionID attaches the reconciliation session identifier to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session identifier, or "" if unset. It is
// the equivalent, in this domain, of the teacher's org-scoped context field.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(sessionIDKey{}).(string)
	return v
}

// OrgIDFromContext exists for parity with the teacher's multi-tenant logging
// fields; this engine has no tenant concept, so it always returns "".
func OrgIDFromContext(ctx context.Context) string {
	return ""
}

// WithActor attaches the caller identity (e.g. "api", "worker") to the context.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType == "" && actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, [2]string{actorType, actorID})
}

// ActorFromContext returns the actor type/id pair, or ("", "") if unset.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if pair, ok := ctx.Value(actorKey{}).([2]string); ok {
		return pair[0], pair[1]
	}
	return "", ""
}
