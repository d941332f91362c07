package domain

import "context"

type ctxKey int

const sessionIDKey ctxKey = iota

// WithSessionID attaches a session identifier to the context so that
// decisions and executions made deeper in the stack can be attributed in
// the audit trail.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session identifier attached to the context, or ""
// when the call is not session-scoped (CLI one-shots, tests).
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
