package microservice

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the SessionContext in the given context.
func WithSession(ctx context.Context, session *SessionContext) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (*SessionContext, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*SessionContext)
	return raw, ok
}

// RequireSession returns the active session or ErrNoActiveSession. Every
// TenantDB operation goes through this before touching the store.
func RequireSession(ctx context.Context) (*SessionContext, error) {
	session, ok := SessionFromContext(ctx)
	if !ok || !session.Valid() {
		return nil, ErrNoActiveSession
	}
	return session, nil
}
