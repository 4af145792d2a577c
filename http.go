package microservice

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"
)

// SessionGuard is HTTP middleware that resolves the request credential to
// an active session before handlers run. The credential is taken from the
// configured cookie, falling back to the configured header. Requests with
// no credential, a guest credential, or a credential the resolver rejects
// are answered with the error envelope and never reach the handler.
type SessionGuard struct {
	resolver IdentityResolver
	cfg      Config
	mapper   *ErrorMapper
	logger   Logger
}

type SessionGuardOption func(*SessionGuard)

func WithGuardLogger(logger Logger) SessionGuardOption {
	return func(g *SessionGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGuardErrorMapper(mapper *ErrorMapper) SessionGuardOption {
	return func(g *SessionGuard) {
		if mapper != nil {
			g.mapper = mapper
		}
	}
}

func NewSessionGuard(resolver IdentityResolver, cfg Config, opts ...SessionGuardOption) *SessionGuard {
	if cfg == nil {
		cfg = &DefaultConfig{}
	}
	g := &SessionGuard{
		resolver: resolver,
		cfg:      cfg,
		mapper:   NewErrorMapper(),
		logger:   defLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the guard as router middleware. On success the
// session is stored both in the request context (SessionFromContext) and
// in router locals under the configured session key.
func (g *SessionGuard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			credential := g.extract(ctx)
			if credential == "" {
				return g.reject(ctx, ErrNoActiveSession)
			}

			stdCtx, cancel := context.WithTimeout(ctx.Context(), g.cfg.GetResolveTimeout())
			defer cancel()

			session, err := g.resolver.Resolve(stdCtx, credential)
			if err != nil {
				return g.reject(ctx, err)
			}
			if !session.Valid() {
				return g.reject(ctx, ErrAuthenticationFailed)
			}

			ctx.SetContext(WithSession(ctx.Context(), session))
			ctx.Locals(g.cfg.GetSessionContextKey(), session)

			return ctx.Next()
		}
	}
}

func (g *SessionGuard) extract(ctx router.Context) string {
	if v := ctx.Cookies(g.cfg.GetCredentialCookie()); v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(ctx.GetString(g.cfg.GetCredentialHeader(), ""))
}

func (g *SessionGuard) reject(ctx router.Context, err error) error {
	g.logger.Warn("session rejected: %v", err)
	status, envelope := g.mapper.Map(err)
	return ctx.JSON(status, envelope)
}

// RegisterHealthRoute mounts a liveness endpoint. It sits outside the
// session guard so probes need no credential.
func RegisterHealthRoute(registrar RouteRegistrar) {
	registrar.Get("/health", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]any{
			"status": "ok",
		})
	})
}
