package microservice_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
)

func guardHandler(guard *microservice.SessionGuard) router.HandlerFunc {
	return guard.Middleware()(func(ctx router.Context) error {
		return ctx.Next()
	})
}

func TestSessionGuardResolvesCookieCredential(t *testing.T) {
	resolver := new(MockResolver)
	session := &microservice.SessionContext{UserID: "jane@acme.example", TenantID: "acme"}
	resolver.On("Resolve", mock.Anything, "sid-token").Return(session, nil)

	guard := microservice.NewSessionGuard(resolver, nil)

	ctx := router.NewMockContext()
	ctx.CookiesM["sid"] = "sid-token"
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything).Run(func(args mock.Arguments) {
		std := args.Get(0).(context.Context)
		got, ok := microservice.SessionFromContext(std)
		require.True(t, ok)
		assert.Equal(t, "acme", got.TenantID)
	})
	ctx.On("Locals", "session", session).Return(nil)

	err := guardHandler(guard)(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
	resolver.AssertExpectations(t)
}

func TestSessionGuardFallsBackToHeader(t *testing.T) {
	resolver := new(MockResolver)
	session := &microservice.SessionContext{UserID: "jane@acme.example", TenantID: "acme"}
	resolver.On("Resolve", mock.Anything, "header-token").Return(session, nil)

	guard := microservice.NewSessionGuard(resolver, nil)

	ctx := router.NewMockContext()
	ctx.On("GetString", "X-Frappe-Sid", "").Return("header-token")
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything)
	ctx.On("Locals", "session", session).Return(nil)

	err := guardHandler(guard)(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
}

func TestSessionGuardRejectsMissingCredential(t *testing.T) {
	resolver := new(MockResolver)
	guard := microservice.NewSessionGuard(resolver, nil)

	ctx := router.NewMockContext()
	ctx.On("GetString", "X-Frappe-Sid", "").Return("")

	var envelope microservice.Envelope
	ctx.On("JSON", 401, mock.Anything).Run(func(args mock.Arguments) {
		envelope = args.Get(1).(microservice.Envelope)
	}).Return(nil)

	err := guardHandler(guard)(ctx)
	require.NoError(t, err)
	assert.False(t, ctx.NextCalled)
	assert.Equal(t, "error", envelope.Status)
	assert.Equal(t, "no_active_session", envelope.Type)
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestSessionGuardRejectsFailedResolution(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, "bad-token").
		Return(nil, microservice.ErrAuthenticationFailed)

	guard := microservice.NewSessionGuard(resolver, nil)

	ctx := router.NewMockContext()
	ctx.CookiesM["sid"] = "bad-token"
	ctx.On("Context").Return(context.Background())

	var envelope microservice.Envelope
	ctx.On("JSON", 401, mock.Anything).Run(func(args mock.Arguments) {
		envelope = args.Get(1).(microservice.Envelope)
	}).Return(nil)

	err := guardHandler(guard)(ctx)
	require.NoError(t, err)
	assert.False(t, ctx.NextCalled)
	assert.Equal(t, "authentication_failure", envelope.Type)
	assert.Equal(t, 401, envelope.Code)
}

func TestSessionGuardRejectsInvalidSession(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, "odd-token").
		Return(&microservice.SessionContext{UserID: "jane@acme.example"}, nil)

	guard := microservice.NewSessionGuard(resolver, nil)

	ctx := router.NewMockContext()
	ctx.CookiesM["sid"] = "odd-token"
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 401, mock.Anything).Return(nil)

	err := guardHandler(guard)(ctx)
	require.NoError(t, err)
	assert.False(t, ctx.NextCalled, "a session without a tenant never passes")
}

func TestSessionGuardHonorsConfiguredNames(t *testing.T) {
	resolver := new(MockResolver)
	session := &microservice.SessionContext{UserID: "jane@acme.example", TenantID: "acme"}
	resolver.On("Resolve", mock.Anything, "alt-token").Return(session, nil)

	cfg := &microservice.DefaultConfig{
		CredentialCookie: "session_id",
		SessionKey:       "identity",
	}
	guard := microservice.NewSessionGuard(resolver, cfg)

	ctx := router.NewMockContext()
	ctx.CookiesM["session_id"] = "alt-token"
	ctx.On("Context").Return(context.Background())
	ctx.On("SetContext", mock.Anything)
	ctx.On("Locals", "identity", session).Return(nil)

	err := guardHandler(guard)(ctx)
	require.NoError(t, err)
	assert.True(t, ctx.NextCalled)
}
