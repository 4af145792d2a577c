package microservice

import "fmt"

// SessionContext is the resolved, per-request identity and tenant binding.
// It is created at request entry by an IdentityResolver, travels in the
// request context, and is never persisted or shared across requests.
type SessionContext struct {
	UserID     string `json:"user_id"`
	TenantID   string `json:"tenant_id"`
	Credential string `json:"-"`
}

// Valid reports whether the session binds both a user and a tenant.
func (s *SessionContext) Valid() bool {
	return s != nil && s.UserID != "" && s.TenantID != ""
}

func (s SessionContext) String() string {
	// credential stays out of logs
	return fmt.Sprintf("SessionContext{user: %s, tenant: %s}", s.UserID, s.TenantID)
}
