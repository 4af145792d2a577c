package microservice

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// IdentityResolver validates an opaque session credential against the
// external authentication collaborator and produces the caller's session.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*SessionContext, error)
}

// TenantLookup resolves the tenant a user belongs to. Deployments whose
// authentication collaborator does not return a tenant in the profile
// response use a lookup against a user directory instead.
type TenantLookup interface {
	TenantFor(ctx context.Context, userID string) (string, error)
}

// TenantLookupFunc adapts a function to the TenantLookup interface.
type TenantLookupFunc func(ctx context.Context, userID string) (string, error)

func (f TenantLookupFunc) TenantFor(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

// Filters narrows a list/count/exists call. Keys name document fields;
// the reserved doctype, name, and tenant keys match document attributes.
type Filters map[string]any

// Clone returns a shallow copy so callers can add constraints without
// mutating the caller-supplied map.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ListOptions carries projection and pagination for list calls.
type ListOptions struct {
	Fields  []string
	Limit   int
	Offset  int
	OrderBy string
}

// DocumentStore is the backing document store consumed by TenantDB. It has
// no notion of sessions: tenant constraints arrive as ordinary filters and
// document attributes. Implementations must be safe for concurrent use and
// return errors matching IsNotFound / IsConflict for a missing document and
// a duplicate insert so the error mapper can classify them.
type DocumentStore interface {
	List(ctx context.Context, doctype string, filters Filters, opts ListOptions) ([]*Document, error)
	Get(ctx context.Context, doctype, name string) (*Document, error)
	Insert(ctx context.Context, doc *Document) (*Document, error)
	Update(ctx context.Context, doc *Document) (*Document, error)
	Delete(ctx context.Context, doctype, name string) error
	Count(ctx context.Context, doctype string, filters Filters) (int, error)
	Exists(ctx context.Context, doctype, name string) (bool, error)
}

// Config holds the knobs shared by the middleware, the resolver client, and
// the resource controller.
type Config interface {
	GetCentralSiteURL() string
	GetResolveTimeout() time.Duration
	GetCredentialCookie() string
	GetCredentialHeader() string
	GetSessionContextKey() string
	GetTenantField() string
	GetResourceBasePath() string
}

// DefaultConfig implements Config with sensible zero-value fallbacks.
type DefaultConfig struct {
	CentralSiteURL   string
	ResolveTimeout   time.Duration
	CredentialCookie string
	CredentialHeader string
	SessionKey       string
	TenantField      string
	ResourceBasePath string
}

func (c DefaultConfig) GetCentralSiteURL() string { return c.CentralSiteURL }

func (c DefaultConfig) GetResolveTimeout() time.Duration {
	if c.ResolveTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ResolveTimeout
}

func (c DefaultConfig) GetCredentialCookie() string {
	if c.CredentialCookie == "" {
		return "sid"
	}
	return c.CredentialCookie
}

func (c DefaultConfig) GetCredentialHeader() string {
	if c.CredentialHeader == "" {
		return "X-Frappe-Sid"
	}
	return c.CredentialHeader
}

func (c DefaultConfig) GetSessionContextKey() string {
	if c.SessionKey == "" {
		return "session"
	}
	return c.SessionKey
}

func (c DefaultConfig) GetTenantField() string {
	if c.TenantField == "" {
		return "tenant_id"
	}
	return c.TenantField
}

func (c DefaultConfig) GetResourceBasePath() string {
	if c.ResourceBasePath == "" {
		return "/api/resource"
	}
	return c.ResourceBasePath
}

// NewDefaultLogger returns the stdout logger used when no Logger is
// configured.
func NewDefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
