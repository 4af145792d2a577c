// Package centralsite resolves session credentials against a central
// Frappe-style auth site. A credential is the caller's session id; the
// provider replays it as a cookie against the central site's logged-user
// endpoint and maps the reply to a session context.
package centralsite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
)

// DefaultLoggedUserPath is the central-site endpoint answering "who owns
// this session".
const DefaultLoggedUserPath = "/api/method/frappe.auth.get_logged_user"

const (
	guestUser     = "Guest"
	adminUser     = "Administrator"
	systemTenant  = "SYSTEM"
	sessionCookie = "sid"
)

// Client resolves credentials against the central site. It implements
// microservice.IdentityResolver.
type Client struct {
	baseURL        string
	loggedUserPath string
	httpClient     *http.Client
	tenantLookup   microservice.TenantLookup
	logger         microservice.Logger
}

type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger microservice.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTenantLookup sets a fallback tenant source for central sites that
// do not return a tenant alongside the user.
func WithTenantLookup(lookup microservice.TenantLookup) Option {
	return func(c *Client) {
		c.tenantLookup = lookup
	}
}

func WithLoggedUserPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.loggedUserPath = path
		}
	}
}

// New builds a Client for the central site at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New(
			fmt.Sprintf("invalid central site URL %q", baseURL),
			errors.CategoryBadInput,
		).WithCode(errors.CodeBadRequest)
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		loggedUserPath: DefaultLoggedUserPath,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		logger:         microservice.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type loggedUserResponse struct {
	Message  string `json:"message"`
	TenantID string `json:"tenant_id"`
}

// Resolve validates the credential against the central site and returns
// the owning user and tenant. Guest sessions, system accounts, and the
// reserved system tenant never resolve.
func (c *Client) Resolve(ctx context.Context, credential string) (*microservice.SessionContext, error) {
	if credential == "" || credential == guestUser {
		return nil, microservice.ErrNoActiveSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.loggedUserPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "building central site request")
	}
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: credential})
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "central site unreachable").
			WithTextCode(microservice.TextCodeAuthenticationFailure).
			WithCode(errors.CodeUnauthorized)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "reading central site response").
			WithTextCode(microservice.TextCodeAuthenticationFailure).
			WithCode(errors.CodeUnauthorized)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("central site rejected credential status=%d", resp.StatusCode)
		return nil, microservice.ErrAuthenticationFailed
	}

	var parsed loggedUserResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "decoding central site response").
			WithTextCode(microservice.TextCodeAuthenticationFailure).
			WithCode(errors.CodeUnauthorized)
	}

	user := strings.TrimSpace(parsed.Message)
	if user == "" || user == guestUser || user == adminUser {
		return nil, microservice.ErrAuthenticationFailed
	}

	tenant := strings.TrimSpace(parsed.TenantID)
	if tenant == "" && c.tenantLookup != nil {
		tenant, err = c.tenantLookup.TenantFor(ctx, user)
		if err != nil {
			return nil, err
		}
	}
	if tenant == "" {
		return nil, microservice.ErrTenantResolution
	}
	if tenant == systemTenant {
		c.logger.Warn("refusing system tenant session user=%s", user)
		return nil, microservice.ErrAuthenticationFailed
	}

	return &microservice.SessionContext{
		UserID:     user,
		TenantID:   tenant,
		Credential: credential,
	}, nil
}
