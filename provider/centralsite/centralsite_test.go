package centralsite_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	microservice "github.com/vyogotech/erpnext-microservices-lib"
	"github.com/vyogotech/erpnext-microservices-lib/provider/centralsite"
)

func newCentralSite(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *centralsite.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := centralsite.New(server.URL, centralsite.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return server, client
}

func TestResolveValidSession(t *testing.T) {
	var gotCookie string
	_, client := newCentralSite(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, centralsite.DefaultLoggedUserPath, r.URL.Path)
		if c, err := r.Cookie("sid"); err == nil {
			gotCookie = c.Value
		}
		json.NewEncoder(w).Encode(map[string]string{
			"message":   "jane@acme.example",
			"tenant_id": "acme",
		})
	})

	session, err := client.Resolve(context.Background(), "sid-token")
	require.NoError(t, err)
	assert.Equal(t, "sid-token", gotCookie, "credential must be replayed as the sid cookie")
	assert.Equal(t, "jane@acme.example", session.UserID)
	assert.Equal(t, "acme", session.TenantID)
	assert.Equal(t, "sid-token", session.Credential)
}

func TestResolveRejectsEmptyAndGuestCredential(t *testing.T) {
	_, client := newCentralSite(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("central site must not be called")
	})

	_, err := client.Resolve(context.Background(), "")
	assert.True(t, microservice.IsAuthenticationError(err))

	_, err = client.Resolve(context.Background(), "Guest")
	assert.True(t, microservice.IsAuthenticationError(err))
}

func TestResolveRejectsReservedUsers(t *testing.T) {
	tests := []struct {
		name string
		user string
	}{
		{"guest session", "Guest"},
		{"administrator session", "Administrator"},
		{"empty user", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newCentralSite(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{
					"message":   tt.user,
					"tenant_id": "acme",
				})
			})

			_, err := client.Resolve(context.Background(), "sid-token")
			require.Error(t, err)
			assert.True(t, microservice.IsAuthenticationError(err))
		})
	}
}

func TestResolveRejectsSystemTenant(t *testing.T) {
	_, client := newCentralSite(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"message":   "ops@example.com",
			"tenant_id": "SYSTEM",
		})
	})

	_, err := client.Resolve(context.Background(), "sid-token")
	require.Error(t, err)
	assert.True(t, microservice.IsAuthenticationError(err))
}

func TestResolveRejectsUpstreamFailure(t *testing.T) {
	_, client := newCentralSite(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Resolve(context.Background(), "stale-token")
	require.Error(t, err)
	assert.True(t, microservice.IsAuthenticationError(err))
}

func TestResolveUsesTenantLookupFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no tenant in the profile response
		json.NewEncoder(w).Encode(map[string]string{"message": "jane@acme.example"})
	}))
	t.Cleanup(server.Close)

	lookup := microservice.TenantLookupFunc(func(ctx context.Context, userID string) (string, error) {
		assert.Equal(t, "jane@acme.example", userID)
		return "acme", nil
	})

	client, err := centralsite.New(server.URL,
		centralsite.WithHTTPClient(server.Client()),
		centralsite.WithTenantLookup(lookup),
	)
	require.NoError(t, err)

	session, err := client.Resolve(context.Background(), "sid-token")
	require.NoError(t, err)
	assert.Equal(t, "acme", session.TenantID)
}

func TestResolveFailsWithoutTenant(t *testing.T) {
	_, client := newCentralSite(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "jane@acme.example"})
	})

	_, err := client.Resolve(context.Background(), "sid-token")
	require.Error(t, err)
	assert.True(t, microservice.IsAuthenticationError(err))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := centralsite.New("not a url")
	require.Error(t, err)

	_, err = centralsite.New("")
	require.Error(t, err)
}

func TestResolveCustomLoggedUserPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{
			"message":   "jane@acme.example",
			"tenant_id": "acme",
		})
	}))
	t.Cleanup(server.Close)

	client, err := centralsite.New(server.URL,
		centralsite.WithHTTPClient(server.Client()),
		centralsite.WithLoggedUserPath("/api/method/custom.whoami"),
	)
	require.NoError(t, err)

	_, err = client.Resolve(context.Background(), "sid-token")
	require.NoError(t, err)
	assert.Equal(t, "/api/method/custom.whoami", gotPath)
}
