package microservice

import (
	"context"

	"github.com/goliatone/go-errors"
)

// StoreTenantLookup resolves a user's tenant from a document store. It
// reads the user's record from userDoctype and returns the tenant field.
// Disabled users resolve to an authentication error, mirroring how the
// central site treats deactivated accounts.
func StoreTenantLookup(store DocumentStore, userDoctype, tenantField string) TenantLookupFunc {
	if userDoctype == "" {
		userDoctype = "User"
	}
	if tenantField == "" {
		tenantField = "tenant_id"
	}
	return func(ctx context.Context, userID string) (string, error) {
		doc, err := store.Get(ctx, userDoctype, userID)
		if err != nil {
			if IsNotFound(err) {
				return "", errors.Wrap(err, errors.CategoryAuth, "user has no tenant mapping").
					WithTextCode(TextCodeTenantResolution).
					WithCode(errors.CodeUnauthorized)
			}
			return "", errors.Wrap(err, errors.CategoryAuth, "tenant lookup failed").
				WithTextCode(TextCodeTenantResolution).
				WithCode(errors.CodeUnauthorized)
		}

		if enabled, ok := doc.GetBool("enabled"); ok && !enabled {
			return "", errors.New("user is disabled", errors.CategoryAuth).
				WithTextCode(TextCodeAuthenticationFailure).
				WithCode(errors.CodeUnauthorized)
		}

		tenant := doc.TenantID
		if v, ok := doc.GetString(tenantField); ok && v != "" {
			tenant = v
		}
		if tenant == "" {
			return "", errors.New("user record carries no tenant", errors.CategoryAuth).
				WithTextCode(TextCodeTenantResolution).
				WithCode(errors.CodeUnauthorized)
		}
		return tenant, nil
	}
}
