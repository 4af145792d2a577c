package microservice

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeAuthenticationFailure = "authentication_failure"
	TextCodeTenantResolution      = "tenant_resolution_failure"
	TextCodeNoActiveSession       = "no_active_session"
	TextCodeCrossTenantAccess     = "cross_tenant_access"
	TextCodeDocumentNotFound      = "document_not_found"
	TextCodeDocumentExists        = "document_exists"
	TextCodeValidationFailure     = "validation_failure"
	TextCodeHookFailure           = "hook_failure"
	TextCodeUnclassified          = "unclassified_failure"
)

// ErrAuthenticationFailed is returned when the session credential cannot be
// validated: the collaborator is unreachable, timed out, or rejected it.
var ErrAuthenticationFailed = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailure).
	WithCode(errors.CodeUnauthorized)

// ErrTenantResolution is returned when an otherwise valid session has no
// tenant. Isolation cannot be enforced without one, so the caller is never
// treated as tenant-less or global.
var ErrTenantResolution = errors.New("unable to resolve tenant for user", errors.CategoryAuth).
	WithTextCode(TextCodeTenantResolution).
	WithCode(errors.CodeUnauthorized)

// ErrNoActiveSession is returned by TenantDB operations invoked without a
// resolved session in the context.
var ErrNoActiveSession = errors.New("no active session", errors.CategoryAuth).
	WithTextCode(TextCodeNoActiveSession).
	WithCode(errors.CodeUnauthorized)

// ErrCrossTenantAccess is returned when a document addressed by name is not
// visible under the session tenant. The failure is deliberately identical
// whether the record lives under another tenant or does not exist at all.
var ErrCrossTenantAccess = errors.New("access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeCrossTenantAccess).
	WithCode(errors.CodeForbidden)

// ErrDocumentNotFound is the store-level miss for a doctype/name pair.
var ErrDocumentNotFound = errors.New("document not found", errors.CategoryNotFound).
	WithTextCode(TextCodeDocumentNotFound).
	WithCode(errors.CodeNotFound)

// ErrDocumentExists is returned on insert when the doctype/name pair is taken.
var ErrDocumentExists = errors.New("document already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDocumentExists).
	WithCode(errors.CodeConflict)

// ValidationFailed builds a domain validation failure with the given detail.
func ValidationFailed(detail string) *errors.Error {
	return errors.New(detail, errors.CategoryValidation).
		WithTextCode(TextCodeValidationFailure).
		WithCode(errors.CodeBadRequest)
}

// HookFailed wraps a hook error that carries no classification of its own.
func HookFailed(cause error, doctype string, event Event) *errors.Error {
	return errors.Wrap(cause, errors.CategoryOperation, "lifecycle hook failed").
		WithTextCode(TextCodeHookFailure).
		WithMetadata(map[string]any{
			"doctype": doctype,
			"event":   string(event),
		})
}

func hasTextCode(err error, code string) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// IsAuthenticationError reports whether err is a credential or tenant
// resolution failure.
func IsAuthenticationError(err error) bool {
	return hasTextCode(err, TextCodeAuthenticationFailure) ||
		hasTextCode(err, TextCodeTenantResolution) ||
		hasTextCode(err, TextCodeNoActiveSession)
}

// IsCrossTenant reports whether err is a tenant ownership failure.
func IsCrossTenant(err error) bool {
	return hasTextCode(err, TextCodeCrossTenantAccess)
}

// IsNotFound reports whether err is a store miss.
func IsNotFound(err error) bool {
	if hasTextCode(err, TextCodeDocumentNotFound) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Category == errors.CategoryNotFound
	}
	return false
}

// IsValidation reports whether err is a domain validation failure.
func IsValidation(err error) bool {
	if hasTextCode(err, TextCodeValidationFailure) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Category == errors.CategoryValidation ||
			rich.Category == errors.CategoryBadInput
	}
	return false
}

// IsConflict reports whether err is a duplicate-document or duplicate
// registration failure.
func IsConflict(err error) bool {
	if hasTextCode(err, TextCodeDocumentExists) {
		return true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Category == errors.CategoryConflict
	}
	return false
}

// IsHookFailure reports whether err was raised by a lifecycle hook that
// carried no classification of its own.
func IsHookFailure(err error) bool {
	return hasTextCode(err, TextCodeHookFailure)
}
