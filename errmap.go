package microservice

import (
	"github.com/goliatone/go-errors"
)

// Envelope is the uniform error payload returned to HTTP clients.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

const (
	envelopeStatus   = "error"
	internalMessage  = "An internal server error occurred."
	validationPrefix = "Invalid input data: "
)

// ErrorMapper translates classified errors into HTTP status codes and
// response envelopes. Categories map to stable statuses; unknown
// categories and unclassified errors collapse to 500 with a generic
// message so internals never leak to clients.
type ErrorMapper struct {
	statuses map[errors.Category]int
	logger   Logger
}

type ErrorMapperOption func(*ErrorMapper)

func WithErrorMapperLogger(logger Logger) ErrorMapperOption {
	return func(m *ErrorMapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewErrorMapper(opts ...ErrorMapperOption) *ErrorMapper {
	m := &ErrorMapper{
		statuses: map[errors.Category]int{
			errors.CategoryNotFound:   404,
			errors.CategoryAuthz:      403,
			errors.CategoryAuth:       401,
			errors.CategoryValidation: 400,
			errors.CategoryBadInput:   400,
			errors.CategoryConflict:   409,
			errors.CategoryRateLimit:  429,
			errors.CategoryOperation:  500,
			errors.CategoryInternal:   500,
		},
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set overrides or adds the status for a category.
func (m *ErrorMapper) Set(cat errors.Category, status int) *ErrorMapper {
	m.statuses[cat] = status
	return m
}

// Map resolves err to an HTTP status and a client-safe envelope.
// Validation errors keep their detail behind a fixed prefix; server-side
// failures are replaced with a generic message and logged.
func (m *ErrorMapper) Map(err error) (int, Envelope) {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		m.logger.Error("unclassified error: %v", err)
		return 500, Envelope{
			Status:  envelopeStatus,
			Message: internalMessage,
			Type:    TextCodeUnclassified,
			Code:    500,
		}
	}

	status, ok := m.statuses[rich.Category]
	if !ok {
		status = 500
	}

	message := rich.Message
	switch {
	case status >= 500:
		m.logger.Error("internal error type=%s: %v", rich.TextCode, err)
		message = internalMessage
	case rich.Category == errors.CategoryValidation:
		message = validationPrefix + rich.Message
	}

	etype := rich.TextCode
	if etype == "" {
		etype = string(rich.Category)
	}

	return status, Envelope{
		Status:  envelopeStatus,
		Message: message,
		Type:    etype,
		Code:    status,
	}
}
