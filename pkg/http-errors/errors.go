package httpErrors

import "net/http"

// Code enumerates typed error categories so the HTTP layer can map them cleanly.
type Code string

const (
	CodeInvalidInput    Code = "invalid_input"
	CodeUnauthenticated Code = "unauthenticated"
	CodeNotFound        Code = "not_found"
	CodeUnavailable     Code = "unavailable"
	CodeConfiguration   Code = "configuration"
	CodeBuildFailure    Code = "build_failure"
	CodeInternal        Code = "internal_error"
)

// GatewayError wraps domain or infrastructure failures with a stable code.
type GatewayError struct {
	Code    Code
	Message string
	Err     error
}

func (e GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e GatewayError) Unwrap() error {
	return e.Err
}

func New(code Code, msg string) GatewayError {
	return GatewayError{Code: code, Message: msg}
}

func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeBuildFailure:
		return http.StatusBadGateway
	case CodeConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
