package errors

// Chain-sidecar helpers for mapping transport and broadcast errors to project
// ErrorCode and retry semantics. Mirrors the pg helpers in pg.go

import (
	"context"
	stderrs "errors"
	"net"
	"net/http"
	"strings"
)

// ChainErrorCode maps an HTTP status from the wallet sidecar to an ErrorCode
func ChainErrorCode(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorCodeTooManyRequests
	case status == http.StatusRequestTimeout:
		return ErrorCodeUnavailable
	case status == http.StatusNotFound:
		return ErrorCodeNotFound
	case status == http.StatusUnauthorized:
		return ErrorCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrorCodeForbidden
	case status == http.StatusConflict:
		return ErrorCodeConflict
	case status >= 400 && status < 500:
		return ErrorCodeInvalidArgument
	case status == http.StatusNotImplemented:
		return ErrorCodeInvalidArgument
	case status >= 500:
		return ErrorCodeUnavailable
	default:
		return ErrorCodeUnknown
	}
}

// FromChainStatus builds an error for a non-2xx sidecar response
func FromChainStatus(status int, msg string) error {
	return New(ChainErrorCode(status), msg)
}

// IsRetryableChain reports whether a chain call failure is worth retrying.
// Local cancellations are never retryable; the caller owns those
func IsRetryableChain(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}

	if e, ok := As(err); ok {
		switch e.Code() {
		case ErrorCodeUnavailable, ErrorCodeTooManyRequests:
			return true
		case ErrorCodeInvalidArgument, ErrorCodeValidation, ErrorCodeNotFound,
			ErrorCodeUnauthorized, ErrorCodeForbidden, ErrorCodeConflict:
			return false
		}
	}

	// Network-level failures are transient
	var ne net.Error
	if stderrs.As(Root(err), &ne) && ne.Timeout() {
		return true
	}

	s := strings.ToLower(Root(err).Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "unexpected eof"),
		strings.Contains(s, "server shutting down"):
		return true
	default:
		return false
	}
}
