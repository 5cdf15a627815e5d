package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies provider failures by how callers should react.
type ErrorKind int

const (
	// KindFatal failures will not succeed on retry.
	KindFatal ErrorKind = iota
	// KindThrottled failures hit a rate limit or quota (HTTP 429).
	KindThrottled
	// KindUnavailable failures are temporary server-side outages.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindUnavailable:
		return "unavailable"
	default:
		return "fatal"
	}
}

// ProviderError is a classified failure returned by an AI provider.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int           // HTTP status, 0 when unknown
	RetryAfter time.Duration // server supplied delay hint, 0 when absent
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a ProviderError. Context cancellation and errors
// that are already classified are returned unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	statusCode, retryAfter := statusOf(err)
	return &ProviderError{
		Provider:   provider,
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// IsRetryable reports whether err is a throttled or unavailable provider error.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == KindThrottled || pe.Kind == KindUnavailable
}

// RetryAfter returns the delay hint carried by err, if any.
// IsThrottled reports whether err is a rate limit or quota failure.
func IsThrottled(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindThrottled
}

func RetryAfter(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

func kindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests:
		return KindThrottled
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindUnavailable
	default:
		return KindFatal
	}
}

// statusOf extracts an HTTP status code and retry hint from the typed errors
// returned by the Google client stack, falling back to langchaingo's
// standardized error codes.
func statusOf(err error) (int, time.Duration) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code, retryAfterHeader(gerr.Header)
	}

	var aerr *apierror.APIError
	if errors.As(err, &aerr) {
		var hint time.Duration
		if info := aerr.Details().RetryInfo; info != nil && info.GetRetryDelay() != nil {
			hint = info.GetRetryDelay().AsDuration()
		}
		if code := aerr.HTTPCode(); code > 0 {
			return code, hint
		}
		if st := aerr.GRPCStatus(); st != nil {
			return httpStatusForGRPC(st.Code()), hint
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		return httpStatusForGRPC(st.Code()), 0
	}

	var lerr *llms.Error
	if errors.As(err, &lerr) {
		switch lerr.Code {
		case llms.ErrCodeRateLimit, llms.ErrCodeQuotaExceeded:
			return http.StatusTooManyRequests, 0
		case llms.ErrCodeProviderUnavailable:
			return http.StatusServiceUnavailable, 0
		case llms.ErrCodeAuthentication:
			return http.StatusUnauthorized, 0
		case llms.ErrCodeInvalidRequest:
			return http.StatusBadRequest, 0
		case llms.ErrCodeResourceNotFound:
			return http.StatusNotFound, 0
		}
	}
	return 0, 0
}

func httpStatusForGRPC(code codes.Code) int {
	switch code {
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Internal:
		return http.StatusInternalServerError
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	default:
		return 0
	}
}

func retryAfterHeader(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	seconds, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
