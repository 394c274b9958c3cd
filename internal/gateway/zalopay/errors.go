package zalopay

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates missing credentials or endpoints. Fatal;
	// surfaces at construction, never mid-flight.
	ErrNotConfigured = errors.New("zalopay: not configured")
	// ErrNetwork wraps timeouts and connection failures. Retry belongs to the
	// reconciler, never to the client itself.
	ErrNetwork = errors.New("zalopay: network failure")
	// ErrRefundExceedsTotal rejects a refund larger than the order total
	// before any network call is made.
	ErrRefundExceedsTotal = errors.New("zalopay: refund amount exceeds order total")
)

// RejectedError is a well-formed business-level failure from the gateway: the
// HTTP call succeeded but the response code signals refusal. Not retryable.
type RejectedError struct {
	Code    int
	SubCode int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("zalopay: rejected (return_code=%d sub=%d): %s", e.Code, e.SubCode, e.Message)
}
