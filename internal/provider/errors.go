package provider

import (
	"errors"
	"fmt"
)

// Category normalizes upstream transport failures. Business rejections are
// not errors; the gateway reports them in its response types.
type Category string

const (
	// CategoryTimeout indicates the authority took too long to respond.
	CategoryTimeout Category = "timeout"

	// CategoryOutage indicates the authority is unavailable (5xx, refused
	// connections, resets).
	CategoryOutage Category = "outage"

	// CategoryRateLimited indicates too many requests.
	CategoryRateLimited Category = "rate_limited"

	// CategoryAuthentication indicates credential or permission issues.
	CategoryAuthentication Category = "authentication"

	// CategoryBadResponse indicates the authority returned a malformed body.
	CategoryBadResponse Category = "bad_response"

	// CategoryInternal indicates an unexpected local failure.
	CategoryInternal Category = "internal"
)

// UpstreamError wraps a gateway failure with normalized categorization.
type UpstreamError struct {
	Category   Category
	Message    string
	Underlying error
	Retryable  bool
}

func (e *UpstreamError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("upstream [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("upstream [%s]: %s", e.Category, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Underlying }

// NewUpstreamError creates a normalized upstream error. Retryability follows
// the category: only infrastructure-level failures are worth retrying.
func NewUpstreamError(category Category, message string, underlying error) *UpstreamError {
	retryable := category == CategoryTimeout ||
		category == CategoryOutage ||
		category == CategoryRateLimited

	return &UpstreamError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// CategoryOf extracts the category from an error.
func CategoryOf(err error) Category {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Category
	}
	return CategoryInternal
}
