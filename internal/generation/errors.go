package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/hyperjump/bayan/internal/retry"
)

// StatusError is a non-200 response from the generation API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation API status %d", e.StatusCode)
	}
	return fmt.Sprintf("generation API status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is an HTTP 429 from the generation API.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// IsTimeout reports whether err is a network or client timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify marks err permanent unless it is rate limiting or a timeout.
func classify(err error) error {
	if err == nil || IsRateLimited(err) || IsTimeout(err) {
		return err
	}
	return retry.Permanent(err)
}
