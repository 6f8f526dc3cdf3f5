package sources

import (
	"errors"
	"fmt"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrBaseSource is returned when the mandatory base dataset cannot be fetched.
// Every other source degrades to an empty table instead.
var ErrBaseSource = errors.New("base source unavailable")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Temporary reports whether the status is worth retrying: timeouts, rate
// limiting and server errors.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// retryable keeps permanent HTTP errors and open breakers from being retried.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, gobreaker.ErrOpenState)
}
