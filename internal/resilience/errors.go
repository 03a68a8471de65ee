package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/sells-group/geo-enrich/internal/model"
)

// TransientError marks a geocoder failure where asking again later can give
// a different answer, such as a throttled or overloaded endpoint.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as transient. statusCode is the geocoder's
// HTTP status, or 0 when no response arrived.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient decides whether a failed row lookup deserves another billed
// attempt. An error response from the geocoder is judged by its status code
// alone, so a rejected key (403) is never retried whatever its message says.
// Without a status, explicit TransientErrors, per-request deadlines, timeouts
// and dropped connections count as transient. Cancellation never does.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var tpe *model.TransportError
	if errors.As(err, &tpe) && tpe.StatusCode >= http.StatusBadRequest {
		return IsTransientHTTPStatus(tpe.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// eris flattens some net/http errors into plain strings.
	msg := strings.ToLower(err.Error())
	for _, p := range connectionFailures {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var connectionFailures = []string{
	"connection reset by peer",
	"broken pipe",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"client.timeout exceeded",
}

// IsTransientHTTPStatus reports whether a geocoder status is worth retrying:
// request timeout, throttling (429, the usual answer once the key's rate is
// exceeded) and the gateway family of 5xx errors. 4xx statuses about the
// request or the key are final.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
