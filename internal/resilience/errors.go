package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/buyer-group-cli/pkg/apierr"
)

// Kind classifies a provider failure.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota
	// KindRateLimited is an HTTP 429 or equivalent throttle.
	KindRateLimited
	// KindTransient is a timeout, connection fault, or retryable 5xx.
	KindTransient
	// KindNotFound is an HTTP 404.
	KindNotFound
	// KindCanceled means the caller's context ended.
	KindCanceled
	// KindPermanent is anything else.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	default:
		return "permanent"
	}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// Classify returns the Kind of err.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindTransient
	}

	if code := apierr.StatusCode(err); code != 0 {
		switch {
		case code == 429:
			return KindRateLimited
		case code == 404:
			return KindNotFound
		case IsTransientHTTPStatus(code):
			return KindTransient
		default:
			return KindPermanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return KindTransient
		}
	}
	return KindPermanent
}

// IsTransient reports whether err is safe to retry. Rate limits count.
func IsTransient(err error) bool {
	k := Classify(err)
	return k == KindTransient || k == KindRateLimited
}

// IsRateLimited reports whether err is a provider throttle.
func IsRateLimited(err error) bool {
	return Classify(err) == KindRateLimited
}

// IsTransientHTTPStatus reports whether an HTTP status is retryable.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
