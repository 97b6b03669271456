package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

// DefaultTimeout bounds a call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// Bounded enforces a per-call timeout on an Oracle and tags every failure
// with apperr.ErrOracleTransport or apperr.ErrOracleRequest.
type Bounded struct {
	next    Oracle
	timeout time.Duration
}

// NewBounded wraps next. A non-positive timeout selects DefaultTimeout.
func NewBounded(next Oracle, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bounded{next: next, timeout: timeout}
}

// Generate calls the wrapped oracle under the timeout.
func (b *Bounded) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.next.Generate(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, Classify(err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: oracle: empty response", apperr.ErrOracleRequest)
	}
	return resp, nil
}

var statusCode = regexp.MustCompile(`\b([45]\d\d)\b`)

var transientKeywords = []string{
	"timeout",
	"timed out",
	"temporary",
	"connection reset",
	"connection refused",
	"eof",
	"broken pipe",
	"network unreachable",
	"no such host",
	"rate limit",
	"too many requests",
	"overloaded",
	"unavailable",
}

// Classify wraps err with the matching oracle error kind. Errors already
// carrying a kind are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrOracleTransport) || errors.Is(err, apperr.ErrOracleRequest) {
		return err
	}
	if isTransport(err) {
		return fmt.Errorf("%w: %w", apperr.ErrOracleTransport, err)
	}
	return fmt.Errorf("%w: %w", apperr.ErrOracleRequest, err)
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	if m := statusCode.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch {
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return true
		default:
			return false
		}
	}

	lower := strings.ToLower(msg)
	for _, kw := range transientKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
