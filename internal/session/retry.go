package session

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"go2tv.app/beamdeck/internal/domain"
)

func (c *Controller) withRetry(ctx context.Context, operation string, call func() error) error {
	if call == nil {
		return errors.New("retry call is nil")
	}

	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	baseBackoff := c.retryBaseBackoff
	if baseBackoff < 0 {
		baseBackoff = 0
	}
	maxBackoff := c.retryMaxBackoff
	if maxBackoff < baseBackoff {
		maxBackoff = baseBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= attempts || !isTransientNetworkError(err) {
			break
		}

		backoff := backoffForAttempt(baseBackoff, maxBackoff, attempt)
		c.logger.Warn(
			"retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.Int("attempts", attempts),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)
		if waitErr := waitForBackoff(ctx, backoff); waitErr != nil {
			return waitErr
		}
	}
	return lastErr
}

func backoffForAttempt(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if max > 0 && backoff >= max {
			return max
		}
	}
	if max > 0 && backoff > max {
		return max
	}
	return backoff
}

func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if domain.CodeOf(err) == domain.CodeTimeout {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"temporar",
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"i/o timeout",
		"network is unreachable",
		"no route to host",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// withTimeout runs call and gives up after timeout. The transport call keeps
// running in the background until it returns; callers close the connection to
// unblock it.
func withTimeout[T any](ctx context.Context, timeout time.Duration, operation string, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{value: v, err: err}
	}()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timerC:
		return zero, domain.NewError(domain.CodeTimeout, operation+" timed out after "+timeout.String(), nil)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func callWithTimeout(ctx context.Context, timeout time.Duration, operation string, call func() error) error {
	_, err := withTimeout(ctx, timeout, operation, func() (struct{}, error) {
		return struct{}{}, call()
	})
	return err
}
