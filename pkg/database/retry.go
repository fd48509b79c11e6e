package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	retryAttempts = 3
	retryBaseWait = time.Second
)

// backoff returns the wait before retry n (0-based): 1s, 2s, 4s, each with
// up to 25% jitter in either direction.
func backoff(n int) time.Duration {
	base := retryBaseWait << max(n, 0)
	jitter := (rand.Float64()*2 - 1) * 0.25 // #nosec G404 -- jitter only
	return base + time.Duration(float64(base)*jitter)
}

// retryable reports whether err is a transient connection failure. SQL
// errors returned by the server are never retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || pgconn.SafeToRetry(err)
}

// retry runs fn up to retryAttempts times while it fails with a retryable
// error.
func retry(ctx context.Context, logger *slog.Logger, what string, fn func() error) error {
	var err error
	for attempt := range retryAttempts {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("%s: %w", what, err)
		}
		if attempt == retryAttempts-1 {
			break
		}

		wait := backoff(attempt)
		if logger != nil {
			logger.WarnContext(ctx, what+" failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", what, retryAttempts, err)
}
