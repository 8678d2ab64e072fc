package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultDelay   = 2 * time.Second
	DefaultTimeout = 12 * time.Second
)

// AsyncRetry runs fn once more after delay, in its own goroutine, bounded by
// timeout. Outcomes are logged as <name>_retry_ok / <name>_retry_failed with
// the given attributes. done, if non-nil, is closed when the attempt ends.
func AsyncRetry(logger *slog.Logger, name string, delay, timeout time.Duration, fn func(ctx context.Context) error, attrs ...any) (done <-chan struct{}) {
	ch := make(chan struct{})
	if fn == nil {
		close(ch)
		return ch
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(name+"_retry_scheduled", append([]any{"delay", delay.String()}, attrs...)...)

	go func() {
		defer close(ch)
		timer := time.NewTimer(delay)
		<-timer.C

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn(name+"_retry_failed", append([]any{"error", err.Error()}, attrs...)...)
			return
		}
		logger.Info(name+"_retry_ok", attrs...)
	}()
	return ch
}
