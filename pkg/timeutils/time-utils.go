package timeutils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAllAttemptsFailed = errors.New("all attempts failed")
)

// Retry calls function once and then once more after each delay in
// attemptDelays while onFinished reports that another attempt is needed.
// The last error returned by function is joined with ErrAllAttemptsFailed.
func Retry[T any](
	ctx context.Context,
	attemptDelays []time.Duration,
	function func(context.Context) (T, error),
	onFinished func(T, error) (needRetry bool),
) (T, error) {
	var lastErr error
	for attempt := 0; attempt <= len(attemptDelays); attempt++ {
		if ctx.Err() != nil {
			var res T
			return res, fmt.Errorf("retry canceled: %w", ctx.Err())
		}
		res, err := function(ctx)
		if !onFinished(res, err) {
			return res, err
		}
		lastErr = err
		if attempt == len(attemptDelays) {
			break
		}
		if err := SleepCtx(ctx, attemptDelays[attempt]); err != nil {
			var res T
			return res, err
		}
	}
	var res T
	return res, errors.Join(ErrAllAttemptsFailed, lastErr)
}

func SleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
