package jobs

import (
	"context"
	"fmt"
	"time"

	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 60
)

// PollFunc performs one attempt. It reports done=true to stop polling.
// A non-nil error also stops polling and is returned as is.
type PollFunc func(ctx context.Context, attempt int) (done bool, err error)

// Poller re-runs a check at a fixed interval, at most MaxAttempts times.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// NewPoller builds a poller, falling back to 1s / 60 attempts.
func NewPoller(interval time.Duration, maxAttempts int) Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	return Poller{Interval: interval, MaxAttempts: maxAttempts}
}

// Poll runs fn until it is done, fails, ctx ends, or the attempt budget is
// spent. Exhausting the budget yields ErrPollTimeout, never a failure, and no
// attempt beyond MaxAttempts is made.
func (p Poller) Poll(ctx context.Context, fn PollFunc) error {
	p = NewPoller(p.Interval, p.MaxAttempts)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		done, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return appErrors.Clone(appErrors.ErrPollTimeout, fmt.Sprintf("not completed after %d attempts at %s intervals", p.MaxAttempts, p.Interval))
}
