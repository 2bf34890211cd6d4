package poll

import (
	"context"
	"fmt"
	"time"
)

// WaitOptions bounds a timeout-spaced wait.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	Sleep    SleepFunc
}

// Iterations returns timeout/interval, and never less than one.
func (o WaitOptions) Iterations() int {
	if o.Interval <= 0 {
		return 1
	}
	n := int(o.Timeout / o.Interval)
	if n < 1 {
		n = 1
	}
	return n
}

// Until calls check up to opts.Iterations() times, sleeping opts.Interval
// between calls but not after the last. It returns whether check reported
// done and how many checks ran. An error from check stops the wait.
func Until(ctx context.Context, opts WaitOptions, check func(ctx context.Context) (bool, error)) (bool, int, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	n := opts.Iterations()
	for i := 1; i <= n; i++ {
		done, err := check(ctx)
		if err != nil {
			return false, i, err
		}
		if done {
			return true, i, nil
		}
		if i < n {
			if err := sleep(ctx, opts.Interval); err != nil {
				return false, i, fmt.Errorf("wait interrupted: %w", err)
			}
		}
	}
	return false, n, nil
}
