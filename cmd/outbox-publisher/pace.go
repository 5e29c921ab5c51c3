package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer decides how long the loop idles between batches. Failures double the
// wait up to maxBackoff; any success resets it to the poll interval.
type pacer struct {
	poll    time.Duration
	ceiling time.Duration
	backoff time.Duration
	jitter  func(time.Duration) time.Duration
}

func newPacer(poll time.Duration) pacer {
	return pacer{poll: poll, ceiling: maxBackoff, backoff: poll, jitter: withJitter}
}

// next returns zero when the previous batch found rows and succeeded.
func (p *pacer) next(found bool, err error) time.Duration {
	switch {
	case err != nil:
		p.backoff = nextBackoff(p.backoff, p.poll, p.ceiling)
		return p.jitter(p.backoff)
	case found:
		p.backoff = p.poll
		return 0
	default:
		p.backoff = p.poll
		return p.jitter(p.poll)
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
