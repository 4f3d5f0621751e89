package producer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits delay*(i+1) before attempt i+2.
type linearBackOff struct {
	delay time.Duration
	n     int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.delay * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// newRetryBackOff returns the backoff policy allowing maxRetries
// retries after the first attempt. The waits stop as soon as ctx is
// done.
func newRetryBackOff(ctx context.Context, delay time.Duration, maxRetries int) backoff.BackOffContext {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: delay}, uint64(maxRetries)),
		ctx,
	)
}
