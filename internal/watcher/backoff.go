package watcher

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 5 * time.Second
	backoffCap  = 300 * time.Second
)

// backoff computes reconnect delays: exponential with a cap, multiplied by
// a uniform jitter factor in [0.5, 1.5]. The attempt counter resets after
// any successful processing iteration.
type backoff struct {
	base    time.Duration
	cap     time.Duration
	attempt int
	rand    *rand.Rand
}

func newBackoff() *backoff {
	return &backoff{
		base: backoffBase,
		cap:  backoffCap,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// next returns the delay for the current attempt and increments the counter.
func (b *backoff) next() time.Duration {
	d := b.base
	for i := 0; i < b.attempt && d < b.cap; i++ {
		d *= 2
	}
	if d > b.cap {
		d = b.cap
	}
	b.attempt++

	jitter := 0.5 + b.rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func (b *backoff) reset() {
	b.attempt = 0
}
