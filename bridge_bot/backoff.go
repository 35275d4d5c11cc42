package main

import (
	"math/rand"
	"sync"
	"time"
)

// ExponentialBackoff produces jittered reconnect delays that double up to a
// bounded maximum. Reset after a successful connection so the next outage
// starts small again.
type ExponentialBackoff struct {
	mu   sync.Mutex
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

func NewExponentialBackoff(base, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{base: base, max: max}
}

// Delay returns the next sleep. The value is jittered inside the current
// step and never exceeds the configured maximum.
func (b *ExponentialBackoff) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cur == 0 {
		b.cur = b.base
	} else {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	half := b.cur / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func (b *ExponentialBackoff) Reset() {
	b.mu.Lock()
	b.cur = 0
	b.mu.Unlock()
}
