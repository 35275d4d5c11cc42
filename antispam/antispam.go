package antispam

import (
	"sync"
	"time"
)

// Interval is one admission tier: no more than Max events inside Window.
type Interval struct {
	Window time.Duration
	Max    int
}

// DefaultIntervals are the tiers applied to chat senders. All tiers must
// hold at once, so the most restrictive one wins.
var DefaultIntervals = []Interval{
	{Window: 4 * time.Second, Max: 5},
	{Window: 10 * time.Second, Max: 10},
	{Window: 60 * time.Second, Max: 40},
}

// AntiSpam keeps a timestamp log per caller and answers whether stamping one
// more event now would push any tier over its max. The log is pruned lazily
// past the widest configured window.
type AntiSpam struct {
	mu        sync.Mutex
	intervals []Interval
	widest    time.Duration
	stamps    []time.Time
	now       func() time.Time
}

func New(intervals []Interval) *AntiSpam {
	a := &AntiSpam{intervals: intervals, now: time.Now}
	for _, iv := range intervals {
		if iv.Window > a.widest {
			a.widest = iv.Window
		}
	}
	return a
}

// Spammy reports whether accepting one more event right now would exceed any
// tier. The pending event itself counts toward each tier.
func (a *AntiSpam) Spammy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.prune(now)
	for _, iv := range a.intervals {
		cutoff := now.Add(-iv.Window)
		count := 1 // the pending event
		for _, ts := range a.stamps {
			if ts.After(cutoff) {
				count++
			}
		}
		if count > iv.Max {
			return true
		}
	}
	return false
}

// Stamp records an accepted event.
func (a *AntiSpam) Stamp() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.prune(now)
	a.stamps = append(a.stamps, now)
}

func (a *AntiSpam) prune(now time.Time) {
	cutoff := now.Add(-a.widest)
	kept := a.stamps[:0]
	for _, ts := range a.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	a.stamps = kept
}
