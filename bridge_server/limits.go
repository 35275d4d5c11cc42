package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Handshake attempts are throttled per address so a reconnect storm cannot
// churn the upgrade path. Entries idle past the TTL are dropped on the next
// sweep.
const (
	handshakeRate  = rate.Limit(0.5)
	handshakeBurst = 5
	handshakeTTL   = time.Hour
)

type handshakeEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

var (
	handshakeMu       sync.Mutex
	handshakeLimiters = make(map[string]*handshakeEntry)
	handshakeSweepAt  = time.Now()
)

func allowHandshake(ip string) bool {
	if ip == "" {
		return false
	}
	handshakeMu.Lock()
	defer handshakeMu.Unlock()

	now := time.Now()
	if now.Sub(handshakeSweepAt) > handshakeTTL {
		for key, entry := range handshakeLimiters {
			if now.Sub(entry.lastAccess) > handshakeTTL {
				delete(handshakeLimiters, key)
			}
		}
		handshakeSweepAt = now
	}

	entry, ok := handshakeLimiters[ip]
	if !ok {
		entry = &handshakeEntry{limiter: rate.NewLimiter(handshakeRate, handshakeBurst)}
		handshakeLimiters[ip] = entry
	}
	entry.lastAccess = now
	return entry.limiter.Allow()
}
