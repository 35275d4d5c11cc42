package main

import "sync"

// defaultSuppressorCap bounds the sent-nonce set. Entries are normally
// consumed by the matching echo, but an echo that never arrives would leak
// its entry forever, so the oldest entries are evicted past the cap. A very
// late echo past eviction is displayed instead of suppressed.
const defaultSuppressorCap = 4096

// EchoSuppressor remembers the nonces of messages this process injected
// into the broadcast fabric, so their echoes are not redisplayed locally.
type EchoSuppressor struct {
	mu      sync.Mutex
	entries map[string]struct{}
	order   []string
	cap     int
}

func NewEchoSuppressor(cap int) *EchoSuppressor {
	if cap <= 0 {
		cap = defaultSuppressorCap
	}
	return &EchoSuppressor{
		entries: make(map[string]struct{}),
		cap:     cap,
	}
}

// Add records a nonce this process just sent.
func (s *EchoSuppressor) Add(nonce string) {
	if nonce == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[nonce]; !ok {
		s.entries[nonce] = struct{}{}
		s.order = append(s.order, nonce)
	}
	for len(s.entries) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}

// Suppress reports whether the nonce was sent by us, consuming the entry so
// a second echo of the same nonce is not suppressed.
func (s *EchoSuppressor) Suppress(nonce string) bool {
	if nonce == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[nonce]; !ok {
		return false
	}
	delete(s.entries, nonce)
	for i, candidate := range s.order {
		if candidate == nonce {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of unmatched entries.
func (s *EchoSuppressor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
