package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatbridge/antispam"
	"chatbridge/types"
)

var (
	ErrNotConnected = errors.New("bridge link is not connected")
	ErrRateLimited  = errors.New("author is sending messages too quickly")
)

// Sink receives envelopes that survived echo suppression and format
// stripping. The platform-specific display layer implements it.
type Sink interface {
	Deliver(env types.Envelope) error
}

// Link maintains the single privileged connection to the relay, redialing
// with jittered exponential backoff after abnormal closures.
type Link struct {
	url        string
	sink       Sink
	suppressor *EchoSuppressor
	backoff    *ExponentialBackoff
	allowed    map[rune]struct{}

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	spamMu   sync.Mutex
	antispam map[string]*antispam.AntiSpam
}

func NewLink(url string, sink Sink) *Link {
	return &Link{
		url:        url,
		sink:       sink,
		suppressor: NewEchoSuppressor(defaultSuppressorCap),
		backoff:    NewExponentialBackoff(time.Second, 5*time.Second),
		antispam:   make(map[string]*antispam.AntiSpam),
	}
}

// SetAllowedRunes extends the outbound character set beyond ASCII.
func (l *Link) SetAllowedRunes(allowed map[rune]struct{}) {
	l.allowed = allowed
}

// Run dials the relay and consumes its stream until the context is
// cancelled or the relay closes the link normally. Abnormal closures sleep
// the next backoff delay and redial.
func (l *Link) Run(ctx context.Context) error {
	defer l.setConn(nil)

	for {
		if ctx.Err() != nil {
			return nil
		}

		log.Printf("Attempting to connect to %s...", l.url)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !l.sleepBackoff(ctx, err) {
				return nil
			}
			continue
		}
		log.Println("Connected successfully")
		l.backoff.Reset()
		l.setConn(conn)

		err = l.readLoop(ctx, conn)
		l.setConn(nil)
		conn.Close()

		if err == nil || ctx.Err() != nil {
			return nil
		}
		if !l.sleepBackoff(ctx, err) {
			return nil
		}
	}
}

// sleepBackoff waits out the next delay; false means the context ended.
func (l *Link) sleepBackoff(ctx context.Context, cause error) bool {
	delay := l.backoff.Delay()
	log.Printf("Bridge link closed (%v), waiting %s to reconnect", cause, delay)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// readLoop returns nil for a normal closure and the error for an abnormal
// one.
func (l *Link) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Println("Bridge link closed normally")
				return nil
			}
			return err
		}

		var env types.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			log.Println("Invalid envelope JSON:", err)
			continue
		}

		if l.suppressor.Suppress(env.Nonce) {
			continue
		}

		env.Message = StripFormatCodes(env.Message)
		if err := l.sink.Deliver(env); err != nil {
			log.Println("Failed to deliver message:", err)
		}
	}
}

func (l *Link) setConn(conn *websocket.Conn) {
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
}

func (l *Link) currentConn() *websocket.Conn {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	return l.conn
}

func (l *Link) writeEnvelope(env types.Envelope) error {
	conn := l.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return conn.WriteJSON(env)
}

func (l *Link) antispamFor(author string) *antispam.AntiSpam {
	l.spamMu.Lock()
	defer l.spamMu.Unlock()
	a, ok := l.antispam[author]
	if !ok {
		a = antispam.New(antispam.DefaultIntervals)
		l.antispam[author] = a
	}
	return a
}

// Send relays a user message to the bridge. The minted nonce is recorded so
// the relay's echo of this message is not redisplayed here. The bool return
// reports whether the body was truncated.
func (l *Link) Send(author, body string, suppressPings bool) (bool, error) {
	body, truncated := SanitizeOutbound(body, l.allowed)
	if body == "" {
		return false, nil
	}

	limiter := l.antispamFor(author)
	if limiter.Spammy() {
		return false, ErrRateLimited
	}
	limiter.Stamp()

	nonce := uuid.New().String()
	l.suppressor.Add(nonce)

	env := types.Envelope{
		Author:  author,
		Message: body,
		Nonce:   nonce,
	}
	if suppressPings {
		pings := false
		env.Pings = &pings
	}
	if err := l.writeEnvelope(env); err != nil {
		return truncated, err
	}
	return truncated, nil
}

// Announce sends a system envelope. Its nonce is deliberately not recorded
// for suppression: the relay's echo comes back to us, so the announcement
// shows up locally without a separate display path.
func (l *Link) Announce(author, message string) error {
	return l.writeEnvelope(types.Envelope{
		System:  true,
		Author:  author,
		Message: message,
		Nonce:   uuid.New().String(),
	})
}

// Close performs a normal closure, which Run treats as terminal.
func (l *Link) Close() {
	conn := l.currentConn()
	if conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
