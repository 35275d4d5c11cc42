package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chatbridge/types"
)

const linkTestTimeout = 5 * time.Second

type captureSink struct {
	mu  sync.Mutex
	got []types.Envelope
}

func (s *captureSink) Deliver(env types.Envelope) error {
	s.mu.Lock()
	s.got = append(s.got, env)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) envelopes() []types.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Envelope(nil), s.got...)
}

func newLinkServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitConnected(t *testing.T, l *Link) {
	t.Helper()
	deadline := time.Now().Add(linkTestTimeout)
	for l.currentConn() == nil {
		if time.Now().After(deadline) {
			t.Fatal("link never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitRunDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(linkTestTimeout):
		t.Fatal("Run did not return")
	}
}

// closeNormally sends a close frame and waits for the peer's reply so the
// closure is not mistaken for a dropped connection.
func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	conn.Close()
}

func TestLinkSuppressesOwnEchoAndStripsInbound(t *testing.T) {
	url := newLinkServer(t, func(conn *websocket.Conn) {
		var env types.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			conn.Close()
			return
		}
		// Echo the bot's own message back, then relay someone else's.
		conn.WriteJSON(env)
		conn.WriteJSON(types.Envelope{Author: "steve", Message: "§chello§r", Nonce: "foreign-nonce"})
		closeNormally(conn)
	})

	sink := &captureSink{}
	link := NewLink(url, sink)
	done := make(chan error, 1)
	go func() { done <- link.Run(context.Background()) }()
	waitConnected(t, link)

	if _, err := link.Send("alice", "hi there", false); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitRunDone(t, done)

	got := sink.envelopes()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivered envelope, got %d: %+v", len(got), got)
	}
	if got[0].Author != "steve" || got[0].Message != "hello" {
		t.Fatalf("unexpected envelope %+v", got[0])
	}
}

func TestLinkReconnectsAfterAbnormalClose(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	url := newLinkServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		if n == 1 {
			// Drop the connection without a close frame.
			conn.Close()
			return
		}
		conn.WriteJSON(types.Envelope{Author: "steve", Message: "back again", Nonce: "n1"})
		closeNormally(conn)
	})

	sink := &captureSink{}
	link := NewLink(url, sink)
	done := make(chan error, 1)
	go func() { done <- link.Run(context.Background()) }()
	waitRunDone(t, done)

	mu.Lock()
	total := dials
	mu.Unlock()
	if total < 2 {
		t.Fatalf("expected a redial, saw %d connections", total)
	}
	got := sink.envelopes()
	if len(got) != 1 || got[0].Message != "back again" {
		t.Fatalf("unexpected deliveries %+v", got)
	}
}

func TestAnnounceEchoIsDisplayed(t *testing.T) {
	url := newLinkServer(t, func(conn *websocket.Conn) {
		var env types.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			conn.Close()
			return
		}
		// The relay echoes announcements like any other broadcast.
		conn.WriteJSON(env)
		closeNormally(conn)
	})

	sink := &captureSink{}
	link := NewLink(url, sink)
	done := make(chan error, 1)
	go func() { done <- link.Run(context.Background()) }()
	waitConnected(t, link)

	if err := link.Announce("server", "Server started"); err != nil {
		t.Fatalf("announce: %v", err)
	}
	waitRunDone(t, done)

	got := sink.envelopes()
	if len(got) != 1 {
		t.Fatalf("announcement echo should be delivered, got %d envelopes", len(got))
	}
	if !got[0].System || got[0].Message != "Server started" {
		t.Fatalf("unexpected envelope %+v", got[0])
	}
}

func TestSendWithoutConnection(t *testing.T) {
	link := NewLink("ws://localhost:0", &captureSink{})
	if _, err := link.Send("alice", "hi", false); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendRateLimitsPerAuthor(t *testing.T) {
	url := newLinkServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	link := NewLink(url, &captureSink{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()
	waitConnected(t, link)

	for i := 0; i < 5; i++ {
		if _, err := link.Send("alice", "message", false); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if _, err := link.Send("alice", "message", false); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := link.Send("bob", "message", false); err != nil {
		t.Fatalf("other authors should not share the limit: %v", err)
	}

	cancel()
	link.Close()
	waitRunDone(t, done)
}

func TestSendTruncatesLongBody(t *testing.T) {
	url := newLinkServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	link := NewLink(url, &captureSink{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()
	waitConnected(t, link)

	truncated, err := link.Send("alice", strings.Repeat("x", maxMessageLength+1), false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !truncated {
		t.Fatal("expected the body to be truncated")
	}

	cancel()
	link.Close()
	waitRunDone(t, done)
}
