package main

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"chatbridge/antispam"
	"chatbridge/types"
)

// Connection is one live socket session. The write pump goroutine owns the
// send queue; the registry owns the connection for its lifetime.
type Connection struct {
	User      string
	System    bool
	AccountID int
	Conn      *websocket.Conn
	AntiSpam  *antispam.AntiSpam
	SendQueue chan types.Envelope
	Done      chan struct{}

	closeOnce sync.Once
}

func NewConnection(user string, accountID int, system bool, conn *websocket.Conn) *Connection {
	return &Connection{
		User:      user,
		System:    system,
		AccountID: accountID,
		Conn:      conn,
		AntiSpam:  antispam.New(antispam.DefaultIntervals),
		SendQueue: make(chan types.Envelope, 64),
		Done:      make(chan struct{}),
	}
}

func (c *Connection) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case env := <-c.SendQueue:
			if err := c.Conn.WriteJSON(env); err != nil {
				log.Println("WritePump error:", err)
				return
			}
		case <-c.Done:
			return
		}
	}
}

// CloseWithReason sends a close control frame before tearing the socket
// down, so the peer sees the code and a human-readable reason.
func (c *Connection) CloseWithReason(code int, reason string) {
	deadline := closeWriteDeadline()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.Conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Println("CloseWithReason write error:", err)
	}
	c.Conn.Close()
}

// shutdown signals teardown through Done. The send queue is never closed:
// moderation handlers enqueue from other goroutines, so a late enqueue must
// drop rather than hit a closed channel.
func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

// Manager tracks every live connection. All list mutations happen under one
// mutex; delivery itself is per-connection through the send queues.
type Manager struct {
	mu    sync.Mutex
	conns []*Connection
}

var manager = &Manager{}

func (m *Manager) Connect(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns = append(m.conns, c)
}

// Disconnect removes the connection and stops its write pump. Calling it
// for a connection that is already gone is a no-op.
func (m *Manager) Disconnect(c *Connection) {
	m.mu.Lock()
	found := false
	for i, existing := range m.conns {
		if existing == c {
			m.conns = append(m.conns[:i], m.conns[i+1:]...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found {
		c.shutdown()
	}
}

// Broadcast enqueues the envelope on every live connection. Enqueues never
// block: a peer whose queue is full simply misses the message rather than
// stalling the rest.
func (m *Manager) Broadcast(env types.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		enqueue(c, env)
	}
}

func enqueue(c *Connection, env types.Envelope) {
	select {
	case <-c.Done:
	default:
		select {
		case c.SendQueue <- env:
		default:
			log.Printf("enqueue: send queue full for %q, dropping message", c.User)
		}
	}
}

// AllFrom returns every connection belonging to the given account.
func (m *Manager) AllFrom(accountID int) []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*Connection
	for _, c := range m.conns {
		if !c.System && c.AccountID == accountID {
			matches = append(matches, c)
		}
	}
	return matches
}

// OnlineUsers maps the label of every non-system connection to its account
// id.
func (m *Manager) OnlineUsers() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	online := make(map[string]int)
	for _, c := range m.conns {
		if !c.System {
			online[c.User] = c.AccountID
		}
	}
	return online
}
