package main

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"chatbridge/db"
	"chatbridge/types"
)

const testReadTimeout = 3 * time.Second

const testBotKey = "test-bot-key"

// newBridgeTestEnv stands up a fresh sqlite database, resets the global
// relay state and serves the socket and moderation routes over httptest.
func newBridgeTestEnv(t *testing.T) *httptest.Server {
	t.Helper()

	gin.SetMode(gin.TestMode)
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "bridge_test.sqlite")
	bridgeDB, err := db.InitDB(dbPath)
	if err != nil {
		t.Fatalf("init sqlite: %v", err)
	}

	prevDB := db.BridgeDB
	db.BridgeDB = bridgeDB
	if err := ensureBridgeSchema(); err != nil {
		t.Fatalf("ensure bridge schema: %v", err)
	}

	prevBotKey := botKey
	botKey = testBotKey
	os.Setenv("JWT_SECRET", "bridge-test-secret")

	manager.mu.Lock()
	prevConns := manager.conns
	manager.conns = nil
	manager.mu.Unlock()

	handshakeMu.Lock()
	prevLimiters := handshakeLimiters
	handshakeLimiters = make(map[string]*handshakeEntry)
	handshakeMu.Unlock()

	prevAccepting := accepting.Load()
	accepting.Store(true)

	r := gin.New()
	r.GET("/ws/:username/:key", HandleSocket)
	r.GET("/bot/:key", HandleBotSocket)
	r.POST("/api/auth", HandleModAuth)
	mod := r.Group("/api", ModAuthMiddleware())
	mod.POST("/ban", HandleBan)
	mod.POST("/unban", HandleUnban)
	mod.POST("/mute", HandleMute)
	mod.GET("/online", HandleOnline)
	mod.POST("/accepting", HandleAccepting)
	mod.POST("/keys", HandleCreateKey)
	mod.POST("/link", HandleLink)
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()

		manager.mu.Lock()
		for _, c := range manager.conns {
			if c.Conn != nil {
				c.Conn.Close()
			}
		}
		manager.conns = prevConns
		manager.mu.Unlock()

		handshakeMu.Lock()
		handshakeLimiters = prevLimiters
		handshakeMu.Unlock()

		accepting.Store(prevAccepting)
		botKey = prevBotKey
		db.BridgeDB = prevDB
		bridgeDB.Close()
	})

	return server
}

// insertTestAccount seeds one account row and returns its connection key.
func insertTestAccount(t *testing.T, id int, admin bool) string {
	t.Helper()
	key, err := db.UpsertAccountKey(id)
	if err != nil {
		t.Fatalf("create account key: %v", err)
	}
	if admin {
		if err := db.SetAdmin(id, true); err != nil {
			t.Fatalf("set admin: %v", err)
		}
	}
	return key
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func dialUser(t *testing.T, server *httptest.Server, username, key string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/ws/"+username+"/"+key+"?version=1"), nil)
	if err != nil {
		t.Fatalf("dial user %s: %v", username, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func dialBot(t *testing.T, server *httptest.Server, key string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/bot/"+key), nil)
	if err != nil {
		t.Fatalf("dial bot: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) types.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testReadTimeout))
	_, msgBytes, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	var env types.Envelope
	if err := json.Unmarshal(msgBytes, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	return env
}

func sendRequest(t *testing.T, conn *websocket.Conn, req types.ClientRequest) {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

// waitForSessions blocks until the registry holds at least want live
// connections; registration happens on the socket goroutine after the
// handshake response, so dialers have to wait before broadcasting.
func waitForSessions(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(testReadTimeout)
	for {
		manager.mu.Lock()
		n := len(manager.conns)
		manager.mu.Unlock()
		if n >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("registry never reached %d sessions, have %d", want, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// expectClose reads until the peer closes and returns the close code.
func expectClose(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(testReadTimeout))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if closeErr, ok := err.(*websocket.CloseError); ok {
			return closeErr.Code
		}
		t.Fatalf("expected close error, got %v", err)
	}
}
