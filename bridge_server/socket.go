package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatbridge/db"
	"chatbridge/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func closeWriteDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func refuseConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, closeWriteDeadline())
	conn.Close()
}

// HandleSocket serves GET /ws/:username/:key, the end-user side of the
// bridge. The optional version query selects the request framing: 0 means
// every text frame is a message body, 1 means JSON request objects.
func HandleSocket(c *gin.Context) {
	username := c.Param("username")
	key := c.Param("key")
	version := c.DefaultQuery("version", "0")

	if !allowHandshake(c.ClientIP()) {
		c.JSON(429, gin.H{"error": "Too many connection attempts"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(64 * 1024)

	if version != "0" && version != "1" {
		refuseConn(conn, websocket.CloseUnsupportedData, "unsupported protocol version")
		return
	}

	account, err := db.GetAccountByKey(key)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Println("Key lookup failed:", err)
		}
		log.Println("Blocking attempted connection with invalid key")
		refuseConn(conn, websocket.ClosePolicyViolation, "invalid key")
		return
	}
	if account.Banned {
		reason := account.BanReason
		if reason == "" {
			reason = "No reason specified"
		}
		refuseConn(conn, websocket.ClosePolicyViolation, "Banned from the bridge: "+reason)
		return
	}

	client := NewConnection(username, account.ID, false, conn)
	manager.Connect(client)
	go client.WritePump()
	log.Printf("Connection opened from %s", username)

	readLoop(client, conn, version == "1")
	manager.Disconnect(client)
}

// HandleBotSocket serves GET /bot/:key, the single privileged peer. Its
// stream is raw envelopes in both directions; inbound ones are rebroadcast
// with the nonce untouched so the sender can recognize its own echo.
func HandleBotSocket(c *gin.Context) {
	key := c.Param("key")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	conn.SetReadLimit(64 * 1024)

	if botKey == "" || key != botKey {
		log.Println("Blocking attempted bot connection with invalid key")
		refuseConn(conn, websocket.ClosePolicyViolation, "invalid key")
		return
	}

	client := NewConnection("", 0, true, conn)
	manager.Connect(client)
	go client.WritePump()
	log.Println("Bot link connected")

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var env types.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			log.Println("Invalid envelope from bot link:", err)
			continue
		}
		if env.Message == "" {
			continue
		}
		manager.Broadcast(env)
	}

	manager.Disconnect(client)
	log.Println("Bot link closed")
}

func readLoop(client *Connection, conn *websocket.Conn, jsonRequests bool) {
	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req types.ClientRequest
		if jsonRequests {
			if err := json.Unmarshal(msgBytes, &req); err != nil {
				log.Println("Invalid message format:", err)
				continue
			}
		} else {
			req = types.ClientRequest{Type: types.RequestSend, Data: string(msgBytes)}
		}

		handleRequest(client, req)
	}
}
