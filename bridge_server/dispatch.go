package main

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatbridge/db"
	"chatbridge/timeparse"
	"chatbridge/types"
)

// sendSystem delivers a system-authored notice to one connection only.
func sendSystem(c *Connection, message string) {
	enqueue(c, types.Envelope{
		System:  true,
		Author:  "",
		Message: message,
		Nonce:   uuid.New().String(),
	})
}

// handleRequest runs one inbound request through the moderation and
// rate-limit pipeline. Unknown request types are ignored; a format error is
// never grounds for closing the socket.
func handleRequest(client *Connection, req types.ClientRequest) {
	switch req.Type {
	case types.RequestSend:
		handleSend(client, req.Data, req.Nonce)
	case types.RequestOnline:
		names := make([]string, 0)
		for name := range manager.OnlineUsers() {
			names = append(names, name)
		}
		sort.Strings(names)
		sendSystem(client, "Online: "+strings.Join(names, ", "))
	default:
		log.Println("Unknown request type:", req.Type)
	}
}

func handleSend(client *Connection, body, nonce string) {
	if strings.TrimSpace(body) == "" {
		return
	}

	// Always re-read the account so mutes and bans applied since the
	// handshake affect this message. A store failure denies the send.
	account, err := db.GetAccountByID(client.AccountID)
	if err != nil {
		log.Printf("Account lookup failed for %q: %v", client.User, err)
		sendSystem(client, "Unable to verify your account right now, try again later")
		return
	}

	if !acceptingMessages() && !account.Admin {
		sendSystem(client, "The bridge is not currently accepting messages")
		return
	}

	now := time.Now().UTC()
	if account.IsMuted(now) {
		reason := account.MuteReason
		if reason == "" {
			reason = "No reason specified"
		}
		remaining := timeparse.DeltaToString(account.MuteRemaining(now))
		sendSystem(client, "You are muted for "+remaining+": "+reason)
		return
	}

	if client.AntiSpam.Spammy() {
		sendSystem(client, "Slow down there!")
		return
	}
	client.AntiSpam.Stamp()

	if nonce == "" {
		nonce = uuid.New().String()
	}
	author := client.User
	if account.LinkedName != "" {
		author = account.LinkedName
	}
	manager.Broadcast(types.Envelope{
		Author:  author,
		Message: body,
		Nonce:   nonce,
	})
}
