package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatbridge/db"
	"chatbridge/timeparse"
	"chatbridge/types"
)

// botKey is the shared secret the privileged peer authenticates with, both
// on its socket and against the moderation API.
var botKey string

var muteDuration = timeparse.NewConverter().Min("1s").Max("1y")

func modFailure(c *gin.Context, status int, reason string) {
	c.JSON(status, types.ModResponse{Success: false, Reason: reason})
}

func generateModJWT(expiration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"role": "moderator",
		"exp":  time.Now().Add(expiration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

func validModJWT(tokenString string) bool {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return false
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	return err == nil && token.Valid
}

// ModAuthMiddleware admits requests carrying either the shared bot key or a
// bearer token from HandleModAuth.
func ModAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if botKey != "" && c.GetHeader("Bridge-Key") == botKey {
			c.Next()
			return
		}
		bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if bearer != "" && validModJWT(bearer) {
			c.Next()
			return
		}
		modFailure(c, 401, "unauthorized")
		c.Abort()
	}
}

// HandleModAuth exchanges the shared key for a short-lived bearer token.
func HandleModAuth(c *gin.Context) {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		modFailure(c, 400, "invalid request payload")
		return
	}
	if botKey == "" || req.Key != botKey {
		modFailure(c, 401, "unauthorized")
		return
	}
	token, err := generateModJWT(24 * time.Hour)
	if err != nil {
		modFailure(c, 500, "failed to generate token")
		return
	}
	c.JSON(200, gin.H{"success": true, "token": token})
}

func lookupModTarget(c *gin.Context, id int) (*db.Account, bool) {
	account, err := db.GetAccountByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			modFailure(c, 400, "unknown account")
		} else {
			modFailure(c, 500, "account lookup failed")
		}
		return nil, false
	}
	return account, true
}

func HandleBan(c *gin.Context) {
	var req types.ModRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		modFailure(c, 400, "invalid request payload")
		return
	}

	account, ok := lookupModTarget(c, req.ID)
	if !ok {
		return
	}
	if account.Admin {
		modFailure(c, 400, "cannot ban an administrator")
		return
	}
	if err := db.SetBanned(req.ID, true, req.Reason); err != nil {
		modFailure(c, 500, "failed to update account")
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "No reason specified"
	}
	for _, conn := range manager.AllFrom(req.ID) {
		conn.CloseWithReason(websocket.ClosePolicyViolation, "Banned from the bridge: "+reason)
		manager.Disconnect(conn)
	}
	c.JSON(200, types.ModResponse{Success: true})
}

func HandleUnban(c *gin.Context) {
	var req types.ModRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		modFailure(c, 400, "invalid request payload")
		return
	}
	if _, ok := lookupModTarget(c, req.ID); !ok {
		return
	}
	if err := db.SetBanned(req.ID, false, ""); err != nil {
		modFailure(c, 500, "failed to update account")
		return
	}
	c.JSON(200, types.ModResponse{Success: true})
}

func resolveMuteUntil(req types.MuteRequest) (*time.Time, error) {
	if req.Duration != "" {
		d, err := muteDuration.FromString(req.Duration, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		until := time.Now().UTC().Add(d)
		return &until, nil
	}
	if req.Until != "" {
		until, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return nil, err
		}
		until = until.UTC()
		return &until, nil
	}
	return nil, nil
}

func HandleMute(c *gin.Context) {
	var req types.MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		modFailure(c, 400, "invalid request payload")
		return
	}

	until, err := resolveMuteUntil(req)
	if err != nil {
		switch err {
		case timeparse.ErrNoDuration:
			modFailure(c, 400, "duration does not resolve to a length of time")
		case timeparse.ErrBelowMinDuration:
			modFailure(c, 400, "duration is below the minimum of 1s")
		case timeparse.ErrAboveMaxDuration:
			modFailure(c, 400, "duration is above the maximum of 1y")
		default:
			modFailure(c, 400, "invalid until timestamp")
		}
		return
	}

	account, ok := lookupModTarget(c, req.ID)
	if !ok {
		return
	}
	if until != nil && account.Admin {
		modFailure(c, 400, "cannot mute an administrator")
		return
	}
	if err := db.SetMute(req.ID, until, req.Reason); err != nil {
		modFailure(c, 500, "failed to update account")
		return
	}

	notifyMuteChange(req.ID, until, req.Reason)
	c.JSON(200, types.ModResponse{Success: true})
}

// notifyMuteChange pushes a moderation notice to the account's live
// sessions. The mute itself only takes effect for subsequent messages.
func notifyMuteChange(accountID int, until *time.Time, reason string) {
	sessions := manager.AllFrom(accountID)
	if len(sessions) == 0 {
		return
	}

	notice := "You have been unmuted"
	if until != nil {
		if reason == "" {
			reason = "No reason specified"
		}
		remaining := timeparse.DeltaToString(time.Until(*until))
		notice = "You have been muted for " + remaining + ": " + reason
	}
	for _, conn := range sessions {
		sendSystem(conn, notice)
	}
}

func HandleOnline(c *gin.Context) {
	c.JSON(200, manager.OnlineUsers())
}

func HandleAccepting(c *gin.Context) {
	var req types.AcceptingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		modFailure(c, 400, "invalid request payload")
		return
	}
	if err := setAcceptingMessages(req.Enabled); err != nil {
		modFailure(c, 500, "failed to persist setting")
		return
	}
	log.Printf("Bridge accepting messages: %v", req.Enabled)
	c.JSON(200, types.ModResponse{Success: true})
}

func HandleCreateKey(c *gin.Context) {
	var req types.ModRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		modFailure(c, 400, "invalid request payload")
		return
	}
	key, err := db.UpsertAccountKey(req.ID)
	if err != nil {
		modFailure(c, 500, "failed to create key")
		return
	}
	c.JSON(200, gin.H{"success": true, "key": key})
}

func HandleLink(c *gin.Context) {
	var req types.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		modFailure(c, 400, "invalid request payload")
		return
	}
	account, ok := lookupModTarget(c, req.ID)
	if !ok {
		return
	}
	if account.Banned {
		modFailure(c, 400, "account is banned from the bridge")
		return
	}
	if err := db.SetLinkedName(req.ID, req.Name); err != nil {
		modFailure(c, 500, "failed to update account")
		return
	}
	c.JSON(200, types.ModResponse{Success: true})
}
