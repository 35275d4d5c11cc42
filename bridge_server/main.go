package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"chatbridge/db"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

func buildRouter() *gin.Engine {
	r := gin.Default()

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{Rate: time.Second, Limit: 150})
	r.Use(ratelimit.RateLimiter(store, &ratelimit.Options{ErrorHandler: rateLimitErrorHandler, KeyFunc: keyFunc}))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

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

	return r
}

func main() {
	_ = godotenv.Load()

	port := os.Getenv("BRIDGE_PORT")
	if port == "" {
		port = "8002"
	}
	dbName := os.Getenv("BRIDGE_DB_FILE")
	if dbName == "" {
		dbName = "./bridge.db"
	}
	botKey = os.Getenv("BRIDGE_BOT_KEY")
	if botKey == "" {
		log.Fatal("BRIDGE_BOT_KEY must be set")
	}
	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	var err error
	db.BridgeDB, err = db.InitDB(dbName)
	if err != nil {
		log.Fatal("Error opening bridge database:", err)
	}
	defer db.CloseDB(db.BridgeDB)
	if err := ensureBridgeSchema(); err != nil {
		log.Fatal("Error ensuring bridge schema:", err)
	}
	if err := loadSettings(); err != nil {
		log.Fatal("Error loading bridge settings:", err)
	}

	server := &http.Server{Addr: ":" + port, Handler: buildRouter()}

	go func() {
		log.Printf("Starting bridge relay on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down bridge relay...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("bridge relay forced shutdown: %v", err)
	}
}
