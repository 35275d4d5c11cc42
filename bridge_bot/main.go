package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatbridge/types"
)

// consoleSink is the default display layer: it just logs what the bridge
// delivers. A platform integration replaces it with its own Sink.
type consoleSink struct{}

func (consoleSink) Deliver(env types.Envelope) error {
	if env.System {
		log.Printf("[bridge] %s", env.Message)
		return nil
	}
	log.Printf("<%s> %s", env.Author, env.Message)
	return nil
}

func main() {
	_ = godotenv.Load()

	host := os.Getenv("BRIDGE_RELAY_HOST")
	if host == "" {
		host = "localhost:8002"
	}
	secure := os.Getenv("BRIDGE_RELAY_TLS") == "1"
	key := os.Getenv("BRIDGE_BOT_KEY")
	if key == "" {
		log.Fatal("BRIDGE_BOT_KEY must be set")
	}
	allowedFile := os.Getenv("BRIDGE_ALLOWED_UNICODE")
	if allowedFile == "" {
		allowedFile = "allowed_unicode.txt"
	}

	_, wsURL := relayURLs(host, secure)
	wsURL.Path = "/bot/" + key

	link := NewLink(wsURL.String(), consoleSink{})
	allowed, err := loadAllowedRunes(allowedFile)
	if err != nil {
		log.Println("Error loading allowed character list:", err)
	}
	link.SetAllowedRunes(allowed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := link.Run(ctx); err != nil {
			log.Println("Bridge link error:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down bridge bot...")
	link.Close()
	<-done
}
