package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/server"
)

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	logCfg := logger.DefaultConfig()
	logCfg.Console = true
	logCfg.FilePath = ""
	logCfg.Level = logger.ParseLevel(os.Getenv("SLOTFLOW_LOG_LEVEL"))
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	var opts []server.Option
	if secret := os.Getenv("SLOTFLOW_SECRET"); secret != "" {
		opts = append(opts, server.WithSecret(secret))
	}
	if ttl, err := time.ParseDuration(os.Getenv("SLOTFLOW_TOKEN_TTL")); err == nil {
		opts = append(opts, server.WithTokenTTL(ttl))
	}

	srv := server.New(opts...)
	if os.Getenv("SLOTFLOW_NO_SEED") == "" {
		if err := srv.Seed(); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
	}

	go func() {
		log.Printf("SlotFlow dev server starting on :%s", port)
		if err := srv.Start(":" + port); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down: %v", err)
	}
}
