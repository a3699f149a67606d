/*
Package main is the entry point for the VeilChat server.

It is responsible for loading configuration, initializing the global logging
system, selecting and connecting the backing document store, wiring the
application services, starting the HTTP server and the realtime hub, and
gracefully handling operating system interrupt signals (SIGINT, SIGTERM).
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"veilchat/internal/app/chat"
	"veilchat/internal/app/directory"
	"veilchat/internal/app/identity"
	"veilchat/internal/app/realtime"
	"veilchat/internal/app/storage"
	"veilchat/internal/app/store"
	"veilchat/internal/configs"
	"veilchat/internal/handler"
	"veilchat/internal/pkg/logx"
)

func main() {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_backend", cfg.StoreBackend).
		Bool("media_storage", cfg.MediaStorageEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Select and connect the document store.
	var st store.Store
	switch cfg.StoreBackend {
	case configs.StoreBackendPostgres:
		pgStore, err := store.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to PostgreSQL")
		}
		defer pgStore.Close()
		st = pgStore
	case configs.StoreBackendMemory:
		logx.Warn("Using in-memory store. All data is lost on shutdown.")
		st = store.NewMemoryStore()
	}

	// Wire the application services. The chat service and the hub reference
	// each other, so the notifier is attached after both exist.
	identitySvc := identity.NewService(st, cfg.JWTSecret)
	dir := directory.New(st)
	chats := chat.NewService(st, nil)
	hub := realtime.NewHub(st, chats)
	chats.SetNotifier(hub)

	var media storage.MediaService
	if cfg.MediaStorageEnabled() {
		media, err = storage.NewMediaService(storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize media storage")
		}
	}

	// Start the disappearing-message sweeper.
	sweeper := chat.NewSweeper(st, time.Duration(cfg.VanishSweepSeconds)*time.Second)
	go sweeper.Run(ctx)

	deps := &handler.AppDeps{
		Config:    cfg,
		Store:     st,
		Identity:  identitySvc,
		Directory: dir,
		Chats:     chats,
		Hub:       hub,
		Media:     media,
	}

	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("VeilChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
