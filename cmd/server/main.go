package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"

	"campauth/internal/api"
	"campauth/internal/auth"
	"campauth/internal/config"
	"campauth/internal/database"
	"campauth/internal/mail"
	"campauth/internal/store"
)

func init() {
	// Load environment variables from .env file.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Initialization error: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from DB: %v", err)
		}
	}()

	userCol := database.UserCollection(client, cfg)
	if err := database.EnsureIndexes(ctx, userCol); err != nil {
		log.Fatalf("Index creation error: %v", err)
	}

	users := store.NewUsers(userCol)
	mailer := mail.NewSMTP(cfg)
	svc := auth.NewService(users, mailer, cfg)
	router := api.NewRouter(api.NewHandlers(svc, cfg))

	// Wrap the router with logging middleware; production gets the fuller
	// combined log format.
	var loggedRouter http.Handler = handlers.LoggingHandler(os.Stdout, router)
	if cfg.IsProduction() {
		loggedRouter = handlers.CombinedLoggingHandler(os.Stdout, router)
	}

	srv := &http.Server{
		Handler:      loggedRouter,
		Addr:         cfg.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server running in %s mode on %s", cfg.Env, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signals for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting gracefully.")
}
