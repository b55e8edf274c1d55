package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/ucundinamarca/cundibot/internal/api"
	"github.com/ucundinamarca/cundibot/internal/auth"
	"github.com/ucundinamarca/cundibot/internal/config"
	"github.com/ucundinamarca/cundibot/internal/core"
	"github.com/ucundinamarca/cundibot/internal/ingest"
	"github.com/ucundinamarca/cundibot/internal/logger"
	"github.com/ucundinamarca/cundibot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	setAdminKeyFlag := flag.Bool("set-admin-key", false, "Prompt for a new admin API key, store it, and exit")
	rebuildFlag := flag.Bool("rebuild", false, "Rebuild the knowledge index from the knowledge folder and exit")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	adminKeys := auth.NewAdminKeyStore(dbStore)

	if *setAdminKeyFlag {
		if err := setAdminKey(adminKeys); err != nil {
			logger.Log.Fatalf("Failed to set admin key: %v", err)
		}
		logger.Log.Info("Admin key stored securely. Exiting.")
		os.Exit(0)
	}

	ctx := context.Background()
	llmService := core.NewLLMService(cfg)
	defer llmService.Close()

	pipeline := ingest.NewPipeline(cfg, llmService)

	if *rebuildFlag {
		logger.Log.Info("Starting knowledge index rebuild...")
		summary, err := pipeline.Rebuild(ctx)
		if err != nil {
			logger.Log.Fatalf("Index rebuild failed: %v", err)
		}
		logger.Log.Infof("%s Exiting.", summary)
		os.Exit(0)
	}

	chatService := core.NewChatService(cfg, dbStore, llmService)
	if err := chatService.ReloadIndex(); err != nil {
		logger.Log.Warnf("Knowledge index not loaded: %v. Chat will return 503 until an index is built.", err)
	}

	apiHandler := api.NewAPIHandler(cfg, chatService, dbStore, adminKeys, pipeline)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // LLM calls and index rebuilds can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Log.Info("Server exiting gracefully")
}

// setAdminKey prompts for a new admin API key without echoing it.
func setAdminKey(adminKeys *auth.AdminKeyStore) error {
	fmt.Print("Enter the new admin API key: ")
	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read key from terminal: %w", err)
	}
	return adminKeys.Rotate(string(keyBytes))
}
