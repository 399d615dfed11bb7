package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fentz26/drover/internal/audit"
	"github.com/fentz26/drover/internal/coordinator"
	"github.com/fentz26/drover/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Start the drover coordinator",
	Long:  `Starts the coordinator which owns the command store and serves the HTTP API for claiming and reporting commands.`,
	RunE:  runCoordinator,
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".drover", "coordinator.db")

	coordinatorCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:7533", "Listen address for the API server")
	coordinatorCmd.Flags().StringVar(&dbPath, "db", defaultDB, "Path to the coordinator SQLite database")
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	log.Println("Starting drover coordinator...")

	// Initialize store
	s, err := store.New(dbPath)
	if err != nil {
		return err
	}

	rec := audit.NewRecorder(s)
	service := coordinator.NewService(s, rec)

	// Reclaim commands orphaned by a previous coordinator process. This
	// must finish before the API starts accepting claim/submit requests.
	reclaimed, err := service.Recover()
	if err != nil {
		s.Close()
		return err
	}
	log.Printf("Recovery reclaimed %d orphaned commands", reclaimed)

	server := coordinator.NewServer(service, s, listenAddr)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
