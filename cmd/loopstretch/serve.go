package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/loopstretch/internal/config"
	"github.com/satindergrewal/loopstretch/internal/store"
	"github.com/satindergrewal/loopstretch/internal/web"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default from LOOPSTRETCH_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if servePort > 0 {
		cfg.Port = servePort
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("loopstretch starting up...")
	ext := buildExtender(ctx, cfg)

	results := store.New(cfg.ResultTTL, cfg.ResultCapacity, cfg.ResultMaxBytes())
	go sweep(ctx, results, time.Minute)

	srv := web.NewServer(ext, results, cfg.MaxUploadBytes())
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("loopstretch live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

func sweep(ctx context.Context, results *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := results.Sweep(); n > 0 {
				log.Printf("Expired %d stored results", n)
			}
		}
	}
}
