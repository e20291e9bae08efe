// Command mockwiki runs the SQLite-backed mock wiki server. It serves
// the same search and content endpoints the client consumes, which
// makes it a convenient demo backend:
//
//	mockwiki -addr :8080 -seed 60
//	wiki --base-url http://localhost:8080 --user alice --token s3cret search 'type=page'
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

	"github.com/me/wikigo/internal/logging"
	"github.com/me/wikigo/internal/mockwiki"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", ":memory:", "SQLite database path (\":memory:\" for ephemeral)")
	seed := flag.Int("seed", 60, "Number of sample pages to create (0 to skip)")
	username := flag.String("user", "alice", "Basic auth username (empty disables auth)")
	apiToken := flag.String("token", "s3cret", "Basic auth token")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	flag.Parse()

	logger := logging.New(logging.Options{Level: *logLevel, Format: *logFormat})

	st, err := mockwiki.NewStore(*dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	if *seed > 0 {
		if err := st.Seed(ctx, *seed); err != nil {
			fmt.Fprintf(os.Stderr, "seed database: %v\n", err)
			os.Exit(1)
		}
		logger.Info("seeded sample pages", "count", *seed)
	}

	srv := mockwiki.New(st, *username, *apiToken, logger)
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("mock wiki starting", "addr", *addr, "db", *dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
