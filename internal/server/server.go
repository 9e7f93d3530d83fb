// Package server exposes the dispatcher's trigger and status endpoints over
// HTTP. All /api routes require the internal-service credential; failures
// map onto the dispatch error taxonomy as status codes.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/dispatch"
	"github.com/zulandar/switchyard/internal/events"
	"github.com/zulandar/switchyard/internal/store"
)

// TokenHeader carries the trusted-caller credential on inbound requests.
const TokenHeader = "X-Switchyard-Token"

// Opts holds configuration for the dispatch HTTP server.
type Opts struct {
	Service *dispatch.Service
	Store   *store.Store
	Gate    *dispatch.Gate
	Broker  *events.Broker
	Host    string
	Port    int
	Out     io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	if opts.Port <= 0 {
		opts.Port = 8484
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Switchyard listening on http://%s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered. Split out from
// Start so tests can drive it with httptest.
func NewRouter(opts Opts) (*gin.Engine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("server: dispatch service is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("server: gate is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
