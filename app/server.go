package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/htol/techlib/api"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/ratelimit"
)

const (
	shutdownTimeout    = 30 * time.Second
	sessionPrunePeriod = time.Hour
)

// newServer builds the HTTP server. The returned limiter must be stopped
// once the server is done.
func (app *appEnv) newServer() (*http.Server, *ratelimit.KeyedRateLimiter) {
	cfg := app.config
	limiter := ratelimit.New(cfg.Auth.SignInRPS, cfg.Auth.SignInBurst)

	handler := api.NewHandler(app.service, api.Options{
		PublicURL:      cfg.Server.PublicURL,
		CORSOrigins:    cfg.Server.CORSOrigins,
		AuthLimiter:    limiter,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		UploadTimeout:  time.Duration(cfg.Server.UploadTimeout) * time.Second,
		TrustProxy:     cfg.Server.TrustProxy,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler,

		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	return srv, limiter
}

func (app *appEnv) serve() error {
	ctx, stop := signalContext()
	defer stop()
	return app.run(ctx, sessionPrunePeriod)
}

// run serves until ctx is cancelled, then shuts down gracefully and closes
// the database.
func (app *appEnv) run(ctx context.Context, prunePeriod time.Duration) error {
	srv, limiter := app.newServer()
	defer limiter.Stop()

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	pruneDone := make(chan struct{})
	go func() {
		defer close(pruneDone)
		app.pruneSessionsLoop(pruneCtx, prunePeriod)
	}()
	// the prune loop must be gone before the database closes
	stopPruning := func() {
		stopPrune()
		<-pruneDone
	}
	defer stopPruning()

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", app.config.Server.Port, "url", fmt.Sprintf("http://localhost:%d", app.config.Server.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	stopPruning()

	logger.Info("Closing database connection...")
	app.close()

	logger.Info("Server stopped")
	return nil
}

// pruneSessionsLoop deletes expired sessions every period until ctx is done.
func (app *appEnv) pruneSessionsLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.service.PruneSessions(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Warn("Failed to prune sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("Pruned expired sessions", "count", n)
			}
		}
	}
}
