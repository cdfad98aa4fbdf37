// Package api serves the negotiation HTTP surface over gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farmlink/farmlink/internal/logging"
	"github.com/farmlink/farmlink/internal/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RouterOpts holds the dependencies of the negotiation routes.
type RouterOpts struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Notifier  notify.Notifier
	RateLimit int // requests per identity per minute, 0 disables
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	RouterOpts
	Port int
}

// NewRouter builds the gin engine with all middleware and routes.
func NewRouter(opts RouterOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("api: db is required")
	}
	if opts.RateLimit < 0 {
		return nil, fmt.Errorf("api: rate limit must not be negative")
	}
	log := logging.OrNop(opts.Logger).Named("api")
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	h := &handlers{db: opts.DB, log: log, notifier: notifier}
	var limiter *rateLimiter
	if opts.RateLimit > 0 {
		limiter = newRateLimiter(opts.RateLimit, time.Minute)
	}
	registerRoutes(router, h, limiter)
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully. A listen failure is returned immediately.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.RouterOpts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Graceful shutdown on context cancellation.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log := logging.OrNop(opts.Logger).Named("api")
	log.Info("listening", zap.Int("port", opts.Port))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-shutdownDone
		return fmt.Errorf("api: %w", err)
	}
	<-shutdownDone
	return nil
}
