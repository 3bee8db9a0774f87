package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownHook is a function called during graceful shutdown
type ShutdownHook func(ctx context.Context) error

// GracefulShutdown stops the server on a signal and then runs cleanup hooks,
// such as closing data sources and the change feed
type GracefulShutdown struct {
	server  *Server
	hooks   []ShutdownHook
	timeout time.Duration
	signals []os.Signal
	logger  *zap.Logger

	mu           sync.Mutex
	shutdownOnce sync.Once
	done         chan struct{}
	err          error
}

// NewGracefulShutdown creates a shutdown handler. A zero timeout waits 30
// seconds; no signals means SIGINT and SIGTERM.
func NewGracefulShutdown(server *Server, timeout time.Duration, logger *zap.Logger, signals ...os.Signal) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GracefulShutdown{
		server:  server,
		timeout: timeout,
		signals: signals,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// RegisterHook registers a hook to run after the server stops
func (gs *GracefulShutdown) RegisterHook(hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, hook)
}

// Start serves until a signal arrives or the server fails
func (gs *GracefulShutdown) Start() error {
	errChan := make(chan error, 1)
	go func() {
		gs.logger.Info("starting server", zap.String("address", gs.server.config.Address))
		if err := gs.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, gs.signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		gs.logger.Info("shutdown signal received", zap.Stringer("signal", sig))
		return gs.Shutdown()
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server, then runs every hook. It is safe to call more
// than once.
func (gs *GracefulShutdown) Shutdown() error {
	gs.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
		defer cancel()

		if err := gs.server.Shutdown(ctx); err != nil {
			gs.err = fmt.Errorf("server shutdown error: %w", err)
			gs.logger.Error("server shutdown failed", zap.Error(err))
		}

		gs.mu.Lock()
		hooks := make([]ShutdownHook, len(gs.hooks))
		copy(hooks, gs.hooks)
		gs.mu.Unlock()

		for i, hook := range hooks {
			if err := hook(ctx); err != nil {
				gs.logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
			}
		}

		gs.logger.Info("shutdown complete")
		close(gs.done)
	})

	<-gs.done
	return gs.err
}

// Wait blocks until shutdown is complete
func (gs *GracefulShutdown) Wait() error {
	<-gs.done
	return gs.err
}
