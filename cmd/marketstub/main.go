package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loangraph/marketsync/internal/config"
	"github.com/loangraph/marketsync/internal/marketstub"
	"github.com/loangraph/marketsync/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Env)

	store := marketstub.NewStore()
	if err := marketstub.Seed(store); err != nil {
		logger.Error("failed to seed market", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.StubAddr(),
		Handler:           marketstub.NewServer(store, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("market stub starting", "addr", cfg.StubAddr(), "users", len(store.Users()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("market stub stopped")
}
