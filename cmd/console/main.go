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

	"github.com/loangraph/marketsync/internal/auth"
	"github.com/loangraph/marketsync/internal/config"
	"github.com/loangraph/marketsync/internal/directory"
	"github.com/loangraph/marketsync/internal/http/handlers"
	"github.com/loangraph/marketsync/internal/observability"
	"github.com/loangraph/marketsync/internal/poll"
	"github.com/loangraph/marketsync/internal/remote"
	"github.com/loangraph/marketsync/internal/server"
	"github.com/loangraph/marketsync/internal/views"
	"github.com/loangraph/marketsync/internal/ws"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-passcode" {
		if len(os.Args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: console hash-passcode <passcode>")
			os.Exit(2)
		}
		hash, err := auth.HashPasscode(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Env)

	api, err := remote.NewClient(cfg.MarketAPIURL, cfg.MarketHTTPTimeout,
		remote.WithSessionCookie(cfg.MarketSessionCookie),
		remote.WithLogger(logger),
	)
	if err != nil {
		logger.Error("invalid backend configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := directory.New(api, poll.Every(cfg.DirectoryRefreshInterval), logger)
	every := poll.Every(cfg.ViewRefreshInterval)
	borrowerMortgages := views.NewBorrowerMortgages(api, dir, every, logger)
	borrowerCampaigns := views.NewBorrowerCampaigns(api, dir, every, logger)
	bankerMortgages := views.NewBankerMortgages(api, dir, every, logger)
	bankerCampaigns := views.NewBankerCampaigns(api, dir, every, logger)
	investorCampaigns := views.NewInvestorCampaigns(api, dir, every, logger)
	profile := views.NewProfile(api, every, logger)
	blocks := views.NewBlocks(api, dir, every, logger)
	set := views.NewSet(borrowerMortgages, borrowerCampaigns, bankerMortgages, bankerCampaigns, investorCampaigns, profile, blocks)
	defer set.StopAll()

	hub := ws.NewHub()
	sources := []ws.Source{ws.SourceFunc{Name: ws.ChannelDirectory, Fn: func() any {
		me, _ := dir.Me()
		return map[string]any{"me": me, "users": dir.Users()}
	}}}
	for _, name := range set.Names() {
		v, _ := set.Get(name)
		sources = append(sources, ws.SourceFunc{Name: ws.ViewChannel(name), Fn: v.Snapshot})
	}
	notifier := ws.NewNotifier(hub, sources, cfg.NotifierPollInterval, logger)

	unsubscribe := dir.Subscribe(func() {
		if me, ok := dir.Me(); ok {
			set.Activate(ctx, me.Role)
		}
		notifier.Nudge()
	})
	defer unsubscribe()

	go func() { _ = dir.Run(ctx) }()
	go func() { _ = notifier.Run(ctx) }()

	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	sessions := auth.NewService(dir, jwtManager, cfg.PasscodeHash, cfg.SessionTTL)
	if cfg.PasscodeHash == "" {
		logger.Warn("console passcode disabled; set CONSOLE_PASSCODE_HASH")
	}
	cookieCfg := auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:           dir,
		SessionHandler:   handlers.NewSessionHandler(sessions, dir, cookieCfg, logger),
		DirectoryHandler: handlers.NewDirectoryHandler(dir),
		ViewsHandler:     handlers.NewViewsHandler(set),
		ActionsHandler: handlers.NewActionsHandler(handlers.ActionViews{
			BorrowerMortgages: borrowerMortgages,
			BorrowerCampaigns: borrowerCampaigns,
			BankerMortgages:   bankerMortgages,
			InvestorCampaigns: investorCampaigns,
			Profile:           profile,
		}),
		BlocksHandler: handlers.NewBlocksHandler(blocks),
		WSHandler: ws.NewHandler(hub, func(name string) bool {
			_, ok := set.Get(name)
			return ok
		}),
		JWTManager: jwtManager,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("console starting", "addr", cfg.Addr(), "backend", cfg.MarketAPIURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("console stopped")
}
