package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/middleware"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/server"
	"github.com/dukerupert/nudge/internal/sweep"
	ws "github.com/dukerupert/nudge/internal/websocket"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sweep scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	hub := ws.NewHub(a.logger.With("component", "websocket"))
	engine, err := a.engine(sweep.WithOnSent(func(r model.Reminder) {
		hub.Broadcast(ws.ReminderMessage(ws.ActionSent, r))
	}))
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		StaticDir: cfg.Server.StaticDir,
		SweepAuth: middleware.SweepAuthConfig{
			Secret:        cfg.Sweep.Secret,
			TrustedHeader: cfg.Sweep.TrustedHeader,
			TrustedValue:  cfg.Sweep.TrustedValue,
		},
		RateLimit: cfg.Sweep.RateLimit,
		RateBurst: cfg.Sweep.RateBurst,
	}, a.registry, engine, hub, a.metrics, a.logger)

	if cfg.Sweep.Secret == "" && cfg.Sweep.TrustedHeader == "" {
		a.logger.Warn("no sweep credentials configured, POST /sweep will reject every request")
	}

	if cfg.Sweep.Enabled {
		schedCtx := auth.WithCaller(ctx, auth.Caller{Source: auth.SourceScheduler})
		sched := sweep.NewScheduler(engine, cfg.Sweep.Interval, a.logger.With("component", "scheduler"))
		sched.Start(schedCtx)
		defer sched.Stop()
		a.logger.Info("sweep scheduler started", "interval", cfg.Sweep.Interval)
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup(time.Hour)
			}
		}
	}()

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Notify.Timeout*2 + 10*time.Second, // a sweep may wait on several sends
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("nudge listening", "addr", addr, "store", cfg.Store.Backend, "notify", cfg.Notify.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
