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

	"github.com/spf13/cobra"

	"github.com/user/expdata/internal/api"
	"github.com/user/expdata/internal/export"
	"github.com/user/expdata/pkg/state"
)

var (
	serveAddr    string
	serveOrigins []string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allow-origin", nil, "additional websocket origin to accept")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve exports over HTTP and run scheduled exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		rt, err := setup(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		store, err := state.NewStore(rt.cfg.State)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer store.Close()

		sched := export.NewScheduler(rt.svc)
		sched.SetStore(store)
		for _, sc := range rt.cfg.Schedules {
			if err := sched.Add(sc); err != nil {
				return err
			}
		}
		sched.Start()

		addr := serveAddr
		if addr == "" {
			addr = rt.cfg.Server.Addr
		}
		server := api.NewServer(rt.svc,
			api.WithAuthToken(rt.cfg.Server.AuthToken),
			api.WithScheduler(sched),
			api.WithAllowedOrigins(serveOrigins...),
			api.WithVersion(Version),
			api.WithLogger(rt.logger),
		)
		if rt.cfg.Server.AuthToken == "" {
			rt.logger.Warn("No auth token configured, the API is open to every client")
		}

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("Starting expdata server", "addr", addr, "apps", rt.svc.AppNames(), "schedules", len(rt.cfg.Schedules))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}

		rt.logger.Info("Shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("HTTP shutdown failed", "error", err)
		}
		if err := sched.Stop(shutdownCtx); err != nil {
			rt.logger.Error("Scheduled exports did not finish", "error", err)
		}
		rt.logger.Info("expdata shutdown complete")
		return nil
	},
}
