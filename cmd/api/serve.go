package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

const shutdownGrace = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var port string
	var noMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := appConfigFromEnv()
			if port != "" {
				cfg.Port = port
			}
			if noMigrate {
				cfg.AutoMigrate = false
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip applying migrations on startup")
	return cmd
}

func runServe(parent context.Context, cfg appConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return err
	}
	defer lg.Sync()
	sugar := lg.Sugar()
	sugar.Infow("starting service-auth", "port", cfg.Port)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, sugar)
	if err != nil {
		sugar.Errorw("startup failed", "err", err)
		return oops.Code("STARTUP_FAILED").With("operation", "wire app").Wrap(err)
	}
	defer func() {
		if err := a.close(); err != nil {
			sugar.Warnw("close connections failed", "err", err)
		}
	}()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		a.sweeper.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		sugar.Errorw("http server failed", "err", serveErr)
		stop()
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := a.auth.Drain(doneCtx); err != nil {
		sugar.Warnw("pending reset deliveries abandoned", "err", err)
	}
	<-sweepDone
	sugar.Info("goodbye")
	return serveErr
}
