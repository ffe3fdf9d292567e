// Command healthscoped is the healthscope HTTP service.
// It serves the REST API, the CRM webhook endpoint, Prometheus metrics and
// a health check.
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

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/healthscope/healthscope/internal/api"
	"github.com/healthscope/healthscope/internal/app"
	"github.com/healthscope/healthscope/internal/config"
	"github.com/healthscope/healthscope/internal/webhook"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "healthscoped",
		Short:         "Serve the healthscope API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	logger, err := config.InitLogger(cfg.Log)
	if err != nil {
		return eris.Wrap(err, "init logger")
	}
	defer logger.Sync() //nolint:errcheck

	env, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(env),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, cfg.Server.ShutdownTimeout)
}

func newRouter(env *app.Env) http.Handler {
	var crm http.Handler
	if env.Config.Webhook.Secret != "" {
		crm = webhook.NewHandler([]byte(env.Config.Webhook.Secret), env.Store, env.Recorder)
	} else {
		zap.L().Warn("webhook.secret not set, CRM webhook disabled")
	}

	return api.NewHandler(api.Options{
		Store:       env.Store,
		Recorder:    env.Recorder,
		Ingestion:   env.Ingestion,
		Metrics:     env.Metrics,
		Webhook:     crm,
		APIKey:      env.Config.Server.APIKey,
		CORSOrigins: env.Config.Server.CORSOrigins,
	}).Routes()
}

// serve runs srv until ctx is cancelled, then drains in-flight requests for
// at most timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting healthscoped", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutdown")
	}
	return nil
}
