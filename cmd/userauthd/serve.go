package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/userauth"
	"github.com/MrEthical07/userauth/internal/httpapi"
	"github.com/MrEthical07/userauth/internal/logging"
	promexport "github.com/MrEthical07/userauth/metrics/export/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := logging.Setup("userauthd", version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger, nil)
		},
	}
	registerFlags(cmd.Flags())
	return cmd
}

// runServe blocks until ctx is done or the listener fails. ready, when set,
// receives the bound address once the server accepts connections.
func runServe(ctx context.Context, cfg appConfig, logger *slog.Logger, ready func(net.Addr)) error {
	st, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := userauth.New().
		WithConfig(cfg.managerConfig()).
		WithStore(st).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(userauth.NewSlogSink(logger))
	}
	mgr, err := builder.Build()
	if err != nil {
		return oops.Code("MANAGER_BUILD_FAILED").Wrap(err)
	}
	defer mgr.Close()

	opts := httpapi.Options{
		CookieName:   cfg.HTTP.CookieName,
		SecureCookie: cfg.HTTP.SecureCookie,
		BasicAuth:    cfg.HTTP.BasicAuth,
		Logger:       logger,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics, err = metricsHandler(mgr)
		if err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           httpapi.New(mgr, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.InfoContext(ctx, "listening", "addr", ln.Addr().String(), "store", cfg.Store.Driver)
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	<-errCh
	return nil
}

func metricsHandler(mgr *userauth.Manager) (http.Handler, error) {
	exp, err := promexport.NewExporter(mgr)
	if err != nil {
		return nil, oops.Code("METRICS_INIT_FAILED").Wrap(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := exp.Register(reg); err != nil {
		return nil, oops.Code("METRICS_INIT_FAILED").Wrap(err)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
