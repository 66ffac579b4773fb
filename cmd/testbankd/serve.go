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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/api"
	audithook "github.com/xraph/testbank/audit_hook"
	"github.com/xraph/testbank/fixtures"
	"github.com/xraph/testbank/host"
	"github.com/xraph/testbank/observability"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deploy the contracts and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override the configured listen address")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	audit := audithook.New(audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		a.logger.InfoContext(ctx, "audit",
			"id", ev.ID,
			"action", ev.Action,
			"severity", ev.Severity,
			"outcome", ev.Outcome,
			"resource_id", ev.ResourceID,
			"reason", ev.Reason,
		)
		return nil
	}), audithook.WithLogger(a.logger))

	h, err := a.newHost(
		host.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		host.WithPlugin(audit),
	)
	if err != nil {
		return err
	}
	if err := h.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := h.Stop(); err != nil {
			a.logger.Error("failed to stop host", "error", err)
		}
	}()

	if err := a.deploy(ctx, h); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           api.New(h, api.WithLogger(a.logger), api.WithGatherer(reg), api.WithBasePath(a.cfg.BasePath)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("testbankd listening", "addr", a.cfg.Listen, "base_path", a.cfg.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	a.logger.Info("testbankd shutting down")
	return srv.Shutdown(shutdownCtx)
}

// deploy installs the bank and, when configured, the fixtures.
func (a *app) deploy(ctx context.Context, h *host.Host) error {
	names := []string{testbank.ContractName}
	if a.cfg.Fixtures {
		names = append(names, fixtures.HM25Name)
	}
	for _, name := range names {
		c, err := a.contractFor(name)
		if err != nil {
			return err
		}
		if _, err := h.Deploy(ctx, c); err != nil {
			return fmt.Errorf("deploy %s: %w", name, err)
		}
	}
	return nil
}
