package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/reflow-dev/reflow/pkg/exprcell"
	"github.com/reflow-dev/reflow/pkg/inspect"
	"github.com/reflow-dev/reflow/pkg/reactive"
)

func demoCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a live demo store with the web inspector",
		Long: `Start a store with a few ticking cells and serve the inspector.

Endpoints:

  /api/store       store summary
  /api/cells       all cells with values and dependencies
  /api/cells/{id}  one cell
  /ws              change feed (JSON over WebSocket)
  /metrics         Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(addr, interval)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8391", "Inspector listen address")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "Tick interval")

	return cmd
}

func runDemo(addr string, interval time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	registry := prometheus.NewRegistry()
	metrics := reactive.NewMetrics(reactive.MetricsRegistry(registry))

	store := reactive.NewStore(
		reactive.WithLogger(logger),
		reactive.WithMetrics(metrics),
	)
	defer store.Close()

	ticks := reactive.NewCell(store, "ticks", 0)
	reactive.NewCell(store, "interval_ms", int(interval.Milliseconds()))
	if _, err := exprcell.Derive(store, "ticks * interval_ms", reactive.WithName("uptime_ms")); err != nil {
		return err
	}
	parity := reactive.NewDerived(store, func() (string, error) {
		v, err := ticks.Get()
		if err != nil {
			return "", err
		}
		if v%2 == 0 {
			return "even", nil
		}
		return "odd", nil
	}, reactive.WithName("parity"))
	if _, err := parity.Get(); err != nil {
		return err
	}

	srv, err := inspect.New(store, &inspect.Config{
		Addr:           addr,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         logger.With("component", "inspect"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ticks.Update(func(n int) int { return n + 1 }); err != nil {
					logger.Error("tick failed", "err", err)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	printBanner()
	fmt.Printf("\n  Inspector: http://%s/api/cells\n  Feed:      ws://%s/ws\n\n", addr, addr)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
