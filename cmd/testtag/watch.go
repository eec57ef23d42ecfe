package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/testtag/config"
	"github.com/c360studio/testtag/processor/ast"
	"github.com/c360studio/testtag/processor/rewriter"
)

func watchCmd(g *globalFlags) *cobra.Command {
	var (
		debounce    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Tag test classes as they are created or edited",
		Long: `Run once over the given paths, then keep watching them and tag test
classes whenever a source file is created or modified. Stops on SIGINT or
SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, g, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("debounce") {
				cfg.Watch.Debounce = debounce
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			return watch(cmd.Context(), cfg, logger, cmd.OutOrStdout(), nil)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a changed file is processed")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	return cmd
}

// watch runs the recipe over the configured files and then over every file
// the watcher reports until ctx is done. ready, when not nil, is closed once
// the watcher is running.
func watch(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer, ready chan<- struct{}) error {
	set := cfg.FileSet()
	roots, err := set.WatchRoots()
	if err != nil {
		return fmt.Errorf("resolve watch roots: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := rewriter.NewMetrics(reg)

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	watcher, err := ast.NewWatcher(ast.WatcherConfig{
		Roots:         roots,
		Extensions:    ast.DefaultRegistry.ListExtensions(),
		DebounceDelay: cfg.Watch.Debounce,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Started before the initial pass so edits made during it are queued.
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	// Our own writes must not trigger another pass.
	onWrite := func(path string, content []byte) {
		watcher.SetHash(path, ast.ComputeHash(content))
	}

	if _, err := runOnce(ctx, cfg, logger, w,
		rewriter.WithMetrics(metrics),
		rewriter.WithWriteHook(onWrite),
	); err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	runner, err := newRunner(cfg, logger,
		rewriter.WithMetrics(metrics),
		rewriter.WithWriteHook(onWrite),
		rewriter.WithPublisher(publisher),
	)
	if err != nil {
		return err
	}

	logger.Info("Watching for changes", "roots", roots, "debounce", cfg.Watch.Debounce)
	if ready != nil {
		close(ready)
	}

	for ev := range watcher.Events() {
		if ev.Operation == ast.OpDelete {
			continue
		}
		src, ok := set.Lookup(ev.Path)
		if !ok {
			continue
		}
		logger.Debug("Source changed", "path", ev.Path, "rel", src.Rel, "op", ev.Operation)

		report, err := runner.Run(ctx, []rewriter.Source{src})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("Watch run failed", "path", ev.Path, "error", err)
			continue
		}
		if report.Changed() > 0 || len(report.Failed()) > 0 {
			if err := render(w, cfg, report); err != nil {
				logger.Warn("Failed to render report", "error", err)
			}
		}
	}

	logger.Info("Watch stopped")
	return nil
}

// serveMetrics starts the /metrics endpoint and returns a function that
// shuts it down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}
