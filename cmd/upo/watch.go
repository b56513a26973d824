package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensase/upo/pkg/cli"
	"github.com/opensase/upo/pkg/intent/source"
	"github.com/opensase/upo/pkg/telemetry/metrics"
)

var watchFlags struct {
	apply bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompile whenever the intent changes",
	Long: `Watch the configured intent path and recompile on every change.
Changes are debounced so an editor save triggers one recompilation.

With --apply, each successful compilation is also planned and applied.
Without it, watch only reports what the change compiles to.

Runs until interrupted. When metrics are enabled with a listen address,
the /metrics endpoint is served for the lifetime of the watch.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchFlags.apply, "apply", false, "apply after each successful compilation")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if cfg.Intent.Path == "" {
		return cli.NewConfigError("intent.path", "watch requires a local intent path")
	}

	if mc := cfg.Telemetry.Metrics; mc.Enabled && mc.ListenAddress != "" {
		collector := metrics.NewCollector(metrics.Config{
			Enabled:   true,
			Namespace: mc.Namespace,
		}, nil)
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		server := &http.Server{
			Addr:              mc.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer server.Close()
		logger.Info("metrics endpoint started", "address", mc.ListenAddress)
	}

	watcher, err := source.NewWatcher(&source.WatcherConfig{
		Path:             cfg.Intent.Path,
		DebounceInterval: cfg.Intent.DebounceInterval,
	}, logger)
	if err != nil {
		return err
	}

	ctx := cli.SetupSignalHandler()

	recompile := func() error {
		configs, selected, err := compilePipeline(cmd, cfg, logger, "", nil)
		if err != nil {
			return err
		}
		for name, cc := range configs {
			logger.Info("recompiled",
				"target", name,
				"items", len(cc.Items()),
				"gaps", len(cc.Gaps),
				"errors", len(cc.Errors))
		}
		if !watchFlags.apply {
			return nil
		}
		return applyCompiled(cmd, cfg, logger, configs, selected)
	}

	// Compile once at startup so a broken intent is reported immediately.
	if err := recompile(); err != nil {
		logger.Error("initial compilation failed", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", cfg.Intent.Path)
	return watcher.Watch(ctx, recompile)
}
