package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/umsu/umsugraph/pkg/analysis"
	"github.com/umsu/umsugraph/pkg/config"
	"github.com/umsu/umsugraph/pkg/logging"
	"github.com/umsu/umsugraph/pkg/output"
	"github.com/umsu/umsugraph/pkg/watcher"
	"github.com/umsu/umsugraph/pkg/web"
)

func main() {
	f := pflag.NewFlagSet("umsugraph", pflag.ExitOnError)
	f.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: umsugraph [flags] [dataset ...]\n\n")
		fmt.Fprintf(os.Stderr, "Datasets are merged in order; later datasets take precedence.\n\n")
		f.PrintDefaults()
	}
	f.StringSlice("datasets", nil, "Dataset files (JSON or YAML), lowest priority first")
	f.String("state", "", "State document with stored datasets, groups and forces")
	f.String("groups", "", "Group table file (JSON or YAML list)")
	f.Bool("web", false, "Start web server instead of printing to console")
	f.Int("port", 8080, "Port for web server (only used with --web)")
	f.Bool("watch", false, "Re-merge when inputs change (requires --web)")
	f.Bool("open", true, "Open browser when starting the web server")
	f.Bool("json", false, "Write the merged graph as JSON to stdout")
	f.Int("cache", 64, "Number of decoded datasets to cache")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.String("log_format", "text", "Log format: text or json")
	f.CountP("verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Datasets = append(cfg.Datasets, f.Args()...)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logging.SetLevel(logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt))
	logging.SetJSONOutput(cfg.LogFormat == "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := analysis.Options{
		Datasets:   cfg.Datasets,
		StatePath:  cfg.State,
		GroupsPath: cfg.Groups,
		Forces:     cfg.Forces,
		CacheSize:  cfg.CacheSize,
	}

	if cfg.WebMode {
		if err := serve(ctx, cfg, opts); err != nil {
			logging.Fatal("server stopped", "error", err)
		}
		return
	}

	runner, err := analysis.NewRunner(opts, nil)
	if err != nil {
		logging.Fatal("failed to create runner", "error", err)
	}
	snap, err := runner.Run(ctx, "command line")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.JSON {
		if err := output.WriteGraphJSON(os.Stdout, snap); err != nil {
			logging.Fatal("failed to write graph", "error", err)
		}
		return
	}
	output.PrintMergeReport(os.Stdout, snap)
}

func serve(ctx context.Context, cfg *config.Config, opts analysis.Options) error {
	server := web.NewServer()
	defer server.Close()

	runner, err := analysis.NewRunner(opts, server)
	if err != nil {
		return err
	}
	server.OnRefresh(func(ctx context.Context) error {
		_, err := runner.Run(ctx, "refresh requested")
		return err
	})
	if cfg.State != "" {
		server.SetStateEditor(runner)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start(cfg.Port)
	}()

	// Merge in the background; the page shows progress over SSE
	go func() {
		if _, err := runner.Run(ctx, "initial merge"); err != nil {
			logging.Warn("initial merge failed", "error", err)
		}
	}()

	if cfg.Watch {
		if err := startWatching(ctx, cfg, runner); err != nil {
			logging.Warn("file watching disabled", "error", err)
		}
	}

	if cfg.OpenBrowser {
		// Give the listener a moment to come up
		time.Sleep(500 * time.Millisecond)
		openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
	}

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logging.Info("shutting down")
		return nil
	}
}

func startWatching(ctx context.Context, cfg *config.Config, runner *analysis.Runner) error {
	fw, err := watcher.NewFileWatcher(cfg.Datasets, cfg.State, cfg.Groups)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)
	go runner.Watch(ctx, debouncer.Output())
	return nil
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		logging.Warn("cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		logging.Warn("failed to open browser", "error", err)
	}
}
