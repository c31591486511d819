package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/httpmemfs/internal/logger"
	"github.com/marmos91/httpmemfs/pkg/config"
	"github.com/marmos91/httpmemfs/pkg/vfs"
	"github.com/spf13/pflag"
)

const usage = `httpmemfs - in-memory filesystem backed by an HTTP origin

Usage:
  httpmemfs init [--force] [--config PATH]   Write a sample configuration file
  httpmemfs start [flags]                    Build the filesystem and serve it
  httpmemfs help                             Show this help

Run "httpmemfs start --help" for the list of start flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	force := flags.Bool("force", false, "Overwrite an existing configuration file")
	path := flags.String("config", "", "Write to this path instead of the default location")
	if err := flags.Parse(args); err != nil {
		return err
	}

	target := *path
	if target == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		target = written
	} else if err := config.InitConfigToPath(target, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", target)
	return nil
}

func startFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	flags.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/httpmemfs/config.yaml)")
	flags.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.StringP("mount-point", "m", "", "Drive letter or directory to mount on")
	flags.Bool("single-thread", false, "Ask the host layer to dispatch requests serially")
	flags.Bool("mount-debug", false, "Enable host layer debug output")
	flags.Bool("removable", false, "Mount as a removable drive")
	flags.StringP("base-url", "u", "", "Origin base URL that unknown paths are fetched from")
	flags.IntP("workers", "w", 0, "Number of concurrent downloads")
	flags.Duration("wait-timeout", 0, "Maximum wait for remote content")
	flags.String("seed", "", "YAML/JSON directory tree to create at startup")
	flags.Bool("filter", false, "Refuse paths matching the configured ignore patterns")
	flags.Bool("metrics", false, "Expose Prometheus metrics")
	flags.Int("metrics-port", 0, "Metrics server port")
	return flags
}

func runStart(args []string) error {
	flags := startFlags()
	if err := flags.Parse(args); err != nil {
		return err
	}
	configPath, _ := flags.GetString("config")

	cfg, err := config.LoadWithFlags(configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("httpmemfs starting")
	logger.Info("Origin: %v", cfg.Origin.HTTP["base_url"])
	logger.Info("Mount point: %s (single_thread=%t debug=%t removable=%t)",
		cfg.Mount.MountPoint, cfg.Mount.SingleThread, cfg.Mount.Debug, cfg.Mount.Removable)
	logger.Debug("Filesystem: wait_timeout=%s poll_interval=%s readonly_policy=%s",
		cfg.Filesystem.WaitTimeout, cfg.Filesystem.PollInterval, cfg.Filesystem.ReadonlyPolicy)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The status endpoint reads the filesystem once it exists.
	var fs *vfs.Filesystem
	mr := config.InitializeMetrics(cfg, func() map[string]any {
		if fs == nil {
			return map[string]any{"ready": false}
		}
		return map[string]any{
			"ready":               true,
			"open_handles":        fs.OpenHandles(),
			"downloads_in_flight": fs.DownloadsInFlight(),
			"volume":              fs.VolumeInfo().Name,
		}
	})

	o, err := config.CreateOrigin(&cfg.Origin)
	if err != nil {
		return err
	}

	pool, err := config.CreatePool(&cfg.Workers, mr.Pool)
	if err != nil {
		return err
	}

	fs, err = config.CreateFilesystem(cfg, o, pool, mr.Filesystem)
	if err != nil {
		pool.Close()
		return err
	}

	metricsErr := make(chan error, 1)
	if mr.Server != nil {
		go func() {
			metricsErr <- mr.Server.Start(ctx)
		}()
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	logger.Info("Filesystem ready (volume %q, %d download workers). Press Ctrl+C to stop.",
		cfg.Filesystem.VolumeName, cfg.Workers.Size)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-metricsErr:
		if err != nil {
			logger.Error("Metrics server error: %v", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if mr.Server != nil {
		if err := mr.Server.Stop(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown: %v", err)
		}
	}

	if err := fs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("httpmemfs stopped")
	return nil
}
