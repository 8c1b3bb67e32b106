package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"empty-sweep/internal/build"
	"empty-sweep/internal/config"
	"empty-sweep/internal/database"
	"empty-sweep/internal/exitcodes"
	"empty-sweep/internal/hooks"
	"empty-sweep/internal/logging"
	"empty-sweep/internal/metrics"
	"empty-sweep/internal/safety"
	"empty-sweep/internal/sweep"
)

type options struct {
	configPath  string
	baseDir     string
	outputDir   string
	watch       bool
	once        bool
	dbPath      string
	metricsPort int
	noColor     bool
	command     []string
}

func main() {
	opts := parseFlags()
	os.Exit(exitcodes.Code(run(opts)))
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&o.baseDir, "base", "", "Base directory (project root)")
	flag.StringVar(&o.outputDir, "out", "", "Output directory, absolute or relative to --base")
	flag.BoolVar(&o.watch, "watch", false, "Rebuild and sweep on source changes")
	flag.BoolVar(&o.once, "once", false, "Run a single build pass even if watch mode is configured")
	flag.StringVar(&o.dbPath, "db", "", "Path to SQLite database for sweep history")
	flag.IntVar(&o.metricsPort, "metrics-port", -1, "Prometheus port (0 disables, overrides config)")
	flag.BoolVar(&o.noColor, "no-color", false, "Disable coloured console output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s (--config FILE | --base DIR --out DIR) [flags] [-- build command...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	o.command = flag.Args()
	return o
}

func loadConfig(o options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = config.Load(o.configPath)
	case o.baseDir != "" && o.outputDir != "":
		cfg, err = config.Default(o.baseDir, o.outputDir)
	default:
		return nil, errors.New("either --config or both --base and --out are required")
	}
	if err != nil {
		return nil, err
	}

	// Flags override the file
	if o.baseDir != "" && o.configPath != "" {
		cfg.BaseDir = o.baseDir
	}
	if o.outputDir != "" && o.configPath != "" {
		cfg.OutputDir = o.outputDir
	}
	if len(o.command) > 0 {
		cfg.Build.Command = o.command
	}
	if o.watch {
		cfg.Watch.Enabled = true
	}
	if o.once {
		cfg.Watch.Enabled = false
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.metricsPort >= 0 {
		cfg.Prometheus.Port = o.metricsPort
	}
	if o.noColor {
		disabled := false
		cfg.Logging.Color = &disabled
	}
	return cfg, cfg.Validate()
}

func run(o options) error {
	logger := logging.New()

	cfg, err := loadConfig(o)
	if err != nil {
		logger.Printf("ERROR: Failed to load config: %v", err)
		return exitcodes.Wrap(exitcodes.InvalidConfig, err)
	}

	logger, fileLogger := logging.NewSinks(cfg)
	logger.Println("empty-sweep starting...")
	logger.Printf("base=%s output=%s root=%s", cfg.BaseDir, cfg.OutputDir, cfg.SweepRoot())
	if len(cfg.Build.Command) > 0 {
		logger.Printf("build command: %s", strings.Join(cfg.Build.Command, " "))
	}

	validator := safety.NewValidator(cfg.ProtectedPaths)
	if err := validator.ValidateSweepRoot(cfg.SweepRoot()); err != nil {
		logger.Printf("ERROR: Refusing sweep root: %v", err)
		return exitcodes.Wrap(exitcodes.SafetyViolation, err)
	}

	metrics.Init()
	if cfg.Prometheus.Port > 0 {
		addr := cfg.PrometheusAddress()
		logger.Printf("Starting Prometheus metrics on %s", addr)
		if err := metrics.StartServer(addr, logger); err != nil {
			logger.Printf("ERROR: Failed to start metrics server: %v", err)
			return exitcodes.Wrap(exitcodes.RuntimeError, err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, logger)
		}()
	}

	recorders := []sweep.Recorder{metrics.Recorder{}}
	hc := metrics.NewHealthChecker(30 * time.Second)
	hc.RegisterComponent("base_dir", func() error {
		_, err := os.Stat(cfg.BaseDir)
		return err
	}, 5*time.Second)

	if cfg.DatabasePath != "" {
		logger.Printf("Opening sweep database: %s", cfg.DatabasePath)
		db, err := database.NewSweepDB(cfg.DatabasePath)
		if err != nil {
			logger.Printf("ERROR: Failed to open database: %v", err)
			return exitcodes.Wrap(exitcodes.RuntimeError, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
		recorders = append(recorders, database.NewRecorder(db, logger))
		hc.RegisterComponent("database", db.Ping, 5*time.Second)
	}

	hc.Start()
	metrics.SetHealthChecker(hc)
	defer hc.Stop()

	sweeper := sweep.New(cfg.BaseDir, cfg.OutputDir)
	sweeper.SetLogger(logging.NewConsole(os.Stdout, cfg.ColorEnabled(), fileLogger))
	sweeper.SetRecorder(sweep.Recorders(recorders...))

	h := hooks.New()
	h.Register(sweeper)
	h.Tap(hooks.Done, "summary", summary(logger))

	pipeline := build.NewPipeline(cfg, h, logger)
	if cfg.Watch.Enabled {
		metrics.SetTriggerChannel(pipeline.Trigger())
		defer metrics.SetTriggerChannel(nil)
		logger.Printf("watching %s", strings.Join(cfg.WatchPaths(), ", "))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Printf("Received signal %v, shutting down gracefully...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("ERROR: %v", err)
		return exitcodes.Wrap(exitcodes.RuntimeError, err)
	}

	logger.Println("empty-sweep stopped")
	return nil
}

func summary(logger *log.Logger) hooks.Func {
	return func(_ context.Context, res hooks.BuildResult) error {
		logger.Printf("build pass %s complete in %s", res.ID, res.Finished.Sub(res.Started).Round(time.Millisecond))
		return nil
	}
}
