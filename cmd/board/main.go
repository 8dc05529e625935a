package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/board"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
)

func bindFlags(fs *flag.FlagSet, cfg *board.Config) *string {
	configPath := fs.String("config", "", "YAML config file (flags override it)")
	fs.StringVar(&cfg.Addr, "http", cfg.Addr, "HTTP server address")
	fs.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "Backend base URL serving /api/get_state")
	fs.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "Poll period")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Timeout for one state fetch")
	fs.StringVar(&cfg.StalePolicy, "stale-policy", cfg.StalePolicy, "Stale response policy (newest, latest-issued)")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Timezone for displayed times")
	fs.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "Static assets directory")
	fs.Float64Var(&cfg.ZoneRadiusM, "zone-radius", cfg.ZoneRadiusM, "Zone overlay radius in metres")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	fs.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")
	return configPath
}

func loadConfig(args []string) (board.Config, bool) {
	cfg := board.DefaultConfig()
	fs := flag.NewFlagSet("board", flag.ExitOnError)
	configPath := bindFlags(fs, &cfg)
	once := fs.Bool("once", false, "Apply a single snapshot, print status and exit")
	_ = fs.Parse(args)

	if *configPath != "" {
		if err := board.LoadFile(*configPath, &cfg); err != nil {
			log.Fatalf("Config: %v", err)
		}
		// Explicit flags win over the file.
		again := flag.NewFlagSet("board", flag.ExitOnError)
		bindFlags(again, &cfg)
		again.Bool("once", false, "")
		_ = again.Parse(args)
	}
	return cfg, *once
}

func main() {
	cfg, once := loadConfig(os.Args[1:])

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, cfg.LogColor)

	b, err := board.New(cfg, board.Options{})
	if err != nil {
		log.Fatalf("Failed to create board: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		err := b.RunOnce(ctx)
		st := b.Stats()
		logger.Info("Main", "markers=%d zones=%d applied=%d failed=%d", st.Markers, st.Zones, st.Applied, st.Failed)
		if err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
		return
	}

	logger.Info("Main", "Board listening on %s", cfg.Addr)
	logger.Info("Main", "Backend: %s (every %s, policy %s)", cfg.BackendURL, cfg.PollInterval, cfg.StalePolicy)
	logger.Info("Main", "Log level: %s", level)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		b.Run(ctx)
	}()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Main", "Shutting down...")

	// Streams only end when their request context does, so bound the wait.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Main", "HTTP shutdown: %v", err)
	}
	<-pollDone
	logger.Info("Main", "Board stopped")
}
