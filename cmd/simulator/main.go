package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/stateserver"
)

var (
	serverURL = flag.String("server", "http://127.0.0.1:5000", "State server base URL")
	cameras   = flag.String("cameras", "CAM001,CAM002,CAM003,CAM004", "Camera ids (comma-separated)")
	minDelay  = flag.Duration("min-delay", 0, "Minimum pause between events (0 keeps 5s)")
	maxDelay  = flag.Duration("max-delay", 0, "Maximum pause between events (0 keeps 15s)")
	logLevel  = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor  = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	ids := strings.Split(*cameras, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}

	sim := stateserver.NewSimulator(*serverURL, ids, nil)
	if *minDelay > 0 {
		sim.MinDelay = *minDelay
	}
	if *maxDelay > 0 {
		sim.MaxDelay = *maxDelay
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Main", "Starting Hawkeye camera trap simulator")
	sim.Run(ctx)
}
