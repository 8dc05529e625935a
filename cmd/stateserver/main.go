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

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/detect"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/stateserver"
)

var (
	httpAddr = flag.String("http", ":5000", "HTTP server address")
	modelURL = flag.String("model", "", "Model server base URL for /predict (empty disables it)")
	logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	store := stateserver.NewStore(stateserver.DefaultCameras, nil)
	var predictor stateserver.Predictor
	if *modelURL != "" {
		predictor = detect.NewClient(*modelURL, nil, 60*time.Second)
		logger.Info("Main", "Forwarding /predict to %s", *modelURL)
	}
	srv := stateserver.NewServer(store, predictor)

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Main", "State server listening on %s (%d cameras)", *httpAddr, len(store.CameraIDs()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Main", "Error during shutdown: %v", err)
	}
	logger.Info("Main", "Server stopped")
}
