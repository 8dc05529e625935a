package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/detect"
	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
)

var (
	backendURL = flag.String("backend", "http://localhost:5000", "Detection backend base URL")
	inPath     = flag.String("in", "", "Image to submit")
	outPath    = flag.String("out", "result.jpg", "Where to write the annotated image")
	timeout    = flag.Duration("timeout", 60*time.Second, "Request timeout")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor   = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	if *inPath == "" {
		log.Fatalf("Error: %v (use -in)", detect.ErrNoFile)
	}
	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("Open image: %v", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := detect.NewClient(*backendURL, nil, *timeout)
	res, err := client.Detect(ctx, filepath.Base(*inPath), f)
	if err != nil {
		var remote *detect.RemoteError
		if errors.As(err, &remote) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", remote.Message)
			os.Exit(1)
		}
		log.Fatalf("An error occurred while processing the image: %v", err)
	}

	if err := os.WriteFile(*outPath, res.Image, 0o644); err != nil {
		log.Fatalf("Write result: %v", err)
	}
	if res.Format != "" {
		logger.Info("Main", "Wrote %s (%s %dx%d)", *outPath, res.Format, res.Width, res.Height)
	} else {
		logger.Info("Main", "Wrote %s (%d bytes, %s)", *outPath, len(res.Image), res.ContentType)
	}
}
