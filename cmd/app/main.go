package main

import (
	"VisionGuard/internal/config"
	"VisionGuard/pkg/broadcast"
	"VisionGuard/pkg/log"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	hub := broadcast.NewHub(logger)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithMiddleware(),
		config.WithGeminiClient(),
		config.WithNotifier(),
		config.WithGallery(),
		config.WithBroadcastHub(hub),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if feedURL := os.Getenv("CAMERA_FEED_URL"); feedURL != "" {
		source := broadcast.NewWSCaptureSource(feedURL)
		loop := broadcast.NewLoop(source, hub, logger)

		go func() {
			if err := loop.Run(ctx); err != nil {
				logger.Errorf("Capture loop stopped: %v", err)
			}
		}()
		logger.Infof("Capture loop started for %s", feedURL)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	cancel()
	logger.Info("Shutting down server...")
}
