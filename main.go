package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qcgallery/internal"
	"qcgallery/internal/config"
	"qcgallery/internal/container"
	"qcgallery/ui"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.LogLevel))
	internal.DefaultLogger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("closing connections: %v", err)
		}
	}()

	app := ui.NewApp(ui.Config{
		Port:            appConfig.Server.Port,
		DefaultPageSize: appConfig.Query.DefaultPageSize,
		ImageMaxAge:     appConfig.Images.CacheTTL,
	}, ui.Deps{
		Query:   c.Query,
		Catalog: c.Catalog,
		Images:  c.Images,
		Metrics: c.Metrics,
		Logger:  logger,
	})

	if err := app.Run(ctx); err != nil {
		logger.Error("server stopped: %v", err)
		os.Exit(1)
	}
}
