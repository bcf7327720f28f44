package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/friendgraph/pkg/apiclient"
	"github.com/ha1tch/friendgraph/pkg/config"
	"github.com/ha1tch/friendgraph/pkg/dashboard"
	"github.com/ha1tch/friendgraph/pkg/graph"
	"github.com/ha1tch/friendgraph/pkg/notify"
	"github.com/ha1tch/friendgraph/pkg/server"
	"github.com/ha1tch/friendgraph/pkg/validation"
)

func main() {
	// Setup logger
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Logger().
		Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	printBanner(cfg)

	client := apiclient.New(apiclient.Options{
		BaseURL:     cfg.BackendURL,
		Timeout:     cfg.RequestTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
		Interval:    cfg.BreakerInterval,
		Logger:      logger.With().Str("component", "apiclient").Logger(),
	})

	notices := notify.NewCenter(cfg.NoticeCapacity, cfg.NoticeTTL)
	defer notices.Close()

	dash := dashboard.New(client, dashboard.Options{
		Layout: graph.Layout{
			Columns:     cfg.GridColumns,
			ColumnWidth: cfg.ColumnWidth,
			RowHeight:   cfg.RowHeight,
		},
		Notices: notices,
		Logger:  logger.With().Str("component", "dashboard").Logger(),
	})

	// The first load may fail; the dashboard serves an empty view and the
	// client can refresh once the backend is up
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := dash.Load(ctx); err != nil {
		logger.Warn().Err(err).Str("backend", cfg.BackendURL).Msg("Initial load failed")
	} else {
		logger.Info().Int("users", len(dash.View().Users)).Msg("Initial load complete")
	}
	cancel()

	srv := server.New(cfg, dash, validation.New(), logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info().Msg("Shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	// Start server
	logger.Info().Msg("Server ready to accept requests")
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

func printBanner(cfg *config.Config) {
	lightBlue := "\033[1;36m"
	reset := "\033[0m"

	fmt.Print(lightBlue)
	fmt.Println("//////////////////////////////////////////////")
	fmt.Println("//..........................................//")
	fmt.Println("//....(o)------(o)..........................//")
	fmt.Println("//.....|.\\......|...........................//")
	fmt.Println("//.....|..\\.....|....f r i e n d...........//")
	fmt.Println("//.....|...\\....|........g r a p h.........//")
	fmt.Println("//....(o)------(o)..........................//")
	fmt.Println("//..........................................//")
	fmt.Println("//////////////////////////////////////////////")
	fmt.Print(reset)

	fmt.Println()
	fmt.Println("//////////////////////// friendgraph " + config.Version + " /////////////////////////")
	fmt.Println("----------------------------------------------------------------------")
	fmt.Println("Server Configuration:")
	fmt.Printf("  Host: %s\n", cfg.Host)
	fmt.Printf("  Port: %d\n", cfg.Port)
	fmt.Printf("  CORS origins: %v\n", cfg.AllowedOrigins)
	fmt.Println()
	fmt.Println("Backend Configuration:")
	fmt.Printf("  URL: %s\n", cfg.BackendURL)
	fmt.Printf("  Request timeout: %s\n", cfg.RequestTimeout)
	fmt.Printf("  Breaker: opens after %d failures for %s\n", cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout)
	fmt.Println()
	fmt.Println("Graph Layout:")
	fmt.Printf("  Grid: %d columns, %.0fx%.0f cells\n", cfg.GridColumns, cfg.ColumnWidth, cfg.RowHeight)
	fmt.Println()
	fmt.Println("Notices:")
	fmt.Printf("  TTL: %s\n", cfg.NoticeTTL)
	fmt.Printf("  Capacity: %d\n", cfg.NoticeCapacity)
	fmt.Println("----------------------------------------------------------------------")
	fmt.Println()
}
