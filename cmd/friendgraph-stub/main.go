package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/friendgraph/pkg/backendstub"
	"github.com/ha1tch/friendgraph/pkg/config"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("component", "stub").
		Logger().
		Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg := config.Default()
	config.LoadFromEnv(cfg)

	port := flag.Int("port", cfg.StubPort, "port to listen on")
	codes := flag.Bool("codes", cfg.StubCodes, "attach structured error codes to error responses")
	sequential := flag.Bool("sequential-ids", false, "assign ids 1, 2, ... instead of UUIDs")
	flag.Parse()

	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	stub := backendstub.New(backendstub.Options{
		Codes:         *codes,
		SequentialIDs: *sequential,
		Logger:        logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info().Msg("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info().
		Str("addr", addr).
		Bool("codes", *codes).
		Bool("sequential_ids", *sequential).
		Msg("Backend stub listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Stub failed")
	}
}
