/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/hearth_radio/internal/config"
	"github.com/friendsincode/hearth_radio/internal/logbuffer"
	"github.com/friendsincode/hearth_radio/internal/logging"
	"github.com/friendsincode/hearth_radio/internal/server"
	"github.com/friendsincode/hearth_radio/internal/telemetry"
	"github.com/friendsincode/hearth_radio/internal/version"
)

const logBufferSize = 2000

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf *logbuffer.Buffer

	serveWithPlayer bool
)

var rootCmd = &cobra.Command{
	Use:   "hearthradio",
	Short: "Hearth Radio - weekly music schedule for the house",
	Long:  "Hearth Radio plays internet radio and Spotify playlists on a weekly schedule of hour blocks, editable from any device in the house.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Hearth Radio API",
	Long:  "Start the HTTP API, event stream and background workers. With --with-player the same process also plays audio.",
	RunE:  runServe,
}

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Run the player against the shared database",
	Long:  "Run only the playback orchestrator and its audio adapters. Exposes /healthz and /metrics on HEARTH_METRICS_BIND.",
	RunE:  runPlayer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hearthradio %s\n", version.Version)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWithPlayer, "with-player", false, "Embed the player in the API process")
	rootCmd.AddCommand(serveCmd, playerCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuf = logbuffer.New(logBufferSize)
	logger = logging.Setup(logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	}, logBuf)
	return nil
}

func initTracer(service string) (func(), error) {
	tp, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    service,
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Bool("with_player", serveWithPlayer).Msg("Hearth Radio starting")

	shutdownTracer, err := initTracer("hearth-radio")
	if err != nil {
		return err
	}
	defer shutdownTracer()

	srv, err := server.New(cfg, logBuf, logger, server.Options{WithPlayer: serveWithPlayer})
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()
	serveErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serveErr:
		logger.Error().Err(runErr).Msg("http server error")
	}

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Hearth Radio stopped")
	return runErr
}

func runPlayer(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Hearth Radio player starting")

	shutdownTracer, err := initTracer("hearth-radio-player")
	if err != nil {
		return err
	}
	defer shutdownTracer()

	player, err := server.NewStandalone(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize player: %w", err)
	}
	defer func() {
		if err := player.Close(); err != nil {
			logger.Error().Err(err).Msg("player cleanup failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Hearth Radio player stopped")
	return nil
}
