// Package main provides the player server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/lyricbox/internal/api/connect"
	"github.com/osa030/lyricbox/internal/app/coordinator"
	"github.com/osa030/lyricbox/internal/app/notification"
	"github.com/osa030/lyricbox/internal/app/playback"
	"github.com/osa030/lyricbox/internal/app/source"
	"github.com/osa030/lyricbox/internal/infra/config"
	"github.com/osa030/lyricbox/internal/infra/logger"
	"github.com/osa030/lyricbox/internal/infra/media"
)

var (
	app        = kingpin.New("lyricbox-server", "lyricbox synced-lyrics player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closeLog()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	fetcher, err := source.NewFromConfig(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to create track source: %w", err)
	}

	loader, err := media.NewLoader(media.Config{
		SampleRate:      cfg.Media.SampleRate,
		Buffer:          cfg.Media.Buffer(),
		ResampleQuality: cfg.Media.ResampleQuality,
		HTTPTimeout:     cfg.Media.HTTPTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create media loader: %w", err)
	}
	defer loader.Close()
	if !media.AudioAvailable {
		zlog.Warn().Msg("Audio output is not available in this build, playing silently")
	}

	engine := playback.NewEngine(loader, playback.Config{
		SampleInterval: cfg.Playback.SampleInterval(),
	})
	defer engine.Close()

	notifManager := notification.NewManager(0)
	coord, err := coordinator.New(engine, fetcher, notifManager, coordinator.Config{
		ResubscribeDelay: cfg.Playback.ResubscribeDelay(),
		FetchTimeout:     cfg.Playback.FetchTimeout(),
		QueueSize:        cfg.Playback.QueueSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer coord.Close()

	// Create HTTP mux
	mux := http.NewServeMux()
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(coord, notifManager),
		cfg.Server.Token,
	)
	mux.Handle(playerPath, playerHandler)
	if cfg.Server.Token == "" {
		zlog.Warn().Msg("No server token configured, commands are accepted from anyone")
	}

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Load the first track right away
	if err := coord.FetchTrack(); err != nil {
		return fmt.Errorf("failed to request track: %w", err)
	}
	if cfg.Playback.Autoplay {
		if err := coord.Play(); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
	}

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close subscriptions first to terminate active streams
	notifManager.Close()
	coord.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}
