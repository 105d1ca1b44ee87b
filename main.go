// main.go - Constellation Studio engine daemon entry point
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/constellationstudio/engine/internal/engine"
	"github.com/constellationstudio/engine/internal/nodes"
	"github.com/constellationstudio/engine/internal/platform"
	"github.com/constellationstudio/engine/internal/webapi"
)

// Config is the engine daemon's complete runtime configuration, loaded from
// flags with CS_-prefixed environment variable overrides. There is no config
// file format; flags plus environment cover every deployment this daemon
// has.
type Config struct {
	ListenAddr        string
	FPS               float64
	LogLevel          string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	ShutdownTimeout   time.Duration
	PreviewWindow     bool
}

func defaultConfig() Config {
	return Config{
		ListenAddr:        ":8080",
		FPS:               60,
		LogLevel:          "info",
		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,
		ShutdownTimeout:   5 * time.Second,
		PreviewWindow:     false,
	}
}

// parseFlags populates Config from command-line flags, then applies any
// CS_-prefixed environment variable overrides on top, so a container
// deployment can configure the daemon without touching its invocation.
func parseFlags(args []string) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("constellation-studio", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP control-plane bind address")
	fs.Float64Var(&cfg.FPS, "fps", cfg.FPS, "target scheduler tick rate")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.IntVar(&cfg.RateLimitRequests, "rate-limit-requests", cfg.RateLimitRequests, "mutating requests allowed per rate-limit-window, per client IP (0 disables)")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-limit-window", cfg.RateLimitWindow, "rate limit sliding window")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for in-flight requests and frame drain on shutdown")
	fs.BoolVar(&cfg.PreviewWindow, "preview", cfg.PreviewWindow, "open an on-screen window mirroring Preview node output")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("CS_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("CS_FPS"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FPS = f
		}
	}
	if v, ok := os.LookupEnv("CS_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("CS_RATE_LIMIT_REQUESTS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitRequests = n
		}
	}
	if v, ok := os.LookupEnv("CS_RATE_LIMIT_WINDOW"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimitWindow = d
		}
	}
	if v, ok := os.LookupEnv("CS_SHUTDOWN_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v, ok := os.LookupEnv("CS_PREVIEW"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PreviewWindow = b
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var w = os.Stderr
	if isTerminal(w) {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	log.Logger = logger

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("constellation studio exited with error")
		os.Exit(1)
	}
}

// run wires the engine and its HTTP/WS control-plane binding together and
// blocks until a shutdown signal arrives or the server fails, returning a
// non-nil error only for a fatal startup/runtime condition (hardware not
// supported, listener bind failure).
func run(cfg Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var previewSink nodes.RenderSink
	if cfg.PreviewWindow {
		p := platform.NewEbitenPreview("Constellation Studio Preview")
		if err := p.Start(); err != nil {
			logger.Warn().Err(err).Msg("preview window unavailable, continuing headless")
		} else {
			previewSink = p
		}
	}

	e := engine.New(engine.Config{
		FPS:         cfg.FPS,
		Logger:      logger,
		SessionID:   "constellation-studio",
		PreviewSink: previewSink,
	})

	adv := e.Hardware()
	logger.Info().
		Str("gpu_backend", adv.GPUBackend).
		Bool("vulkan_available", adv.VulkanAvailable).
		Msg("hardware advisory probe complete")

	server := webapi.NewServer(e, webapi.Config{
		Logger:            logger,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})
	e.SetEventSink(server.EventSink())

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("webapi control plane listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("webapi server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown signal received, stopping engine")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if e.Status().Running {
		if err := e.Stop(); err != nil {
			logger.Warn().Err(err).Msg("engine stop returned an error")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webapi server shutdown: %w", err)
	}
	return nil
}
