package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/app"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/config"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/delivery"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/hotkey"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/metrics"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/notify"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/server"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvPath    = ".env"
	serviceName       = "lemonfox-transcriber"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", defaultEnvPath, "Path to .env file with LEMONFOX_* variables")
	mode := flag.String("mode", "", "Mode to run: url, file, continuous, record, listen (empty shows the menu)")
	audioURL := flag.String("url", "", "Audio URL for -mode url")
	audioFile := flag.String("file", "", "Audio file for -mode file")
	language := flag.String("language", "", "Transcription language, overrides the configuration")
	output := flag.String("output", "", "Output directory, overrides the configuration")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment file: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *language != "" {
		cfg.Transcription.Language = *language
	}
	if *output != "" {
		cfg.Output.Directory = *output
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("mode", *mode),
	)

	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frame_duration_ms", cfg.Audio.FrameDurationMs),
		slog.Int("vad_aggressiveness", cfg.VAD.Aggressiveness),
		slog.Float64("silence_threshold", cfg.VAD.SilenceThreshold),
		slog.Float64("max_segment_duration", cfg.VAD.MaxSegmentDuration),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("language", cfg.Transcription.Language),
		slog.String("delivery_mode", cfg.Delivery.Mode),
		slog.String("output_directory", cfg.Output.Directory),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()

	client, err := transcription.NewClient(transcription.Config{
		Endpoint:           cfg.Transcription.Endpoint,
		APIKey:             cfg.Transcription.APIKey,
		Language:           cfg.Transcription.Language,
		ResponseFormat:     cfg.Transcription.ResponseFormat,
		TextPath:           cfg.Transcription.TextPath,
		Timeout:            cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:         cfg.Transcription.MaxRetries,
		MaxConcurrent:      cfg.Transcription.MaxConcurrent,
		EnableHTTP2:        cfg.Transcription.EnableHTTP2,
		InsecureSkipVerify: !cfg.Transcription.VerifySSL,
	}, logger, transcription.WithRecorder(appMetrics))
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	format := audio.Format{
		SampleRate:    cfg.Audio.SampleRate,
		FrameDuration: cfg.Audio.GetFrameDuration(),
	}
	device, err := audio.NewDevice(format, logger)
	if err != nil {
		logger.Error("Failed to create audio device", slog.String("error", err.Error()))
		os.Exit(1)
	}

	classifier, err := vad.NewEnergyClassifier(vad.Config{
		SampleRate:     cfg.Audio.SampleRate,
		FrameDuration:  cfg.Audio.GetFrameDuration(),
		Aggressiveness: cfg.VAD.Aggressiveness,
		Threshold:      cfg.VAD.Threshold,
	})
	if err != nil {
		logger.Error("Failed to create voice activity detector", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tempStore, err := audio.NewTempStore(cfg.Output.TempDirectory, cfg.Output.GetTempMaxAge(), logger)
	if err != nil {
		logger.Error("Failed to prepare temp directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sink, err := delivery.New(delivery.Options{
		Mode:             cfg.Delivery.Mode,
		Directory:        cfg.Output.Directory,
		AllowOverwrite:   cfg.Output.AllowOverwrite,
		RestoreClipboard: cfg.Delivery.RestoreClipboard,
		PasteDelay:       cfg.Delivery.GetPasteDelay(),
		FallbackToFile:   cfg.Delivery.FallbackToFile,
	}, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create text delivery", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bindings, err := hotkey.ParseBindings(map[hotkey.Action]string{
		hotkey.ActionToggleRecording: cfg.Hotkeys.ToggleRecording,
		hotkey.ActionToggleListening: cfg.Hotkeys.ToggleListening,
		hotkey.ActionCancel:          cfg.Hotkeys.Cancel,
	})
	if err != nil {
		logger.Error("Invalid hotkey configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var hotkeys hotkey.Listener
	if len(bindings) > 0 {
		listener, err := hotkey.NewGlobalListener(bindings, logger)
		switch {
		case err == nil:
			hotkeys = listener
		case errors.Is(err, hotkey.ErrUnsupported):
			logger.Info("Global hotkeys are not supported here, terminal commands only")
		default:
			logger.Warn("Global hotkeys disabled", slog.String("error", err.Error()))
		}
	}

	shell, err := app.New(cfg, app.Deps{
		Transcriber:      client,
		Source:           device,
		Classifier:       classifier,
		Sink:             sink,
		TempStore:        tempStore,
		Notifier:         notify.New(cfg.Notifications.Enabled, logger),
		Hotkeys:          hotkeys,
		Recorder:         appMetrics,
		DeliveryRecorder: appMetrics,
	}, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("Failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Status server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, shell, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start status server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	arg := *audioURL
	if *mode == app.ModeFile {
		arg = *audioFile
	}
	runErr := shell.Run(ctx, *mode, arg)

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping status server", slog.String("error", err.Error()))
		}
	}

	if err := client.Close(shutdownCtx); err != nil {
		logger.Warn("Transcription requests still in flight at exit", slog.String("error", err.Error()))
	}

	stats := client.Stats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Service stopped with error", slog.String("error", runErr.Error()))
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// stdout carries the menu, so logs default to stderr
	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
