// main package for the kokoro-serve inference API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fireblade2534/kokoro-serve/internal/audio"
	"github.com/fireblade2534/kokoro-serve/internal/config"
	"github.com/fireblade2534/kokoro-serve/internal/engine"
	"github.com/fireblade2534/kokoro-serve/internal/model"
	"github.com/fireblade2534/kokoro-serve/internal/objectstore"
	"github.com/fireblade2534/kokoro-serve/internal/server"
	"github.com/fireblade2534/kokoro-serve/internal/synth"
	"github.com/fireblade2534/kokoro-serve/internal/worker"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Bootstrap logger so config failures land somewhere visible.
	bootstrapLog, bootstrapErr := setupLogger(os.TempDir(), "kokoro-serve-bootstrap.log")
	if bootstrapErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", bootstrapErr)

		return bootstrapErr
	}

	// 2. Optional .env file, then TOML configuration with env overrides.
	dotenvErr := godotenv.Load()
	if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
		bootstrapLog.Warn("Could not load .env file: %v", dotenvErr)
	}

	cfg, projectRoot, cfgErr := config.Load(".")
	if cfgErr != nil {
		bootstrapLog.Error("Failed to load configuration: %v", cfgErr)

		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}

	bootstrapLog.Info("Configuration loaded (project root: %s)", projectRoot)

	dirErr := cfg.EnsureDirectories()
	if dirErr != nil {
		bootstrapLog.Error("Failed to create directories: %v", dirErr)

		return dirErr
	}

	// 3. Final logger in the configured location.
	finalLog, logErr := setupLogger(cfg.Paths.LogsDir, "kokoro-serve.log")
	if logErr != nil {
		bootstrapLog.Error("Failed to create final logger: %v", logErr)

		return logErr
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve wires the runtime, pipeline, HTTP server, and optional NATS worker,
// then blocks until a shutdown signal arrives.
func serve(cfg *config.Config, log *logger.Logger) error {
	// Startup must fail when the model directory is unusable.
	runtime, runtimeErr := model.New(
		cfg.Model.Dir,
		cfg.Model.VoicesDir,
		cfg.Model.DefaultVoice,
		cfg.Model.VoiceCacheSize,
		log,
	)
	if runtimeErr != nil {
		log.Error("Model runtime validation failed: %v", runtimeErr)

		return fmt.Errorf("model runtime validation failed: %w", runtimeErr)
	}

	pipeline := buildPipeline(cfg, runtime, log)

	zlog := zerolog.New(os.Stdout).With().Timestamp().Str("service", "kokoro-serve").Logger()

	httpServer := server.New(
		server.Options{
			Addr:                cfg.Server.Addr(),
			ReadTimeoutSeconds:  cfg.Server.ReadTimeoutSeconds,
			WriteTimeoutSeconds: cfg.Server.WriteTimeoutSeconds,
			DefaultFormat:       cfg.Audio.DefaultFormat,
			Version:             version,
		},
		pipeline,
		runtime,
		log,
		zlog,
	)
	httpServer.MarkReady()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		errChan <- httpServer.Run(ctx, time.Duration(cfg.Server.ShutdownGraceSecs)*time.Second)
	}()

	natsCleanup, natsErr := startWorker(ctx, cfg, pipeline, log, errChan)
	if natsErr != nil {
		stop()

		return natsErr
	}

	defer natsCleanup()

	log.System("kokoro-serve %s initialized, listening on %s", version, cfg.Server.Addr())

	runErr := <-errChan
	stop()

	if runErr != nil {
		return runErr
	}

	return nil
}

func buildPipeline(cfg *config.Config, runtime *model.Runtime, log *logger.Logger) *synth.Pipeline {
	kokoroEngine := engine.New(
		engine.Options{
			Binary:         cfg.Model.EngineBinary,
			TimeoutSeconds: cfg.Model.EngineTimeoutSeconds,
			MaxInputChars:  cfg.Synthesis.MaxInputChars,
			MinSpeed:       cfg.Synthesis.MinSpeed,
			MaxSpeed:       cfg.Synthesis.MaxSpeed,
			DefaultSpeed:   cfg.Synthesis.DefaultSpeed,
			Language:       "en",
		},
		runtime,
		log,
	)

	pool := engine.NewPool(kokoroEngine, cfg.Synthesis.Workers, log)
	converter := audio.NewConverter(cfg.Audio.FFmpegBinary, cfg.Model.SampleRate, cfg.Audio.EncodeTimeoutSeconds)

	return synth.New(
		pool,
		converter,
		synth.Settings{
			SampleRate:         cfg.Model.SampleRate,
			GapTrimMs:          cfg.Audio.GapTrimMs,
			GapPaddingMs:       cfg.Audio.GapPaddingMs,
			SilenceThresholdDB: cfg.Audio.SilenceThresholdDB,
			MaxChunkChars:      cfg.Synthesis.MaxChunkChars,
		},
		log,
	)
}

// startWorker connects the async job path when NATS is enabled. The
// returned cleanup closes the connection.
func startWorker(
	ctx context.Context,
	cfg *config.Config,
	pipeline *synth.Pipeline,
	log *logger.Logger,
	errChan chan<- error,
) (func(), error) {
	if !cfg.NATS.Enabled {
		return func() {}, nil
	}

	natsConnection, connectErr := nats.Connect(cfg.NATS.URL)
	if connectErr != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, connectErr)

		return nil, fmt.Errorf("failed to connect to NATS: %w", connectErr)
	}

	jetstreamContext, jsErr := natsConnection.JetStream()
	if jsErr != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	textStore, textErr := objectstore.New(jetstreamContext, cfg.NATS.TextBucket)
	if textErr != nil {
		natsConnection.Close()

		return nil, textErr
	}

	audioStore, audioErr := objectstore.New(jetstreamContext, cfg.NATS.AudioBucket)
	if audioErr != nil {
		natsConnection.Close()

		return nil, audioErr
	}

	jobWorker := worker.New(
		natsConnection,
		cfg.NATS.JobsSubject,
		textStore,
		audioStore,
		pipeline,
		cfg.Audio.DefaultFormat,
		log,
	)

	go func() {
		errChan <- jobWorker.Run(ctx)
	}()

	return natsConnection.Close, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
