// main package for the kokoro-client command line tool.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"

	"github.com/fireblade2534/kokoro-serve/internal/client"
	"github.com/fireblade2534/kokoro-serve/internal/config"
	"github.com/fireblade2534/kokoro-serve/internal/fileutil"
)

// Flag descriptions.
const (
	flagTextDesc   = "Text to convert to speech"
	flagOutputDesc = "Output file path"
	flagChunksDesc = "JSON file containing an array of text chunks to process"
	flagVoiceDesc  = "Voice to synthesize with (empty uses the server default)"
	flagFormatDesc = "Response format (wav, mp3, opus, flac, pcm); " +
		"defaults to the output file extension, then wav"
	flagServerDesc = "Base URL of the kokoro-serve instance"
	flagHealthDesc = "Check service health and exit"
	flagVoicesDesc = "List available voices and exit"
)

const (
	requestTimeout    = 5 * time.Minute
	healthTimeout     = 10 * time.Second
	defaultFormat     = "wav"
	defaultOutputFile = "output.wav"
	chunkFileFormat   = "chunk_%04d.%s"
)

var errEitherTextOrChunks = errors.New("either --text or --chunks must be provided")

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text       string
	output     string
	chunks     string
	voice      string
	format     string
	serverURL  string
	health     bool
	listVoices bool
}

func main() {
	err := run()
	if err != nil {
		// The logger might not be initialized yet, so use the standard
		// log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flags := parseFlags()

	cfg, _, cfgErr := config.Load(".")
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}

	dirErr := cfg.EnsureDirectories()
	if dirErr != nil {
		return dirErr
	}

	appLog, logErr := logger.New(cfg.Paths.LogsDir, "kokoro-client.log")
	if logErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", logErr)
	}
	defer appLog.Close()

	serverURL := flags.serverURL
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}

	apiClient := client.New(serverURL, requestTimeout)

	switch {
	case flags.health:
		return handleHealthCheck(apiClient)
	case flags.listVoices:
		return handleListVoices(apiClient)
	default:
		return handleSynthesis(apiClient, cfg, appLog, flags)
	}
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, "text", "", flagTextDesc)
	flag.StringVar(&flags.output, "output", "", flagOutputDesc)
	flag.StringVar(&flags.chunks, "chunks", "", flagChunksDesc)
	flag.StringVar(&flags.voice, "voice", "", flagVoiceDesc)
	flag.StringVar(&flags.format, "format", "", flagFormatDesc)
	flag.StringVar(&flags.serverURL, "server", "", flagServerDesc)
	flag.BoolVar(&flags.health, "health", false, flagHealthDesc)
	flag.BoolVar(&flags.listVoices, "voices", false, flagVoicesDesc)
	flag.Parse()

	return flags
}

func handleHealthCheck(apiClient *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	healthErr := apiClient.HealthCheck(ctx)
	if healthErr != nil {
		fmt.Printf("Service is not healthy: %v\n", healthErr)

		return healthErr
	}

	fmt.Println("Service is healthy")

	return nil
}

func handleListVoices(apiClient *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	voices, defaultVoice, voicesErr := apiClient.Voices(ctx)
	if voicesErr != nil {
		return fmt.Errorf("failed to list voices: %w", voicesErr)
	}

	for _, voice := range voices {
		marker := ""
		if voice == defaultVoice {
			marker = " (default)"
		}

		fmt.Printf("%s%s\n", voice, marker)
	}

	return nil
}

func handleSynthesis(
	apiClient *client.Client,
	cfg *config.Config,
	appLog *logger.Logger,
	flags appFlags,
) error {
	if flags.text == "" && flags.chunks == "" {
		flag.Usage()

		return errEitherTextOrChunks
	}

	if flags.text != "" {
		return processSingleText(apiClient, cfg, appLog, flags)
	}

	return processChunks(apiClient, cfg, appLog, flags)
}

// resolveFormat picks the response format: the explicit flag wins, then
// the output file extension, then wav.
func resolveFormat(explicit, outputPath string) string {
	if explicit != "" {
		return explicit
	}

	ext := fileutil.GetFileExtension(outputPath)
	if ext != "" {
		return ext
	}

	return defaultFormat
}

func processSingleText(
	apiClient *client.Client,
	cfg *config.Config,
	appLog *logger.Logger,
	flags appFlags,
) error {
	outputPath := flags.output
	if outputPath == "" {
		outputPath = filepath.Join(cfg.Paths.OutputDir, defaultOutputFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	audioData, _, synthErr := apiClient.Synthesize(ctx, client.SpeechRequest{
		Input:          flags.text,
		Voice:          flags.voice,
		ResponseFormat: resolveFormat(flags.format, outputPath),
	})
	if synthErr != nil {
		appLog.Error("Failed to synthesize text: %v", synthErr)

		return fmt.Errorf("failed to synthesize text: %w", synthErr)
	}

	writeErr := os.WriteFile(outputPath, audioData, 0o600)
	if writeErr != nil {
		return fmt.Errorf("failed to write audio file: %w", writeErr)
	}

	appLog.Info("Generated audio: %s (%s)", outputPath, fileutil.FormatFileSize(int64(len(audioData))))
	fmt.Printf("Generated: %s\n", outputPath)

	return nil
}

// processChunks reads a JSON array of text chunks and synthesizes each one
// into a sequentially numbered file.
func processChunks(
	apiClient *client.Client,
	cfg *config.Config,
	appLog *logger.Logger,
	flags appFlags,
) error {
	data, readErr := os.ReadFile(flags.chunks)
	if readErr != nil {
		return fmt.Errorf("failed to read chunks file: %w", readErr)
	}

	var chunks []string

	unmarshalErr := json.Unmarshal(data, &chunks)
	if unmarshalErr != nil {
		return fmt.Errorf("failed to parse chunks JSON: %w", unmarshalErr)
	}

	if len(chunks) == 0 {
		return fmt.Errorf("no chunks found in %s", flags.chunks)
	}

	outputDir := flags.output
	if outputDir == "" {
		outputDir = cfg.Paths.OutputDir
	}

	ensureErr := fileutil.EnsureDir(outputDir)
	if ensureErr != nil {
		return ensureErr
	}

	// Chunk output paths are directories, so only the explicit flag can
	// name a format here.
	format := resolveFormat(flags.format, "")

	for chunkIndex, chunk := range chunks {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)

		audioData, _, synthErr := apiClient.Synthesize(ctx, client.SpeechRequest{
			Input:          chunk,
			Voice:          flags.voice,
			ResponseFormat: format,
		})

		cancel()

		if synthErr != nil {
			appLog.Error("Failed to process chunk %d: %v", chunkIndex+1, synthErr)

			return fmt.Errorf("chunk %d failed: %w", chunkIndex+1, synthErr)
		}

		outputPath := filepath.Join(
			outputDir,
			fmt.Sprintf(chunkFileFormat, chunkIndex+1, fileutil.SanitizeFilename(format)),
		)

		writeErr := os.WriteFile(outputPath, audioData, 0o600)
		if writeErr != nil {
			return fmt.Errorf("failed to write audio file: %w", writeErr)
		}

		appLog.Info("Processed chunk %d/%d", chunkIndex+1, len(chunks))
	}

	fmt.Printf("Generated audio files in: %s\n", outputDir)

	return nil
}
