// Package config provides the configuration structure for kokoro-serve.
//
// Configuration is read from a kokoro-serve.toml file discovered by walking
// up the directory tree from the working directory. A small set of
// environment variables override the file so the container contract
// (fixed port, fixed model directory) stays adjustable at deploy time.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the file searched for when no explicit path is given.
const ConfigFileName = "kokoro-serve.toml"

// Environment variable overrides.
const (
	envHost     = "KOKORO_HOST"
	envPort     = "KOKORO_PORT"
	envModelDir = "KOKORO_MODEL_DIR"
	envLogDir   = "KOKORO_LOG_DIR"
	envNatsURL  = "NATS_URL"
)

// Defaults matching the deployment contract.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8880
	DefaultModelDir       = "/app/Kokoro-82M"
	DefaultSampleRate     = 24000
	defaultVoicesDir      = "voices"
	defaultVoice          = "af_bella"
	defaultEngineBinary   = "kokoro-infer"
	defaultEngineTimeout  = 120
	defaultWorkers        = 4
	defaultMaxInputChars  = 16384
	defaultSpeed          = 1.0
	defaultMinSpeed       = 0.25
	defaultMaxSpeed       = 4.0
	defaultGapTrimMs      = 250
	defaultGapPaddingMs   = 410
	defaultSilenceDB      = -45
	defaultFormat         = "wav"
	defaultReadTimeoutSec = 30
	defaultWriteTimeout   = 300
	defaultShutdownGrace  = 15
)

// Static errors.
var (
	ErrConfigNotFound   = errors.New("configuration file not found")
	ErrPortRange        = errors.New("server port must be between 1 and 65535")
	ErrModelDirEmpty    = errors.New("model directory cannot be empty")
	ErrWorkersPositive  = errors.New("synthesis workers must be positive")
	ErrSpeedBounds      = errors.New("speed bounds must satisfy 0 < min <= max")
	ErrSampleRate       = errors.New("sample rate must be positive")
	ErrMaxInputPositive = errors.New("max input characters must be positive")
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                string `toml:"host"`
	Port                int    `toml:"port"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
	ShutdownGraceSecs   int    `toml:"shutdown_grace_seconds"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig holds the model directory layout and engine settings.
type ModelConfig struct {
	Dir                  string `toml:"dir"`
	VoicesDir            string `toml:"voices_dir"`
	DefaultVoice         string `toml:"default_voice"`
	SampleRate           int    `toml:"sample_rate"`
	EngineBinary         string `toml:"engine_binary"`
	EngineTimeoutSeconds int    `toml:"engine_timeout_seconds"`
	VoiceCacheSize       int    `toml:"voice_cache_size"`
}

// VoicesPath returns the absolute path of the voices directory.
func (m ModelConfig) VoicesPath() string {
	return filepath.Join(m.Dir, m.VoicesDir)
}

// AudioConfig holds the chunk-boundary trimming and output format settings.
type AudioConfig struct {
	GapTrimMs            int    `toml:"gap_trim_ms"`
	GapPaddingMs         int    `toml:"gap_padding_ms"`
	SilenceThresholdDB   int    `toml:"silence_threshold_db"`
	DefaultFormat        string `toml:"default_format"`
	FFmpegBinary         string `toml:"ffmpeg_binary"`
	EncodeTimeoutSeconds int    `toml:"encode_timeout_seconds"`
}

// SynthesisConfig holds request-level synthesis limits and defaults.
type SynthesisConfig struct {
	Workers       int     `toml:"workers"`
	MaxInputChars int     `toml:"max_input_chars"`
	DefaultSpeed  float64 `toml:"default_speed"`
	MinSpeed      float64 `toml:"min_speed"`
	MaxSpeed      float64 `toml:"max_speed"`
	MaxChunkChars int     `toml:"max_chunk_chars"`
}

// NATSConfig holds the optional async job path settings.
type NATSConfig struct {
	Enabled     bool   `toml:"enabled"`
	URL         string `toml:"url"`
	JobsSubject string `toml:"jobs_subject"`
	TextBucket  string `toml:"text_bucket"`
	AudioBucket string `toml:"audio_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	LogsDir   string `toml:"logs_dir"`
	OutputDir string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Model     ModelConfig     `toml:"model"`
	Audio     AudioConfig     `toml:"audio"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	NATS      NATSConfig      `toml:"nats"`
	Paths     PathsConfig     `toml:"paths"`
}

// Default returns a configuration populated with the deployment defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                DefaultHost,
			Port:                DefaultPort,
			ReadTimeoutSeconds:  defaultReadTimeoutSec,
			WriteTimeoutSeconds: defaultWriteTimeout,
			ShutdownGraceSecs:   defaultShutdownGrace,
		},
		Model: ModelConfig{
			Dir:                  DefaultModelDir,
			VoicesDir:            defaultVoicesDir,
			DefaultVoice:         defaultVoice,
			SampleRate:           DefaultSampleRate,
			EngineBinary:         defaultEngineBinary,
			EngineTimeoutSeconds: defaultEngineTimeout,
			VoiceCacheSize:       8,
		},
		Audio: AudioConfig{
			GapTrimMs:            defaultGapTrimMs,
			GapPaddingMs:         defaultGapPaddingMs,
			SilenceThresholdDB:   defaultSilenceDB,
			DefaultFormat:        defaultFormat,
			FFmpegBinary:         "ffmpeg",
			EncodeTimeoutSeconds: 60,
		},
		Synthesis: SynthesisConfig{
			Workers:       defaultWorkers,
			MaxInputChars: defaultMaxInputChars,
			DefaultSpeed:  defaultSpeed,
			MinSpeed:      defaultMinSpeed,
			MaxSpeed:      defaultMaxSpeed,
			MaxChunkChars: 400,
		},
		NATS: NATSConfig{
			Enabled:     false,
			URL:         "nats://127.0.0.1:4222",
			JobsSubject: "kokoro.jobs.synthesize",
			TextBucket:  "kokoro-text",
			AudioBucket: "kokoro-audio",
		},
		Paths: PathsConfig{
			LogsDir:   os.TempDir(),
			OutputDir: ".",
		},
	}
}

// Load reads the configuration starting from startDir, walking up the
// directory tree until a kokoro-serve.toml is found. When no file exists the
// defaults are returned, so the service still honors the bare container
// contract. Environment overrides are applied last.
func Load(startDir string) (*Config, string, error) {
	cfg := Default()

	path, findErr := findConfigFile(startDir)
	if findErr != nil {
		if !errors.Is(findErr, ErrConfigNotFound) {
			return nil, "", findErr
		}

		applyEnvOverrides(cfg)

		validateErr := cfg.Validate()
		if validateErr != nil {
			return nil, "", validateErr
		}

		return cfg, startDir, nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, "", fmt.Errorf("failed to read config file %s: %w", path, readErr)
	}

	unmarshalErr := toml.Unmarshal(data, cfg)
	if unmarshalErr != nil {
		return nil, "", fmt.Errorf("failed to parse config file %s: %w", path, unmarshalErr)
	}

	applyEnvOverrides(cfg)

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, "", validateErr
	}

	return cfg, filepath.Dir(path), nil
}

// Validate checks the loaded configuration for values the service cannot
// start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrPortRange, c.Server.Port)
	}

	if c.Model.Dir == "" {
		return ErrModelDirEmpty
	}

	if c.Model.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrSampleRate, c.Model.SampleRate)
	}

	if c.Synthesis.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrWorkersPositive, c.Synthesis.Workers)
	}

	if c.Synthesis.MaxInputChars <= 0 {
		return fmt.Errorf("%w: got %d", ErrMaxInputPositive, c.Synthesis.MaxInputChars)
	}

	if c.Synthesis.MinSpeed <= 0 || c.Synthesis.MinSpeed > c.Synthesis.MaxSpeed {
		return fmt.Errorf(
			"%w: got min %.2f max %.2f",
			ErrSpeedBounds,
			c.Synthesis.MinSpeed,
			c.Synthesis.MaxSpeed,
		)
	}

	return nil
}

// EnsureDirectories creates the directories the service writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogsDir, c.Paths.OutputDir} {
		if dir == "" {
			continue
		}

		mkdirErr := os.MkdirAll(dir, 0o750)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, mkdirErr)
		}
	}

	return nil
}

// findConfigFile walks up from startDir looking for the config file.
func findConfigFile(startDir string) (string, error) {
	dir, absErr := filepath.Abs(startDir)
	if absErr != nil {
		return "", fmt.Errorf("could not resolve absolute path for %q: %w", startDir, absErr)
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)

		_, statErr := os.Stat(candidate)
		if statErr == nil {
			return candidate, nil
		}

		if !os.IsNotExist(statErr) {
			return "", fmt.Errorf("error checking config path %q: %w", candidate, statErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: searched up from %s", ErrConfigNotFound, startDir)
		}

		dir = parent
	}
}

func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv(envHost); host != "" {
		cfg.Server.Host = host
	}

	if portStr := os.Getenv(envPort); portStr != "" {
		port, convErr := strconv.Atoi(portStr)
		if convErr == nil {
			cfg.Server.Port = port
		}
	}

	if modelDir := os.Getenv(envModelDir); modelDir != "" {
		cfg.Model.Dir = modelDir
	}

	if logDir := os.Getenv(envLogDir); logDir != "" {
		cfg.Paths.LogsDir = logDir
	}

	if natsURL := os.Getenv(envNatsURL); natsURL != "" {
		cfg.NATS.URL = natsURL
	}
}
