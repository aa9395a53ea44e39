package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fireblade2534/kokoro-serve/internal/config"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, _, err := config.Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, config.DefaultHost, cfg.Server.Host)
	require.Equal(t, config.DefaultPort, cfg.Server.Port)
	require.Equal(t, config.DefaultModelDir, cfg.Model.Dir)
	require.Equal(t, config.DefaultSampleRate, cfg.Model.SampleRate)
	require.Equal(t, "0.0.0.0:8880", cfg.Server.Addr())
}

func TestLoad_ReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()

	content := `
[server]
host = "127.0.0.1"
port = 9000

[model]
dir = "/srv/model"

[synthesis]
workers = 2
`

	writeErr := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(content), 0o600)
	require.NoError(t, writeErr)

	cfg, foundDir, err := config.Load(dir)
	require.NoError(t, err)

	require.Equal(t, dir, foundDir)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "/srv/model", cfg.Model.Dir)
	require.Equal(t, 2, cfg.Synthesis.Workers)

	// Unspecified sections keep their defaults.
	require.Equal(t, config.DefaultSampleRate, cfg.Model.SampleRate)
}

func TestLoad_FindsFileInParentDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	content := "[server]\nport = 9100\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(content), 0o600))

	cfg, foundDir, err := config.Load(nested)
	require.NoError(t, err)
	require.Equal(t, dir, foundDir)
	require.Equal(t, 9100, cfg.Server.Port)
}

func TestLoad_RejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()

	writeErr := os.WriteFile(
		filepath.Join(dir, config.ConfigFileName),
		[]byte("this is not toml = = ="),
		0o600,
	)
	require.NoError(t, writeErr)

	_, _, err := config.Load(dir)
	require.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("KOKORO_HOST", "10.0.0.5")
	t.Setenv("KOKORO_PORT", "9999")
	t.Setenv("KOKORO_MODEL_DIR", "/opt/kokoro")
	t.Setenv("NATS_URL", "nats://queue:4222")

	cfg, _, err := config.Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "10.0.0.5", cfg.Server.Host)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "/opt/kokoro", cfg.Model.Dir)
	require.Equal(t, "nats://queue:4222", cfg.NATS.URL)
}

func TestLoad_IgnoresInvalidPortOverride(t *testing.T) {
	t.Setenv("KOKORO_PORT", "not-a-port")

	cfg, _, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, config.DefaultPort, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		mutate   func(cfg *config.Config)
		expected error
	}{
		{
			name:     "port too low",
			mutate:   func(cfg *config.Config) { cfg.Server.Port = 0 },
			expected: config.ErrPortRange,
		},
		{
			name:     "port too high",
			mutate:   func(cfg *config.Config) { cfg.Server.Port = 70000 },
			expected: config.ErrPortRange,
		},
		{
			name:     "empty model dir",
			mutate:   func(cfg *config.Config) { cfg.Model.Dir = "" },
			expected: config.ErrModelDirEmpty,
		},
		{
			name:     "zero sample rate",
			mutate:   func(cfg *config.Config) { cfg.Model.SampleRate = 0 },
			expected: config.ErrSampleRate,
		},
		{
			name:     "zero workers",
			mutate:   func(cfg *config.Config) { cfg.Synthesis.Workers = 0 },
			expected: config.ErrWorkersPositive,
		},
		{
			name:     "zero max input",
			mutate:   func(cfg *config.Config) { cfg.Synthesis.MaxInputChars = 0 },
			expected: config.ErrMaxInputPositive,
		},
		{
			name:     "inverted speed bounds",
			mutate:   func(cfg *config.Config) { cfg.Synthesis.MinSpeed = 5.0 },
			expected: config.ErrSpeedBounds,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, testCase.expected) {
				t.Errorf("Expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Paths.OutputDir = filepath.Join(dir, "out")

	require.NoError(t, cfg.EnsureDirectories())
	require.DirExists(t, cfg.Paths.LogsDir)
	require.DirExists(t, cfg.Paths.OutputDir)
}
