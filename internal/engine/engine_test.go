package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/logger"

	"github.com/fireblade2534/kokoro-serve/internal/core"
	"github.com/fireblade2534/kokoro-serve/internal/engine"
	"github.com/fireblade2534/kokoro-serve/internal/model"
)

const testVoice = "af_bella"

// fakeBackendScript parses --output from its arguments and writes a fixed
// payload there, standing in for the inference binary.
const fakeBackendScript = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then
    out="$2"
  fi
  shift
done
printf 'FAKE-WAV-PAYLOAD' > "$out"
`

// voicepackEchoScript copies the voicepack it was handed into the output
// file, so tests can see exactly which bytes reached the backend.
const voicepackEchoScript = `#!/bin/sh
vp=""
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--voicepack" ]; then
    vp="$2"
  fi
  if [ "$1" = "--output" ]; then
    out="$2"
  fi
  shift
done
cat "$vp" > "$out"
`

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "engine-test.log")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	t.Cleanup(func() { log.Close() })

	return log
}

func newTestRuntime(t *testing.T) *model.Runtime {
	t.Helper()

	runtime, _ := newTestRuntimeDir(t)

	return runtime
}

func newTestRuntimeDir(t *testing.T) (*model.Runtime, string) {
	t.Helper()

	dir := t.TempDir()

	writeErr := os.WriteFile(filepath.Join(dir, "model.pth"), []byte("weights"), 0o600)
	if writeErr != nil {
		t.Fatalf("Failed to write weights: %v", writeErr)
	}

	voicesDir := filepath.Join(dir, "voices")

	mkdirErr := os.MkdirAll(voicesDir, 0o750)
	if mkdirErr != nil {
		t.Fatalf("Failed to create voices dir: %v", mkdirErr)
	}

	voiceErr := os.WriteFile(filepath.Join(voicesDir, testVoice+".pt"), []byte("pack"), 0o600)
	if voiceErr != nil {
		t.Fatalf("Failed to write voicepack: %v", voiceErr)
	}

	runtime, err := model.New(dir, "voices", testVoice, 0, newTestLogger(t))
	if err != nil {
		t.Fatalf("Failed to build runtime: %v", err)
	}

	return runtime, dir
}

func defaultOptions(binary string) engine.Options {
	return engine.Options{
		Binary:         binary,
		TimeoutSeconds: 30,
		MaxInputChars:  100,
		MinSpeed:       0.25,
		MaxSpeed:       4.0,
		DefaultSpeed:   1.0,
		Language:       "en-us",
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	process := engine.New(defaultOptions("true"), newTestRuntime(t), newTestLogger(t))

	_, err := process.Synthesize(context.Background(), "", core.SynthesisParams{})
	if !errors.Is(err, engine.ErrTextEmpty) {
		t.Errorf("Expected ErrTextEmpty, got %v", err)
	}
}

func TestSynthesize_TextTooLong(t *testing.T) {
	t.Parallel()

	process := engine.New(defaultOptions("true"), newTestRuntime(t), newTestLogger(t))

	_, err := process.Synthesize(
		context.Background(),
		strings.Repeat("a", 101),
		core.SynthesisParams{},
	)
	if !errors.Is(err, engine.ErrTextTooLong) {
		t.Errorf("Expected ErrTextTooLong, got %v", err)
	}
}

func TestSynthesize_SpeedOutOfRange(t *testing.T) {
	t.Parallel()

	process := engine.New(defaultOptions("true"), newTestRuntime(t), newTestLogger(t))

	_, err := process.Synthesize(
		context.Background(),
		"hello",
		core.SynthesisParams{Speed: 10.0},
	)
	if !errors.Is(err, engine.ErrSpeedRange) {
		t.Errorf("Expected ErrSpeedRange, got %v", err)
	}
}

func TestSynthesize_UnknownVoice(t *testing.T) {
	t.Parallel()

	process := engine.New(defaultOptions("true"), newTestRuntime(t), newTestLogger(t))

	_, err := process.Synthesize(
		context.Background(),
		"hello",
		core.SynthesisParams{Voice: "missing"},
	)
	if !errors.Is(err, model.ErrUnknownVoice) {
		t.Errorf("Expected ErrUnknownVoice, got %v", err)
	}
}

func TestSynthesize_RunsBackendBinary(t *testing.T) {
	t.Parallel()

	binary := filepath.Join(t.TempDir(), "fake-backend")

	writeErr := os.WriteFile(binary, []byte(fakeBackendScript), 0o700)
	if writeErr != nil {
		t.Fatalf("Failed to write fake backend: %v", writeErr)
	}

	process := engine.New(defaultOptions(binary), newTestRuntime(t), newTestLogger(t))

	audioData, err := process.Synthesize(context.Background(), "hello world", core.SynthesisParams{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if string(audioData) != "FAKE-WAV-PAYLOAD" {
		t.Errorf("Unexpected backend output: %q", audioData)
	}
}

func TestSynthesize_PassesVoicepackBytesToBackend(t *testing.T) {
	t.Parallel()

	binary := filepath.Join(t.TempDir(), "echo-backend")

	writeErr := os.WriteFile(binary, []byte(voicepackEchoScript), 0o700)
	if writeErr != nil {
		t.Fatalf("Failed to write fake backend: %v", writeErr)
	}

	process := engine.New(defaultOptions(binary), newTestRuntime(t), newTestLogger(t))

	audioData, err := process.Synthesize(context.Background(), "hello", core.SynthesisParams{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if string(audioData) != "pack" {
		t.Errorf("Expected voicepack bytes to reach the backend, got %q", audioData)
	}
}

func TestSynthesize_ServesHotVoicepackFromCache(t *testing.T) {
	t.Parallel()

	binary := filepath.Join(t.TempDir(), "echo-backend")

	writeErr := os.WriteFile(binary, []byte(voicepackEchoScript), 0o700)
	if writeErr != nil {
		t.Fatalf("Failed to write fake backend: %v", writeErr)
	}

	runtime, modelDir := newTestRuntimeDir(t)
	process := engine.New(defaultOptions(binary), runtime, newTestLogger(t))

	first, firstErr := process.Synthesize(context.Background(), "hello", core.SynthesisParams{})
	if firstErr != nil {
		t.Fatalf("Synthesize failed: %v", firstErr)
	}

	if string(first) != "pack" {
		t.Fatalf("Unexpected first payload: %q", first)
	}

	// Remove the on-disk voicepack; a hot voice must keep synthesizing
	// from the cache.
	removeErr := os.Remove(filepath.Join(modelDir, "voices", testVoice+".pt"))
	if removeErr != nil {
		t.Fatalf("Failed to remove voicepack: %v", removeErr)
	}

	second, secondErr := process.Synthesize(context.Background(), "hello again", core.SynthesisParams{})
	if secondErr != nil {
		t.Fatalf("Expected cached voicepack to serve the call, got %v", secondErr)
	}

	if string(second) != "pack" {
		t.Errorf("Unexpected second payload: %q", second)
	}
}

func TestSynthesize_BackendFailureIsWrapped(t *testing.T) {
	t.Parallel()

	process := engine.New(defaultOptions("false"), newTestRuntime(t), newTestLogger(t))

	_, err := process.Synthesize(context.Background(), "hello", core.SynthesisParams{})
	if err == nil {
		t.Fatal("Expected backend failure")
	}

	if !strings.Contains(err.Error(), "inference backend execution failed") {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
}

func TestParams_ReturnsDefaults(t *testing.T) {
	t.Parallel()

	process := engine.New(defaultOptions("true"), newTestRuntime(t), newTestLogger(t))

	params := process.Params()

	if params.Voice != testVoice {
		t.Errorf("Expected default voice %q, got %q", testVoice, params.Voice)
	}

	if params.Language != "en-us" {
		t.Errorf("Expected language en-us, got %q", params.Language)
	}

	if params.Speed != 1.0 {
		t.Errorf("Expected speed 1.0, got %v", params.Speed)
	}
}
