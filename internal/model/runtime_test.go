package model_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"

	"github.com/fireblade2534/kokoro-serve/internal/model"
)

const testDefaultVoice = "af_bella"

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "model-test.log")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	t.Cleanup(func() { log.Close() })

	return log
}

// newModelDir lays out a minimal valid model directory with the given
// voicepacks.
func newModelDir(t *testing.T, voices ...string) string {
	t.Helper()

	dir := t.TempDir()

	writeErr := os.WriteFile(filepath.Join(dir, "kokoro-v0_19.pth"), []byte("weights"), 0o600)
	if writeErr != nil {
		t.Fatalf("Failed to write weights: %v", writeErr)
	}

	voicesDir := filepath.Join(dir, "voices")

	mkdirErr := os.MkdirAll(voicesDir, 0o750)
	if mkdirErr != nil {
		t.Fatalf("Failed to create voices dir: %v", mkdirErr)
	}

	for _, voice := range voices {
		voiceErr := os.WriteFile(filepath.Join(voicesDir, voice+".pt"), []byte(voice), 0o600)
		if voiceErr != nil {
			t.Fatalf("Failed to write voicepack: %v", voiceErr)
		}
	}

	return dir
}

func TestNew_MissingModelDir(t *testing.T) {
	t.Parallel()

	_, err := model.New(
		filepath.Join(t.TempDir(), "nope"),
		"voices",
		testDefaultVoice,
		0,
		newTestLogger(t),
	)
	if !errors.Is(err, model.ErrModelDirMissing) {
		t.Errorf("Expected ErrModelDirMissing, got %v", err)
	}
}

func TestNew_MissingWeights(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if !errors.Is(err, model.ErrWeightsMissing) {
		t.Errorf("Expected ErrWeightsMissing, got %v", err)
	}
}

func TestNew_MissingVoicesDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeErr := os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("weights"), 0o600)
	if writeErr != nil {
		t.Fatalf("Failed to write weights: %v", writeErr)
	}

	_, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if !errors.Is(err, model.ErrVoicesDirMissing) {
		t.Errorf("Expected ErrVoicesDirMissing, got %v", err)
	}
}

func TestNew_EmptyVoicesDir(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t)

	_, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if !errors.Is(err, model.ErrNoVoices) {
		t.Errorf("Expected ErrNoVoices, got %v", err)
	}
}

func TestRuntime_ListAndHas(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t, "bm_lewis", "af_bella", "af_sky")

	runtime, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	voices := runtime.List()
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voices, got %v", voices)
	}

	// List is sorted.
	if voices[0] != "af_bella" || voices[1] != "af_sky" || voices[2] != "bm_lewis" {
		t.Errorf("Expected sorted voices, got %v", voices)
	}

	if !runtime.Has("af_sky") {
		t.Error("Expected Has to find af_sky")
	}

	if runtime.Has("missing") {
		t.Error("Expected Has to reject unknown voice")
	}
}

func TestRuntime_DefaultFallsBackToFirstVoice(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t, "bm_lewis", "af_sky")

	runtime, err := model.New(dir, "voices", "af_bella", 0, newTestLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if runtime.Default() != "af_sky" {
		t.Errorf("Expected fallback to first voice, got %q", runtime.Default())
	}
}

func TestRuntime_VoicepackPath(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t, testDefaultVoice)

	runtime, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path, pathErr := runtime.VoicepackPath(testDefaultVoice)
	if pathErr != nil {
		t.Fatalf("VoicepackPath failed: %v", pathErr)
	}

	expected := filepath.Join(dir, "voices", testDefaultVoice+".pt")
	if path != expected {
		t.Errorf("Expected %q, got %q", expected, path)
	}

	_, emptyErr := runtime.VoicepackPath("")
	if !errors.Is(emptyErr, model.ErrVoiceEmpty) {
		t.Errorf("Expected ErrVoiceEmpty, got %v", emptyErr)
	}

	_, unknownErr := runtime.VoicepackPath("missing")
	if !errors.Is(unknownErr, model.ErrUnknownVoice) {
		t.Errorf("Expected ErrUnknownVoice, got %v", unknownErr)
	}
}

func TestRuntime_VoicepackServesFromCache(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t, testDefaultVoice)

	runtime, err := model.New(dir, "voices", testDefaultVoice, 2, newTestLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first, firstErr := runtime.Voicepack(testDefaultVoice)
	if firstErr != nil {
		t.Fatalf("Voicepack failed: %v", firstErr)
	}

	if string(first) != testDefaultVoice {
		t.Fatalf("Unexpected voicepack content: %q", first)
	}

	// Remove the backing file; a cached voice must still resolve.
	removeErr := os.Remove(filepath.Join(dir, "voices", testDefaultVoice+".pt"))
	if removeErr != nil {
		t.Fatalf("Failed to remove voicepack: %v", removeErr)
	}

	second, secondErr := runtime.Voicepack(testDefaultVoice)
	if secondErr != nil {
		t.Fatalf("Expected cached voicepack, got %v", secondErr)
	}

	if string(second) != testDefaultVoice {
		t.Errorf("Unexpected cached content: %q", second)
	}
}

func TestRuntime_RefreshPicksUpNewVoices(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t, testDefaultVoice)

	runtime, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	writeErr := os.WriteFile(filepath.Join(dir, "voices", "am_adam.pt"), []byte("new"), 0o600)
	if writeErr != nil {
		t.Fatalf("Failed to write voicepack: %v", writeErr)
	}

	if runtime.Has("am_adam") {
		t.Fatal("Expected new voice to be invisible before Refresh")
	}

	refreshErr := runtime.Refresh()
	if refreshErr != nil {
		t.Fatalf("Refresh failed: %v", refreshErr)
	}

	if !runtime.Has("am_adam") {
		t.Error("Expected new voice after Refresh")
	}
}

func TestRuntime_WeightsPath(t *testing.T) {
	t.Parallel()

	dir := newModelDir(t, testDefaultVoice)

	runtime, err := model.New(dir, "voices", testDefaultVoice, 0, newTestLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if runtime.WeightsPath() != filepath.Join(dir, "kokoro-v0_19.pth") {
		t.Errorf("Unexpected weights path: %q", runtime.WeightsPath())
	}
}
