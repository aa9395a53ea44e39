// Package model manages the on-disk model directory: weight artifact
// discovery, voicepack enumeration, and a cache of loaded voicepacks.
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/book-expert/logger"
)

// Voicepack and weight artifact extensions recognized in the model
// directory.
const (
	voicepackExt  = ".pt"
	weightsExtPTH = ".pth"
	weightsExtONX = ".onnx"
)

const defaultCacheSize = 8

// Static errors.
var (
	ErrModelDirMissing  = errors.New("model directory does not exist")
	ErrWeightsMissing   = errors.New("no model weights found in model directory")
	ErrVoicesDirMissing = errors.New("voices directory does not exist")
	ErrNoVoices         = errors.New("no voicepacks found in voices directory")
	ErrUnknownVoice     = errors.New("unknown voice")
	ErrVoiceEmpty       = errors.New("voice cannot be empty")
)

func newUnknownVoiceError(voice string) error {
	return fmt.Errorf("%w: '%s'", ErrUnknownVoice, voice)
}

// Runtime validates the model directory at startup and serves voicepack
// lookups for the lifetime of the process.
type Runtime struct {
	modelDir     string
	voicesDir    string
	defaultVoice string
	weightsPath  string
	log          *logger.Logger

	mu     sync.RWMutex
	voices map[string]string

	cache *lru.Cache[string, []byte]
}

// New validates the layout under modelDir and builds the runtime.
// Startup must fail when the directory does not hold a usable model, so
// every layout problem is returned as an error here.
func New(modelDir, voicesDir, defaultVoice string, cacheSize int, log *logger.Logger) (*Runtime, error) {
	info, statErr := os.Stat(modelDir)
	if statErr != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrModelDirMissing, modelDir)
	}

	weightsPath, weightsErr := findWeights(modelDir)
	if weightsErr != nil {
		return nil, weightsErr
	}

	voicesPath := filepath.Join(modelDir, voicesDir)

	cacheLen := cacheSize
	if cacheLen <= 0 {
		cacheLen = defaultCacheSize
	}

	cache, cacheErr := lru.New[string, []byte](cacheLen)
	if cacheErr != nil {
		return nil, fmt.Errorf("failed to create voicepack cache: %w", cacheErr)
	}

	runtime := &Runtime{
		modelDir:     modelDir,
		voicesDir:    voicesPath,
		defaultVoice: defaultVoice,
		weightsPath:  weightsPath,
		log:          log,
		voices:       nil,
		cache:        cache,
	}

	refreshErr := runtime.Refresh()
	if refreshErr != nil {
		return nil, refreshErr
	}

	log.Info("Model runtime ready: weights %s, %d voices", weightsPath, len(runtime.List()))

	return runtime, nil
}

// Refresh re-scans the voices directory. Voicepacks dropped into the model
// directory while the service is running become visible without a restart.
func (r *Runtime) Refresh() error {
	info, statErr := os.Stat(r.voicesDir)
	if statErr != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrVoicesDirMissing, r.voicesDir)
	}

	entries, readErr := os.ReadDir(r.voicesDir)
	if readErr != nil {
		return fmt.Errorf("failed to read voices directory %s: %w", r.voicesDir, readErr)
	}

	voices := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, voicepackExt) {
			continue
		}

		voice := strings.TrimSuffix(name, voicepackExt)
		voices[voice] = filepath.Join(r.voicesDir, name)
	}

	if len(voices) == 0 {
		return fmt.Errorf("%w: %s", ErrNoVoices, r.voicesDir)
	}

	r.mu.Lock()
	r.voices = voices
	r.mu.Unlock()

	return nil
}

// List returns the available voice names in sorted order.
func (r *Runtime) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.voices))
	for voice := range r.voices {
		names = append(names, voice)
	}

	sort.Strings(names)

	return names
}

// Has reports whether a voicepack exists for the given voice.
func (r *Runtime) Has(voice string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.voices[voice]

	return ok
}

// Default returns the configured default voice, falling back to the first
// available voice when the configured one is absent.
func (r *Runtime) Default() string {
	if r.Has(r.defaultVoice) {
		return r.defaultVoice
	}

	voices := r.List()
	if len(voices) > 0 {
		return voices[0]
	}

	return r.defaultVoice
}

// WeightsPath returns the discovered model weights artifact.
func (r *Runtime) WeightsPath() string {
	return r.weightsPath
}

// VoicepackPath resolves the on-disk path of a voicepack.
func (r *Runtime) VoicepackPath(voice string) (string, error) {
	if voice == "" {
		return "", ErrVoiceEmpty
	}

	r.mu.RLock()
	path, ok := r.voices[voice]
	r.mu.RUnlock()

	if !ok {
		return "", newUnknownVoiceError(voice)
	}

	return path, nil
}

// Voicepack loads the voicepack bytes for a voice, serving repeated
// requests for hot voices from the LRU cache.
func (r *Runtime) Voicepack(voice string) ([]byte, error) {
	path, pathErr := r.VoicepackPath(voice)
	if pathErr != nil {
		return nil, pathErr
	}

	if data, ok := r.cache.Get(voice); ok {
		return data, nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read voicepack for '%s': %w", voice, readErr)
	}

	r.cache.Add(voice, data)

	return data, nil
}

// findWeights locates the model weights artifact under modelDir.
func findWeights(modelDir string) (string, error) {
	entries, readErr := os.ReadDir(modelDir)
	if readErr != nil {
		return "", fmt.Errorf("failed to read model directory %s: %w", modelDir, readErr)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext == weightsExtPTH || ext == weightsExtONX {
			return filepath.Join(modelDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrWeightsMissing, modelDir)
}
