// Package core defines the interfaces and shared types that the synthesis
// pipeline is built around.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SynthesisParams holds the knobs for a single synthesis call.
// Requests may override the service defaults on a per-call basis.
type SynthesisParams struct {
	Voice    string
	Language string
	Speed    float64
}

// Synthesizer converts normalized text into raw audio.
// Implementations return a complete PCM16 WAV payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params SynthesisParams) ([]byte, error)
	Params() SynthesisParams
}

// VoiceCatalog exposes the voices available in the model directory.
// Refresh rescans the backing directory so voicepacks added while the
// service is running become visible without a restart.
type VoiceCatalog interface {
	List() []string
	Has(voice string) bool
	Default() string
	Refresh() error
}
