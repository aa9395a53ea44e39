// Package engine runs the inference backend. The neural core itself is an
// external collaborator: a standalone binary that reads text and writes a
// PCM16 WAV file. This package owns parameter validation, process
// invocation, and collection of the generated audio.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/book-expert/logger"

	"github.com/fireblade2534/kokoro-serve/internal/core"
	"github.com/fireblade2534/kokoro-serve/internal/model"
)

// Static errors.
var (
	ErrTextEmpty    = errors.New("text cannot be empty")
	ErrTextTooLong  = errors.New("text exceeds the maximum input length")
	ErrSpeedRange   = errors.New("speed is outside the allowed range")
	ErrLanguageCode = errors.New("language code cannot be empty")
)

func newSpeedRangeError(speed, minSpeed, maxSpeed float64) error {
	return fmt.Errorf("%w: got %.2f, allowed [%.2f, %.2f]", ErrSpeedRange, speed, minSpeed, maxSpeed)
}

// Options bounds what a single synthesis call may request.
type Options struct {
	Binary         string
	TimeoutSeconds int
	MaxInputChars  int
	MinSpeed       float64
	MaxSpeed       float64
	DefaultSpeed   float64
	Language       string
}

// KokoroProcess implements core.Synthesizer by invoking the inference
// backend binary once per call.
type KokoroProcess struct {
	opts    Options
	runtime *model.Runtime
	log     *logger.Logger
}

// New creates a KokoroProcess bound to a validated model runtime.
func New(opts Options, runtime *model.Runtime, log *logger.Logger) *KokoroProcess {
	return &KokoroProcess{
		opts:    opts,
		runtime: runtime,
		log:     log,
	}
}

// Params returns the default synthesis parameters.
func (p *KokoroProcess) Params() core.SynthesisParams {
	return core.SynthesisParams{
		Voice:    p.runtime.Default(),
		Language: p.opts.Language,
		Speed:    p.opts.DefaultSpeed,
	}
}

// Synthesize validates the call, runs the backend with a context deadline,
// and returns the produced WAV payload.
func (p *KokoroProcess) Synthesize(
	ctx context.Context,
	text string,
	params core.SynthesisParams,
) ([]byte, error) {
	filled := p.fillDefaults(params)

	validateErr := p.validate(text, filled)
	if validateErr != nil {
		return nil, validateErr
	}

	// Voicepack bytes come through the runtime cache, so hot voices do not
	// re-read the model directory on every call.
	voicepackData, voiceErr := p.runtime.Voicepack(filled.Voice)
	if voiceErr != nil {
		return nil, voiceErr
	}

	if p.opts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.opts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	workDir, dirErr := os.MkdirTemp("", "kokoro-synth-")
	if dirErr != nil {
		return nil, fmt.Errorf("failed to create engine work directory: %w", dirErr)
	}

	defer func() {
		removeErr := os.RemoveAll(workDir)
		if removeErr != nil {
			p.log.Warn("Failed to remove work directory '%s': %v", workDir, removeErr)
		}
	}()

	voicepackPath := filepath.Join(workDir, filled.Voice+".pt")

	writeErr := os.WriteFile(voicepackPath, voicepackData, 0o600)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to materialize voicepack: %w", writeErr)
	}

	outputPath := filepath.Join(workDir, "output.wav")

	args := []string{
		"--model", p.runtime.WeightsPath(),
		"--voicepack", voicepackPath,
		"--lang", filled.Language,
		"--speed", strconv.FormatFloat(filled.Speed, 'f', 2, 64),
		"--output", outputPath,
		"--text", text,
	}

	// #nosec G204 -- arguments are validated against the model runtime above
	cmd := exec.CommandContext(ctx, p.opts.Binary, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return nil, fmt.Errorf(
			"inference backend execution failed: %w - output: %s",
			runErr,
			string(output),
		)
	}

	audioData, readErr := os.ReadFile(outputPath)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data from work directory: %w", readErr)
	}

	return audioData, nil
}

// fillDefaults substitutes service defaults for unset request parameters.
func (p *KokoroProcess) fillDefaults(params core.SynthesisParams) core.SynthesisParams {
	filled := params

	if filled.Voice == "" {
		filled.Voice = p.runtime.Default()
	}

	if filled.Language == "" {
		filled.Language = p.opts.Language
	}

	if filled.Speed == 0 {
		filled.Speed = p.opts.DefaultSpeed
	}

	return filled
}

// validate rejects calls the backend cannot serve.
func (p *KokoroProcess) validate(text string, params core.SynthesisParams) error {
	if text == "" {
		return ErrTextEmpty
	}

	if p.opts.MaxInputChars > 0 && len([]rune(text)) > p.opts.MaxInputChars {
		return fmt.Errorf("%w: %d characters, limit %d", ErrTextTooLong, len([]rune(text)), p.opts.MaxInputChars)
	}

	if params.Language == "" {
		return ErrLanguageCode
	}

	if params.Speed < p.opts.MinSpeed || params.Speed > p.opts.MaxSpeed {
		return newSpeedRangeError(params.Speed, p.opts.MinSpeed, p.opts.MaxSpeed)
	}

	return nil
}
