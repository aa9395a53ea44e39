// Package synth wires the full synthesis path: text normalization,
// chunking, parallel inference, boundary normalization, and output format
// conversion. The HTTP handlers and the NATS worker both run through it.
package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/fireblade2534/kokoro-serve/internal/audio"
	"github.com/fireblade2534/kokoro-serve/internal/core"
	"github.com/fireblade2534/kokoro-serve/internal/engine"
	"github.com/fireblade2534/kokoro-serve/internal/text"
)

// ErrNoAudio indicates the engine produced no usable samples.
var ErrNoAudio = errors.New("synthesis produced no audio")

// Settings holds the stream-level constants of the pipeline.
type Settings struct {
	SampleRate         int
	GapTrimMs          int
	GapPaddingMs       int
	SilenceThresholdDB int
	MaxChunkChars      int
}

// Result is a fully converted synthesis output.
type Result struct {
	Audio       []byte
	ContentType string
	SampleCount int
	Chunks      int
}

// Pipeline executes synthesis requests end to end.
type Pipeline struct {
	preprocessor *text.Preprocessor
	pool         *engine.Pool
	converter    *audio.Converter
	settings     Settings
	log          *logger.Logger
}

// New assembles a Pipeline.
func New(
	pool *engine.Pool,
	converter *audio.Converter,
	settings Settings,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		preprocessor: text.NewPreprocessor(),
		pool:         pool,
		converter:    converter,
		settings:     settings,
		log:          log,
	}
}

// Run synthesizes input into a single converted payload.
func (p *Pipeline) Run(
	ctx context.Context,
	input string,
	params core.SynthesisParams,
	format string,
) (*Result, error) {
	chunks, chunkErr := p.prepare(input)
	if chunkErr != nil {
		return nil, chunkErr
	}

	payloads, synthErr := p.pool.SynthesizeAll(ctx, chunks, params)
	if synthErr != nil {
		return nil, synthErr
	}

	samples, decodeErr := p.decodeAndNormalize(payloads)
	if decodeErr != nil {
		return nil, decodeErr
	}

	converted, convertErr := p.converter.Convert(ctx, samples, format)
	if convertErr != nil {
		return nil, convertErr
	}

	return &Result{
		Audio:       converted,
		ContentType: audio.ContentType(format),
		SampleCount: len(samples),
		Chunks:      len(chunks),
	}, nil
}

// RunStream synthesizes input chunk by chunk, invoking emit with each
// converted chunk as it becomes ready. Normalizer state is carried across
// the whole stream so chunk boundaries stay consistent.
func (p *Pipeline) RunStream(
	ctx context.Context,
	input string,
	params core.SynthesisParams,
	format string,
	emit func(chunk []byte) error,
) error {
	chunks, chunkErr := p.prepare(input)
	if chunkErr != nil {
		return chunkErr
	}

	normalizer := p.newNormalizer()

	for chunkIndex, chunk := range chunks {
		payload, synthErr := p.pool.SynthesizeAll(ctx, []string{chunk}, params)
		if synthErr != nil {
			return synthErr
		}

		samples, _, decodeErr := audio.DecodeWAV(payload[0])
		if decodeErr != nil {
			return fmt.Errorf("failed to decode engine output for chunk %d: %w", chunkIndex+1, decodeErr)
		}

		isLast := chunkIndex == len(chunks)-1
		normalized := normalizer.Normalize(audio.SamplesToFloat(samples), isLast)

		converted, convertErr := p.converter.Convert(ctx, normalized, format)
		if convertErr != nil {
			return convertErr
		}

		emitErr := emit(converted)
		if emitErr != nil {
			return fmt.Errorf("failed to emit chunk %d: %w", chunkIndex+1, emitErr)
		}
	}

	return nil
}

// prepare normalizes the input text and splits it for the worker pool.
func (p *Pipeline) prepare(input string) ([]string, error) {
	normalized := p.preprocessor.Normalize(input)
	if normalized == "" {
		return nil, engine.ErrTextEmpty
	}

	chunks := text.SplitChunks(normalized, p.settings.MaxChunkChars)
	if len(chunks) == 0 {
		return nil, engine.ErrTextEmpty
	}

	return chunks, nil
}

// decodeAndNormalize decodes each engine payload and stitches the
// normalized chunks into one sample buffer.
func (p *Pipeline) decodeAndNormalize(payloads [][]byte) ([]int16, error) {
	normalizer := p.newNormalizer()

	var combined []int16

	for payloadIndex, payload := range payloads {
		samples, _, decodeErr := audio.DecodeWAV(payload)
		if decodeErr != nil {
			return nil, fmt.Errorf(
				"failed to decode engine output for chunk %d: %w",
				payloadIndex+1,
				decodeErr,
			)
		}

		isLast := payloadIndex == len(payloads)-1
		combined = append(combined, normalizer.Normalize(audio.SamplesToFloat(samples), isLast)...)
	}

	if len(combined) == 0 {
		return nil, ErrNoAudio
	}

	return combined, nil
}

func (p *Pipeline) newNormalizer() *audio.Normalizer {
	return audio.NewNormalizer(
		p.settings.SampleRate,
		p.settings.GapTrimMs,
		p.settings.GapPaddingMs,
		p.settings.SilenceThresholdDB,
	)
}
