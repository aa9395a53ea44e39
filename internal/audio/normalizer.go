// Package audio provides the sample-level processing between the inference
// engine and the HTTP response: chunk-boundary normalization, WAV
// encoding and decoding, and output format conversion.
package audio

import "math"

// Sample-rate derived constants.
const (
	msPerSecond = 1000

	// startPadMs is how much leading audio is kept before the first
	// non-silent sample.
	startPadMs = 50

	// DefaultSilenceThresholdDB is the amplitude floor below which samples
	// count as silence, in dBFS.
	DefaultSilenceThresholdDB = -45
)

const int16Max = math.MaxInt16

// Normalizer holds the per-stream trimming state. One Normalizer instance
// must be shared across all chunks of a single response so boundary
// trimming stays consistent.
type Normalizer struct {
	sampleRate         int
	silenceThresholdDB int
	samplesToTrim      int
	samplesToPadStart  int
	samplesToPadEnd    int
}

// NewNormalizer builds a Normalizer for the given stream.
// gapTrimMs is removed from the tail of every non-final chunk; paddingMs
// bounds how much audio is kept around the detected speech region.
func NewNormalizer(sampleRate, gapTrimMs, paddingMs, silenceThresholdDB int) *Normalizer {
	samplesToPadStart := startPadMs * sampleRate / msPerSecond

	samplesToPadEnd := paddingMs*sampleRate/msPerSecond - samplesToPadStart
	if samplesToPadEnd < 0 {
		samplesToPadEnd = 0
	}

	return &Normalizer{
		sampleRate:         sampleRate,
		silenceThresholdDB: silenceThresholdDB,
		samplesToTrim:      gapTrimMs * sampleRate / msPerSecond,
		samplesToPadStart:  samplesToPadStart,
		samplesToPadEnd:    samplesToPadEnd,
	}
}

// Normalize scales the chunk to full int16 range, trims the tail of
// non-final chunks to close inter-chunk gaps, and cuts leading and
// trailing silence with padding around the speech region.
func (n *Normalizer) Normalize(samples []float64, isLastChunk bool) []int16 {
	if len(samples) == 0 {
		return nil
	}

	peak := 0.0

	for _, sample := range samples {
		abs := math.Abs(sample)
		if abs > peak {
			peak = abs
		}
	}

	scaled := make([]float64, len(samples))

	for i, sample := range samples {
		if peak > 0 {
			scaled[i] = sample / peak
		} else {
			scaled[i] = sample
		}
	}

	if !isLastChunk && len(scaled) > n.samplesToTrim {
		scaled = scaled[:len(scaled)-n.samplesToTrim]
	}

	ints := make([]int16, len(scaled))

	for i, sample := range scaled {
		value := sample * int16Max
		if value > int16Max {
			value = int16Max
		}

		if value < math.MinInt16 {
			value = math.MinInt16
		}

		ints[i] = int16(value)
	}

	start, end := n.findFirstLastNonSilent(ints)

	return ints[start:end]
}

// findFirstLastNonSilent locates the speech region against the dBFS
// threshold. Fully silent audio is returned untrimmed.
func (n *Normalizer) findFirstLastNonSilent(samples []int16) (int, int) {
	amplitudeThreshold := int16Max * math.Pow(10, float64(n.silenceThresholdDB)/20)

	firstIndex, lastIndex := -1, -1

	for i := range samples {
		if float64(samples[i]) > amplitudeThreshold {
			firstIndex = i

			break
		}
	}

	for i := len(samples) - 1; i >= 0; i-- {
		if float64(samples[i]) > amplitudeThreshold {
			lastIndex = i

			break
		}
	}

	if firstIndex == -1 || lastIndex == -1 {
		return 0, len(samples)
	}

	start := firstIndex - n.samplesToPadStart
	if start < 0 {
		start = 0
	}

	end := lastIndex + n.samplesToPadEnd
	if end > len(samples) {
		end = len(samples)
	}

	return start, end
}
