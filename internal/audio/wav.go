package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// RIFF layout constants for PCM16 audio.
const (
	wavHeaderSize    = 44
	riffChunkOffset  = 36
	fmtChunkSize     = 16
	pcmFormatTag     = 1
	bitsPerSample    = 16
	bytesPerSample   = 2
	defaultChannels  = 1
	minFmtDataLength = 16
)

// Static errors.
var (
	ErrNotRIFF           = errors.New("payload is not a RIFF/WAVE file")
	ErrTruncatedWAV      = errors.New("truncated WAV payload")
	ErrUnsupportedCodec  = errors.New("only PCM16 WAV payloads are supported")
	ErrMissingDataChunk  = errors.New("WAV payload has no data chunk")
	ErrOddDataChunkBytes = errors.New("WAV data chunk length is not sample aligned")
)

// EncodeWAV wraps int16 mono samples in a RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * bytesPerSample
	byteRate := sampleRate * defaultChannels * bytesPerSample
	blockAlign := defaultChannels * bytesPerSample

	header := make([]byte, wavHeaderSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(riffChunkOffset+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], pcmFormatTag)
	binary.LittleEndian.PutUint16(header[22:24], defaultChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	out.Write(header)
	out.Write(EncodePCM(samples))

	return out.Bytes()
}

// EncodePCM returns the raw little-endian sample bytes with no header.
func EncodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)

	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(sample))
	}

	return out
}

// DecodeWAV parses a PCM16 WAV payload produced by the inference engine and
// returns its samples and sample rate.
func DecodeWAV(payload []byte) ([]int16, int, error) {
	if len(payload) < wavHeaderSize {
		return nil, 0, ErrTruncatedWAV
	}

	if string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return nil, 0, ErrNotRIFF
	}

	var (
		sampleRate int
		dataChunk  []byte
	)

	offset := 12

	for offset+8 <= len(payload) {
		chunkID := string(payload[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		chunkStart := offset + 8

		if chunkStart+chunkSize > len(payload) {
			return nil, 0, fmt.Errorf("%w: chunk %q overruns payload", ErrTruncatedWAV, chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < minFmtDataLength {
				return nil, 0, fmt.Errorf("%w: fmt chunk too short", ErrTruncatedWAV)
			}

			formatTag := binary.LittleEndian.Uint16(payload[chunkStart : chunkStart+2])
			bits := binary.LittleEndian.Uint16(payload[chunkStart+14 : chunkStart+16])

			if formatTag != pcmFormatTag || bits != bitsPerSample {
				return nil, 0, ErrUnsupportedCodec
			}

			sampleRate = int(binary.LittleEndian.Uint32(payload[chunkStart+4 : chunkStart+8]))
		case "data":
			dataChunk = payload[chunkStart : chunkStart+chunkSize]
		}

		// Chunks are word aligned.
		if chunkSize%2 == 1 {
			chunkSize++
		}

		offset = chunkStart + chunkSize
	}

	if dataChunk == nil {
		return nil, 0, ErrMissingDataChunk
	}

	if len(dataChunk)%bytesPerSample != 0 {
		return nil, 0, ErrOddDataChunkBytes
	}

	samples := make([]int16, len(dataChunk)/bytesPerSample)

	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(dataChunk[i*bytesPerSample:]))
	}

	return samples, sampleRate, nil
}

// Duration reports the playback time of a sample buffer.
func Duration(sampleCount, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}

	return time.Duration(float64(sampleCount) / float64(sampleRate) * float64(time.Second))
}

// SamplesToFloat converts int16 samples to float64 for normalization.
func SamplesToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))

	for i, sample := range samples {
		out[i] = float64(sample)
	}

	return out
}
