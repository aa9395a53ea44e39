package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/fireblade2534/kokoro-serve/internal/audio"
)

func TestEncodeDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1000, -1000, 32767, -32768, 42}

	encoded := audio.EncodeWAV(samples, testSampleRate)

	decoded, sampleRate, err := audio.DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if sampleRate != testSampleRate {
		t.Errorf("Expected sample rate %d, got %d", testSampleRate, sampleRate)
	}

	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}

	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d mismatch: got %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestEncodeWAV_HeaderLayout(t *testing.T) {
	t.Parallel()

	samples := []int16{1, 2, 3}

	encoded := audio.EncodeWAV(samples, testSampleRate)

	if len(encoded) != 44+len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", 44+len(samples)*2, len(encoded))
	}

	if string(encoded[0:4]) != "RIFF" || string(encoded[8:12]) != "WAVE" {
		t.Error("Expected RIFF/WAVE magic")
	}

	channels := binary.LittleEndian.Uint16(encoded[22:24])
	if channels != 1 {
		t.Errorf("Expected mono output, got %d channels", channels)
	}

	dataSize := binary.LittleEndian.Uint32(encoded[40:44])
	if int(dataSize) != len(samples)*2 {
		t.Errorf("Expected data size %d, got %d", len(samples)*2, dataSize)
	}
}

func TestEncodePCM_ByteLayout(t *testing.T) {
	t.Parallel()

	encoded := audio.EncodePCM([]int16{0x0102, -1})

	expected := []byte{0x02, 0x01, 0xFF, 0xFF}
	if len(encoded) != len(expected) {
		t.Fatalf("Expected %d bytes, got %d", len(expected), len(encoded))
	}

	for i := range expected {
		if encoded[i] != expected[i] {
			t.Errorf("Byte %d mismatch: got %#x, want %#x", i, encoded[i], expected[i])
		}
	}
}

func TestDecodeWAV_RejectsNonRIFF(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 64)
	copy(payload, "NOPE")

	_, _, err := audio.DecodeWAV(payload)
	if !errors.Is(err, audio.ErrNotRIFF) {
		t.Errorf("Expected ErrNotRIFF, got %v", err)
	}
}

func TestDecodeWAV_RejectsTruncatedPayload(t *testing.T) {
	t.Parallel()

	_, _, err := audio.DecodeWAV([]byte("RIFF"))
	if !errors.Is(err, audio.ErrTruncatedWAV) {
		t.Errorf("Expected ErrTruncatedWAV, got %v", err)
	}
}

func TestDecodeWAV_RejectsOverrunningChunk(t *testing.T) {
	t.Parallel()

	encoded := audio.EncodeWAV([]int16{1, 2, 3, 4}, testSampleRate)

	// Claim a data chunk far larger than the payload.
	binary.LittleEndian.PutUint32(encoded[40:44], 1<<20)

	_, _, err := audio.DecodeWAV(encoded)
	if !errors.Is(err, audio.ErrTruncatedWAV) {
		t.Errorf("Expected ErrTruncatedWAV, got %v", err)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	duration := audio.Duration(testSampleRate/2, testSampleRate)
	if duration != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", duration)
	}

	if audio.Duration(100, 0) != 0 {
		t.Error("Expected zero duration for invalid sample rate")
	}
}

func TestSamplesToFloat(t *testing.T) {
	t.Parallel()

	floats := audio.SamplesToFloat([]int16{-3, 0, 7})

	expected := []float64{-3, 0, 7}
	for i := range expected {
		if floats[i] != expected[i] {
			t.Errorf("Sample %d mismatch: got %v, want %v", i, floats[i], expected[i])
		}
	}
}
