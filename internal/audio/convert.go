package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Supported response formats.
const (
	FormatWAV  = "wav"
	FormatMP3  = "mp3"
	FormatOpus = "opus"
	FormatFLAC = "flac"
	FormatPCM  = "pcm"
)

// ErrUnsupportedFormat is returned for formats the service cannot produce.
var ErrUnsupportedFormat = errors.New("format not supported")

func newUnsupportedFormatError(format string) error {
	return fmt.Errorf(
		"%w: %s. Supported formats are: wav, mp3, opus, flac, pcm",
		ErrUnsupportedFormat,
		format,
	)
}

// ContentType returns the MIME type for a supported format.
func ContentType(format string) string {
	switch format {
	case FormatMP3:
		return "audio/mpeg"
	case FormatOpus:
		return "audio/ogg"
	case FormatFLAC:
		return "audio/flac"
	case FormatPCM:
		return "audio/pcm"
	default:
		return "audio/wav"
	}
}

// IsSupportedFormat reports whether format can be produced.
func IsSupportedFormat(format string) bool {
	switch format {
	case FormatWAV, FormatMP3, FormatOpus, FormatFLAC, FormatPCM:
		return true
	default:
		return false
	}
}

// Converter turns normalized int16 samples into the requested wire format.
// WAV and PCM are produced natively; compressed formats are transcoded
// through an external ffmpeg process bounded by encodeTimeout.
type Converter struct {
	ffmpegBinary  string
	sampleRate    int
	encodeTimeout time.Duration
}

// NewConverter creates a Converter for the given stream sample rate. A
// non-positive encodeTimeoutSeconds leaves the transcode bounded only by
// the caller's context.
func NewConverter(ffmpegBinary string, sampleRate, encodeTimeoutSeconds int) *Converter {
	return &Converter{
		ffmpegBinary:  ffmpegBinary,
		sampleRate:    sampleRate,
		encodeTimeout: time.Duration(encodeTimeoutSeconds) * time.Second,
	}
}

// Convert encodes samples into the requested format. Unknown formats are
// rejected with an explicit list of what the service supports.
func (c *Converter) Convert(ctx context.Context, samples []int16, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatPCM:
		return EncodePCM(samples), nil
	case FormatWAV:
		return EncodeWAV(samples, c.sampleRate), nil
	case FormatMP3, FormatOpus, FormatFLAC:
		return c.transcode(ctx, samples, strings.ToLower(format))
	default:
		return nil, newUnsupportedFormatError(format)
	}
}

// transcode pipes a WAV payload through ffmpeg. stdin/stdout piping keeps
// the audio off the filesystem.
func (c *Converter) transcode(ctx context.Context, samples []int16, format string) ([]byte, error) {
	if c.encodeTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.encodeTimeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "wav",
		"-i", "pipe:0",
	}

	switch format {
	case FormatMP3:
		args = append(args, "-codec:a", "libmp3lame", "-b:a", "128k", "-f", "mp3")
	case FormatOpus:
		args = append(args, "-codec:a", "libopus", "-f", "ogg")
	case FormatFLAC:
		args = append(args, "-codec:a", "flac", "-f", "flac")
	}

	args = append(args, "pipe:1")

	// #nosec G204 -- format is restricted to the switch above
	cmd := exec.CommandContext(ctx, c.ffmpegBinary, args...)
	cmd.Stdin = bytes.NewReader(EncodeWAV(samples, c.sampleRate))

	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
	)

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		return nil, fmt.Errorf(
			"failed to convert audio to %s: %w - output: %s",
			format,
			runErr,
			stderr.String(),
		)
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("failed to convert audio to %s: encoder produced no output", format)
	}

	return stdout.Bytes(), nil
}
