package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fireblade2534/kokoro-serve/internal/audio"
	"github.com/fireblade2534/kokoro-serve/internal/core"
	"github.com/fireblade2534/kokoro-serve/internal/engine"
	"github.com/fireblade2534/kokoro-serve/internal/model"
)

// Machine-readable error codes in HTTP error responses.
const (
	codeInvalidBody       = "invalid_body"
	codeEmptyInput        = "empty_input"
	codeInputTooLong      = "input_too_long"
	codeUnknownVoice      = "unknown_voice"
	codeSpeedRange        = "speed_out_of_range"
	codeUnsupportedFormat = "unsupported_format"
	codeSynthesisFailed   = "synthesis_failed"
	codeNotReady          = "not_ready"
)

func (s *Server) handleLiveness(ginCtx *gin.Context) {
	ginCtx.JSON(http.StatusOK, "ok")
}

func (s *Server) handleReadiness(ginCtx *gin.Context) {
	if !s.ready.Load() {
		ginCtx.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Detail:    "model runtime is not ready",
			ErrorCode: codeNotReady,
		})

		return
	}

	ginCtx.JSON(http.StatusOK, "ok")
}

func (s *Server) handleVersion(ginCtx *gin.Context) {
	ginCtx.JSON(http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleVoices(ginCtx *gin.Context) {
	// Rescan so voicepacks dropped into the model directory show up
	// without a restart.
	refreshErr := s.voices.Refresh()
	if refreshErr != nil {
		s.log.Warn("Voice rescan failed, serving last known catalog: %v", refreshErr)
	}

	ginCtx.JSON(http.StatusOK, VoicesResponse{
		Voices:  s.voices.List(),
		Default: s.voices.Default(),
	})
}

// handleSpeech serves POST /v1/audio/speech.
func (s *Server) handleSpeech(ginCtx *gin.Context) {
	var req SpeechRequest

	bindErr := ginCtx.ShouldBindJSON(&req)
	if bindErr != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{
			Detail:    "invalid request body: " + bindErr.Error(),
			ErrorCode: codeInvalidBody,
		})

		return
	}

	validationErr := s.validateSpeechRequest(&req)
	if validationErr != nil {
		status, resp := mapError(validationErr)
		ginCtx.JSON(status, resp)

		return
	}

	params := core.SynthesisParams{
		Voice:    req.Voice,
		Language: req.Language,
		Speed:    req.Speed,
	}

	format := req.ResponseFormat
	if format == "" {
		format = s.defaultFormat
	}

	if req.Stream {
		s.streamSpeech(ginCtx, req.Input, params, format)

		return
	}

	result, runErr := s.pipeline.Run(ginCtx.Request.Context(), req.Input, params, format)
	if runErr != nil {
		status, resp := mapError(runErr)
		ginCtx.JSON(status, resp)

		return
	}

	ginCtx.Header("Content-Length", strconv.Itoa(len(result.Audio)))
	ginCtx.Data(http.StatusOK, result.ContentType, result.Audio)
}

// streamSpeech writes one converted audio chunk per flush.
func (s *Server) streamSpeech(
	ginCtx *gin.Context,
	input string,
	params core.SynthesisParams,
	format string,
) {
	ginCtx.Header("Content-Type", audio.ContentType(format))
	ginCtx.Header("Transfer-Encoding", "chunked")

	writer := ginCtx.Writer
	headerWritten := false

	streamErr := s.pipeline.RunStream(
		ginCtx.Request.Context(),
		input,
		params,
		format,
		func(chunk []byte) error {
			if !headerWritten {
				writer.WriteHeader(http.StatusOK)

				headerWritten = true
			}

			_, writeErr := writer.Write(chunk)
			if writeErr != nil {
				return writeErr
			}

			writer.Flush()

			return nil
		},
	)
	if streamErr != nil {
		// Headers are already on the wire once the first chunk is
		// flushed; only report errors that happen before that.
		if !headerWritten {
			status, resp := mapError(streamErr)
			ginCtx.JSON(status, resp)

			return
		}

		s.log.Error("Streaming synthesis aborted mid-response: %v", streamErr)
	}
}

// validateSpeechRequest rejects requests before any inference work starts.
func (s *Server) validateSpeechRequest(req *SpeechRequest) error {
	if req.Input == "" {
		return engine.ErrTextEmpty
	}

	if req.Voice != "" && !s.voices.Has(req.Voice) {
		// A miss may be a voicepack added since the last scan; rescan
		// once before rejecting.
		refreshErr := s.voices.Refresh()
		if refreshErr != nil {
			s.log.Warn("Voice rescan failed: %v", refreshErr)
		}

		if !s.voices.Has(req.Voice) {
			return model.ErrUnknownVoice
		}
	}

	if req.ResponseFormat != "" && !audio.IsSupportedFormat(req.ResponseFormat) {
		return audio.ErrUnsupportedFormat
	}

	return nil
}

// mapError converts pipeline sentinel errors to HTTP status and body.
func mapError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, engine.ErrTextEmpty):
		return http.StatusBadRequest, ErrorResponse{
			Detail:    "input text cannot be empty",
			ErrorCode: codeEmptyInput,
		}
	case errors.Is(err, engine.ErrTextTooLong):
		return http.StatusBadRequest, ErrorResponse{
			Detail:    err.Error(),
			ErrorCode: codeInputTooLong,
		}
	case errors.Is(err, model.ErrUnknownVoice), errors.Is(err, model.ErrVoiceEmpty):
		return http.StatusNotFound, ErrorResponse{
			Detail:    err.Error(),
			ErrorCode: codeUnknownVoice,
		}
	case errors.Is(err, engine.ErrSpeedRange):
		return http.StatusBadRequest, ErrorResponse{
			Detail:    err.Error(),
			ErrorCode: codeSpeedRange,
		}
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return http.StatusBadRequest, ErrorResponse{
			Detail:    err.Error(),
			ErrorCode: codeUnsupportedFormat,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Detail:    err.Error(),
			ErrorCode: codeSynthesisFailed,
		}
	}
}
