package server

// SpeechRequest is the request body for POST /v1/audio/speech. The field
// set mirrors the OpenAI audio speech API so existing clients work
// unmodified.
type SpeechRequest struct {
	// Model is accepted for API compatibility; this service always runs
	// the model it was started with.
	Model string `json:"model"`

	// Input is the text to synthesize.
	Input string `json:"input" binding:"required"`

	// Voice selects a voicepack; empty selects the service default.
	Voice string `json:"voice"`

	// ResponseFormat is one of wav, mp3, opus, flac, pcm.
	ResponseFormat string `json:"response_format"`

	// Speed scales playback rate; empty selects the service default.
	Speed float64 `json:"speed"`

	// Language is the ISO-639-1 code used for text handling.
	Language string `json:"language"`

	// Stream requests a chunked response, one audio chunk per flush.
	Stream bool `json:"stream"`
}

// ErrorResponse is the structured error body every failing endpoint
// returns.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// VoicesResponse lists the voices available in the model directory.
type VoicesResponse struct {
	Voices  []string `json:"voices"`
	Default string   `json:"default"`
}

// VersionResponse reports the running build.
type VersionResponse struct {
	Version string `json:"version"`
}
