// Package events defines the payloads exchanged on the async job path.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Header carries the identifiers every event shares.
type Header struct {
	EventID    string    `json:"event_id"`
	WorkflowID string    `json:"workflow_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewHeader mints a header for a fresh workflow.
func NewHeader(workflowID string) Header {
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	return Header{
		EventID:    uuid.NewString(),
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
	}
}

// SynthesisRequestedEvent asks the worker to synthesize the text stored
// under TextKey in the text bucket.
type SynthesisRequestedEvent struct {
	Header Header `json:"header"`

	TextKey string `json:"text_key"`

	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Format   string  `json:"format,omitempty"`
}

// AudioReadyEvent is the worker's reply: the synthesized audio is stored
// under AudioKey in the audio bucket.
type AudioReadyEvent struct {
	Header Header `json:"header"`

	AudioKey    string `json:"audio_key"`
	ContentType string `json:"content_type"`
	Chunks      int    `json:"chunks"`
}

// JobErrorEvent reports a failed job back to the requester.
type JobErrorEvent struct {
	Header Header `json:"header"`

	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}
