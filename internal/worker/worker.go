// Package worker provides the NATS worker that serves async synthesis jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/fireblade2534/kokoro-serve/internal/audio"
	"github.com/fireblade2534/kokoro-serve/internal/core"
	"github.com/fireblade2534/kokoro-serve/internal/events"
	"github.com/fireblade2534/kokoro-serve/internal/synth"
)

const handleMessageTimeout = 10 * time.Minute

// Error codes reported back to job requesters.
const (
	codeBadEvent          = "bad_event"
	codeDownloadFailed    = "download_failed"
	codeSynthesisFailed   = "synthesis_failed"
	codeUploadFailed      = "upload_failed"
	codeUnsupportedFormat = "unsupported_format"
)

// Worker listens for synthesis jobs on a NATS subject and processes them
// through the shared pipeline.
type Worker struct {
	natsConnection *nats.Conn
	subject        string
	textStore      core.ObjectStore
	audioStore     core.ObjectStore
	pipeline       *synth.Pipeline
	defaultFormat  string
	log            *logger.Logger
}

// New creates a Worker.
func New(
	natsConnection *nats.Conn,
	subject string,
	textStore core.ObjectStore,
	audioStore core.ObjectStore,
	pipeline *synth.Pipeline,
	defaultFormat string,
	log *logger.Logger,
) *Worker {
	return &Worker{
		natsConnection: natsConnection,
		subject:        subject,
		textStore:      textStore,
		audioStore:     audioStore,
		pipeline:       pipeline,
		defaultFormat:  defaultFormat,
		log:            log,
	}
}

// Run subscribes to the jobs subject and blocks until ctx is canceled,
// then drains the subscription so in-flight jobs finish.
func (w *Worker) Run(ctx context.Context) error {
	sub, subErr := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if subErr != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, subErr)
	}

	w.log.Info("Worker listening for jobs on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *Worker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event events.SynthesisRequestedEvent

	unmarshalErr := json.Unmarshal(msg.Data, &event)
	if unmarshalErr != nil {
		w.log.Error("Failed to unmarshal job event: %v", unmarshalErr)
		w.replyError(msg, events.Header{}, codeBadEvent, unmarshalErr)

		return
	}

	reply, processErr := w.processJob(ctx, &event)
	if processErr != nil {
		w.log.Error("Failed to process job for workflow %s: %v", event.Header.WorkflowID, processErr)
		w.replyError(msg, event.Header, errorCode(processErr), processErr)

		return
	}

	w.reply(msg, reply)
}

// processJob downloads the text object, synthesizes it, and uploads the
// resulting audio under a fresh key.
func (w *Worker) processJob(
	ctx context.Context,
	event *events.SynthesisRequestedEvent,
) (*events.AudioReadyEvent, error) {
	textData, downloadErr := w.textStore.Download(ctx, event.TextKey)
	if downloadErr != nil {
		return nil, fmt.Errorf("failed to download text for key '%s': %w", event.TextKey, downloadErr)
	}

	format := event.Format
	if format == "" {
		format = w.defaultFormat
	}

	params := core.SynthesisParams{
		Voice:    event.Voice,
		Language: event.Language,
		Speed:    event.Speed,
	}

	result, runErr := w.pipeline.Run(ctx, string(textData), params, format)
	if runErr != nil {
		return nil, fmt.Errorf("failed to synthesize job text: %w", runErr)
	}

	audioKey := uuid.NewString() + "." + format

	uploadErr := w.audioStore.Upload(ctx, audioKey, result.Audio)
	if uploadErr != nil {
		return nil, fmt.Errorf("failed to upload audio for key '%s': %w", audioKey, uploadErr)
	}

	return &events.AudioReadyEvent{
		Header:      event.Header,
		AudioKey:    audioKey,
		ContentType: result.ContentType,
		Chunks:      result.Chunks,
	}, nil
}

func (w *Worker) reply(msg *nats.Msg, replyEvent *events.AudioReadyEvent) {
	replyData, marshalErr := json.Marshal(replyEvent)
	if marshalErr != nil {
		w.log.Error("Failed to marshal reply event: %v", marshalErr)

		return
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		w.log.Error(
			"Failed to publish reply for workflow %s: %v",
			replyEvent.Header.WorkflowID,
			respondErr,
		)
	}
}

func (w *Worker) replyError(msg *nats.Msg, header events.Header, code string, cause error) {
	if msg.Reply == "" {
		return
	}

	errorEvent := events.JobErrorEvent{
		Header:    header,
		Detail:    cause.Error(),
		ErrorCode: code,
	}

	replyData, marshalErr := json.Marshal(errorEvent)
	if marshalErr != nil {
		w.log.Error("Failed to marshal error event: %v", marshalErr)

		return
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		w.log.Error("Failed to publish error reply: %v", respondErr)
	}
}

// errorCode maps pipeline failures to machine-readable codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return codeUnsupportedFormat
	case strings.Contains(err.Error(), "failed to download"):
		return codeDownloadFailed
	case strings.Contains(err.Error(), "failed to upload"):
		return codeUploadFailed
	default:
		return codeSynthesisFailed
	}
}
