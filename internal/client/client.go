// Package client provides a Go client for the kokoro-serve HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// API endpoints.
const (
	apiSpeech = "/v1/audio/speech"
	apiVoices = "/v1/audio/voices"
	apiHealth = "/healthz"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Static errors.
var (
	ErrTextEmpty  = errors.New("text cannot be empty")
	ErrEmptyAudio = errors.New("received empty audio data")
)

// SpeechRequest is the JSON payload for the speech endpoint.
type SpeechRequest struct {
	Input          string  `json:"input"`
	Voice          string  `json:"voice,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
	Language       string  `json:"language,omitempty"`
}

// errorResponse mirrors the structured error body of the service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// voicesResponse mirrors the voices listing body.
type voicesResponse struct {
	Voices  []string `json:"voices"`
	Default string   `json:"default"`
}

// Client calls the kokoro-serve API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a Client. baseURL includes protocol and port
// (e.g., "http://localhost:8880"); timeout applies to every request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize requests speech for the given payload and returns the audio
// bytes along with the response content type.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, string, error) {
	if req.Input == "" {
		return nil, "", ErrTextEmpty
	}

	requestBody, marshalErr := json.Marshal(req)
	if marshalErr != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSpeech,
		bytes.NewBuffer(requestBody),
	)
	if reqErr != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)

	resp, doErr := c.httpClient.Do(httpReq)
	if doErr != nil {
		return nil, "", fmt.Errorf("failed to send request to %s: %w", c.baseURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.parseErrorResponse(resp)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, "", fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return nil, "", ErrEmptyAudio
	}

	return audioData, resp.Header.Get(headerContentType), nil
}

// Voices lists the voices available on the service.
func (c *Client) Voices(ctx context.Context) ([]string, string, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiVoices, http.NoBody)
	if reqErr != nil {
		return nil, "", fmt.Errorf("failed to create voices request: %w", reqErr)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, "", fmt.Errorf("failed to list voices from %s: %w", c.baseURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.parseErrorResponse(resp)
	}

	var body voicesResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if decodeErr != nil {
		return nil, "", fmt.Errorf("failed to decode voices response: %w", decodeErr)
	}

	return body.Voices, body.Default, nil
}

// HealthCheck verifies the service is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if reqErr != nil {
		return fmt.Errorf("failed to create health check request: %w", reqErr)
	}

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes the structured error body, falling back to
// the raw bytes when the body is not JSON.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp errorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&errResp)
	if decodeErr == nil {
		return fmt.Errorf(
			"service error (%s): %s (code: %s)",
			resp.Status,
			errResp.Detail,
			errResp.ErrorCode,
		)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf("service returned non-OK status: %s, body: %s", resp.Status, string(body))
}
