// Package llm provides the language model clients used by the presentation pipeline.
//
// Two backends are available: OllamaClient talks to a local Ollama server over its native chat
// API, and OpenAIClient talks to a remote OpenAI-compatible API. Neither retries; callers decide
// how much partial failure each stage tolerates.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/presentation-service/internal/core"
)

// API endpoints and paths.
const (
	apiChat    = "/api/chat"
	apiVersion = "/api/version"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	// maxErrorBodyBytes bounds how much of an error body is copied into an error message.
	maxErrorBodyBytes = 512
)

// Error messages.
const (
	errFmtNonOKStatus      = "%w: %s returned %s: %s"
	errFmtSendRequest      = "%w: failed to send request to %s: %w"
	errFmtMissingContent   = "%w: response has no message content"
	errFmtDecodeResponse   = "%w: failed to decode response: %w"
	errFmtHealthNonOK      = "%w: health check returned %s"
	errFmtHealthSendFailed = "%w: health check failed for %s: %w"
)

// ChatMessage is one message of a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON payload for the Ollama chat endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse mirrors the part of the Ollama response envelope the client reads. Pointers
// distinguish a missing field from an empty one.
type chatResponse struct {
	Message *struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
}

// OllamaClient is a ModelClient backed by a local Ollama server.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewOllamaClient creates a client for the Ollama server at baseURL (for example
// "http://localhost:11434"). The timeout applies to every request; zero means none.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

// Complete sends the instruction and text as one non-streaming chat request and returns the
// assistant message. Failures wrap core.ErrUnavailable or core.ErrMalformedResponse.
func (c *OllamaClient) Complete(ctx context.Context, systemInstruction, userText string) (string, error) {
	requestBody, err := json.Marshal(ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: roleSystem, Content: systemInstruction},
			{Role: roleUser, Content: userText},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := c.baseURL + apiChat

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", core.ErrUnavailable, err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf(errFmtSendRequest, core.ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf(errFmtNonOKStatus, core.ErrUnavailable, url, resp.Status, readErrorBody(resp.Body))
	}

	var envelope chatResponse

	err = json.NewDecoder(resp.Body).Decode(&envelope)
	if err != nil {
		return "", fmt.Errorf(errFmtDecodeResponse, core.ErrMalformedResponse, err)
	}

	if envelope.Message == nil || envelope.Message.Content == nil {
		return "", fmt.Errorf(errFmtMissingContent, core.ErrMalformedResponse)
	}

	return *envelope.Message.Content, nil
}

// HealthCheck verifies that the Ollama server is reachable.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiVersion, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(errFmtHealthSendFailed, core.ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(errFmtHealthNonOK, core.ErrUnavailable, resp.Status)
	}

	return nil
}

func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))

	return strings.TrimSpace(string(data))
}
