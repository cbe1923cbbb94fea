package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/book-expert/presentation-service/internal/core"
)

// OpenAIClient is a ModelClient backed by an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client oai.Client
	model  string
}

// NewOpenAIClient creates a remote client. An empty baseURL uses the SDK default. SDK retries are
// disabled.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	if timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	return &OpenAIClient{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}
}

// Complete sends the instruction and text as a system and a user message and returns the first
// choice. Failures wrap core.ErrUnavailable or core.ErrMalformedResponse.
func (c *OpenAIClient) Complete(ctx context.Context, systemInstruction, userText string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemInstruction),
			oai.UserMessage(userText),
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %w", core.ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices in response", core.ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}
