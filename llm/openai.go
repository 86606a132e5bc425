// Package llm is a thin OpenAI-compatible chat client used by the planner.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/use-agent/actorkit/models"
)

// DefaultBaseURL is the default OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client sends JSON-mode chat completions to an OpenAI-compatible API.
type Client struct {
	client      openai.Client
	model       string
	baseURL     string
	temperature float64
	maxRetries  int
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model used for completions.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxRetries sets how often the SDK retries transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a Client for apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{model: "gpt-4o-mini", baseURL: DefaultBaseURL, maxRetries: 2}
	for _, opt := range opts {
		opt(c)
	}
	c.client = openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(c.baseURL, "/")+"/"),
		option.WithMaxRetries(c.maxRetries),
	)
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Temperature returns the configured sampling temperature.
func (c *Client) Temperature() float64 { return c.temperature }

// Complete sends a system and a user message and returns the content of the
// first choice. The response is requested in JSON object mode.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", models.NewError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps API failures to error codes.
func classifyError(err error) *models.Error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.NewError(models.ErrCodeTimeout, "LLM request timed out", err)
		}
		return models.NewError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = "LLM API error"
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewError(models.ErrCodeLLMAuthFailure, msg, err)
	case http.StatusTooManyRequests:
		return models.NewError(models.ErrCodeLLMRateLimited, msg, err)
	default:
		return models.NewError(models.ErrCodeLLMFailure, msg, err)
	}
}
