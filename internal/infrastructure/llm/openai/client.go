package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/llm"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
)

const (
	providerName = "openai"
	DefaultModel = "gpt-4o-mini"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// Executor owns retries; the SDK's own retry loop is disabled.
	Executor *resilience.Executor
}

type Client struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(llm.NewHTTPClient(cfg.Timeout)),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client:   openai.NewClient(opts...),
		model:    model,
		executor: cfg.Executor,
	}, nil
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) Generate(ctx context.Context, prompt string) (domain.Generation, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}

	completion, err := resilience.Call(ctx, c.executor, "openai.chat_completion", func(callCtx context.Context) (*openai.ChatCompletion, error) {
		callCtx, capture := llm.WithPayloadCapture(callCtx)
		completion, err := c.client.Chat.Completions.New(callCtx, params)
		if payloadErr := capture.Err("chat completion"); payloadErr != nil {
			return nil, payloadErr
		}
		if err != nil {
			return nil, normalizeError(err)
		}
		return completion, nil
	}, llm.Classify)
	if err != nil {
		return domain.Generation{}, llm.ToDomain("openai chat completion", err)
	}

	raw := json.RawMessage(completion.RawJSON())
	text := ""
	if len(completion.Choices) > 0 {
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
	}
	if text == "" {
		return domain.Generation{}, domain.WithRaw(
			domain.WrapError(domain.ErrUpstreamEmptyResponse, "openai chat completion", errors.New("no message content returned")),
			raw,
		)
	}

	model := completion.Model
	if model == "" {
		model = c.model
	}
	return domain.Generation{
		Text:  text,
		Raw:   raw,
		Model: model,
	}, nil
}

func normalizeError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("%w: %w", &llm.HTTPStatusError{
		Provider:   providerName,
		Operation:  "chat completion",
		StatusCode: apiErr.StatusCode,
		Status:     fmt.Sprintf("%d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode)),
		Body:       apiErr.Message,
	}, err)
}
