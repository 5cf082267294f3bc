package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/llm"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
)

const (
	providerName = "gemini"
	DefaultModel = "gemini-2.5-flash"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout of zero means no client-side limit.
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Client generates text through the Gemini generateContent API.
type Client struct {
	client   *genai.Client
	model    string
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: llm.NewHTTPClient(cfg.Timeout),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:   client,
		model:    model,
		executor: cfg.Executor,
	}, nil
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) Generate(ctx context.Context, prompt string) (domain.Generation, error) {
	resp, err := resilience.Call(ctx, c.executor, "gemini.generate", func(callCtx context.Context) (*genai.GenerateContentResponse, error) {
		callCtx, capture := llm.WithPayloadCapture(callCtx)
		resp, err := c.client.Models.GenerateContent(callCtx, c.model, genai.Text(prompt), nil)
		if payloadErr := capture.Err("generate"); payloadErr != nil {
			return nil, payloadErr
		}
		if err != nil {
			return nil, normalizeError(err)
		}
		return resp, nil
	}, llm.Classify)
	if err != nil {
		return domain.Generation{}, llm.ToDomain("gemini generate", err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		raw = nil
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return domain.Generation{}, domain.WithRaw(
			domain.WrapError(domain.ErrUpstreamEmptyResponse, "gemini generate", errors.New(emptyReason(resp))),
			json.RawMessage(raw),
		)
	}

	model := c.model
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return domain.Generation{
		Text:  text,
		Raw:   raw,
		Model: model,
	}, nil
}

// responseText joins the text parts of the first candidate, skipping thought parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func emptyReason(resp *genai.GenerateContentResponse) string {
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return fmt.Sprintf("no text in candidate (finish reason %s)", resp.Candidates[0].FinishReason)
	}
	return "no candidates returned"
}

// normalizeError turns SDK API errors into llm.HTTPStatusError so classification stays provider-neutral.
func normalizeError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(*apiErrPtr, err)
	}
	return err
}

func statusError(apiErr genai.APIError, err error) error {
	status := apiErr.Status
	if status == "" {
		status = http.StatusText(apiErr.Code)
	}
	return fmt.Errorf("%w: %w", &llm.HTTPStatusError{
		Provider:   providerName,
		Operation:  "generate",
		StatusCode: apiErr.Code,
		Status:     fmt.Sprintf("%d %s", apiErr.Code, status),
		Body:       apiErr.Message,
	}, err)
}
