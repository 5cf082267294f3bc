package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/llm"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
)

const providerName = "ollama"

type Options struct {
	// Timeout of zero leaves the request bounded only by the caller's context.
	Timeout  time.Duration
	Executor *resilience.Executor
}

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string, opts Options) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.Executor,
	}
}

func (c *Client) Name() string {
	return providerName
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate asks for JSON-formatted output; the relay still parses defensively.
func (c *Client) Generate(ctx context.Context, prompt string) (domain.Generation, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	gen, err := resilience.Call(ctx, c.executor, "ollama.generate", func(callCtx context.Context) (domain.Generation, error) {
		raw, err := c.postJSON(callCtx, "/api/generate", reqBody, "generate")
		if err != nil {
			return domain.Generation{}, err
		}

		var response generateResponse
		if err := json.Unmarshal(raw, &response); err != nil {
			return domain.Generation{}, fmt.Errorf("decode generate response: %w: %w", llm.ErrErrorPayload, err)
		}
		if strings.TrimSpace(response.Error) != "" {
			return domain.Generation{}, fmt.Errorf("ollama generate: %w: %s", llm.ErrErrorPayload, response.Error)
		}

		model := response.Model
		if model == "" {
			model = c.genModel
		}
		return domain.Generation{
			Text:  strings.TrimSpace(response.Response),
			Raw:   raw,
			Model: model,
		}, nil
	}, llm.Classify)
	if err != nil {
		return domain.Generation{}, llm.ToDomain("ollama generate", err)
	}
	if gen.Text == "" {
		return domain.Generation{}, domain.WithRaw(
			domain.WrapError(domain.ErrUpstreamEmptyResponse, "ollama generate", errors.New("empty response field")),
			gen.Raw,
		)
	}
	return gen, nil
}
