package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(context.Background(), Config{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	var prompt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Contents) > 0 && len(payload.Contents[0].Parts) > 0 {
			prompt = payload.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Here: {\"suggestions\":[\"p2\",\"p3\"]}"}]},"finishReason":"STOP"}],"modelVersion":"gemini-test-001"}`))
	})

	gen, err := client.Generate(context.Background(), "build an outfit")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if prompt != "build an outfit" {
		t.Fatalf("prompt not forwarded, got %q", prompt)
	}
	if !strings.Contains(gen.Text, `"suggestions":["p2","p3"]`) {
		t.Fatalf("unexpected text %q", gen.Text)
	}
	if gen.Model != "gemini-test-001" || len(gen.Raw) == 0 {
		t.Fatalf("unexpected generation %+v", gen)
	}
}

func TestGenerateAPIErrorIsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := client.Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
}

func TestGenerateErrorPayloadWithOKStatusIsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := client.Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
	if domain.IsKind(err, domain.ErrUpstreamEmptyResponse) {
		t.Fatalf("error payload must not read as an empty response: %v", err)
	}
	raw, ok := domain.RawOf(err)
	if !ok || !strings.Contains(string(raw.(json.RawMessage)), "API key not valid") {
		t.Fatalf("expected error payload as raw, got %v", raw)
	}
}

func TestGenerateBlockedPromptIsEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := client.Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamEmptyResponse) {
		t.Fatalf("expected ErrUpstreamEmptyResponse, got %v", err)
	}
	raw, ok := domain.RawOf(err)
	if !ok || !strings.Contains(string(raw.(json.RawMessage)), "SAFETY") {
		t.Fatalf("expected upstream response as raw, got %v", raw)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
