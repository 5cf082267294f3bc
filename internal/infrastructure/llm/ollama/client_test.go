package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
)

func TestGenerateSendsPromptAndReturnsText(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","response":" {\"suggestions\":[\"p2\"]} ","done":true}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llama3.1:8b", Options{Executor: resilience.NewExecutor(resilience.DefaultConfig())})
	gen, err := client.Generate(context.Background(), "style this")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gen.Text != `{"suggestions":["p2"]}` {
		t.Fatalf("unexpected text %q", gen.Text)
	}
	if gen.Model != "llama3.1:8b" || !strings.Contains(string(gen.Raw), `"done":true`) {
		t.Fatalf("unexpected generation %+v", gen)
	}
	if payload["prompt"] != "style this" || payload["stream"] != false || payload["format"] != "json" {
		t.Fatalf("unexpected request payload %v", payload)
	}
}

func TestGenerateStatusErrorIsRejectedWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "nope", Options{}).Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestGenerateErrorPayloadIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "gen", Options{}).Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamRejected) {
		t.Fatalf("expected ErrUpstreamRejected, got %v", err)
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"gen","response":"","done":true}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "gen", Options{}).Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamEmptyResponse) {
		t.Fatalf("expected ErrUpstreamEmptyResponse, got %v", err)
	}
	if _, ok := domain.RawOf(err); !ok {
		t.Fatalf("expected raw upstream response on empty reply")
	}
}

func TestGenerateTransportErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, "gen", Options{}).Generate(context.Background(), "p")
	if !domain.IsKind(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
