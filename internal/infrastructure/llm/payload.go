package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

type payloadCaptureKey struct{}

// PayloadCapture remembers a 2xx reply whose body is an error object.
// SDKs decode such bodies into empty responses, so the check happens on the wire.
type PayloadCapture struct {
	mu      sync.Mutex
	body    json.RawMessage
	message string
}

func WithPayloadCapture(ctx context.Context) (context.Context, *PayloadCapture) {
	capture := &PayloadCapture{}
	return context.WithValue(ctx, payloadCaptureKey{}, capture), capture
}

func (c *PayloadCapture) record(body []byte, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = append(json.RawMessage(nil), body...)
	c.message = message
}

// Err returns an ErrErrorPayload failure carrying the reply as raw, or nil when the reply was clean.
func (c *PayloadCapture) Err(operation string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.body == nil {
		return nil
	}
	return domain.WithRaw(fmt.Errorf("%s: %w: %s", operation, ErrErrorPayload, c.message), c.body)
}

// ErrorPayloadTransport inspects successful replies for a top-level "error" member
// when the request context carries a PayloadCapture.
type ErrorPayloadTransport struct {
	Base http.RoundTripper
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &ErrorPayloadTransport{},
	}
}

func (t *ErrorPayloadTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, err
	}
	capture, _ := req.Context().Value(payloadCaptureKey{}).(*PayloadCapture)
	if capture == nil {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if message, ok := ErrorPayloadMessage(body); ok {
		capture.record(body, message)
	}
	return resp, nil
}

// ErrorPayloadMessage reports whether body is a JSON object with a non-null "error" member.
func ErrorPayloadMessage(body []byte) (string, bool) {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false
	}
	raw := bytes.TrimSpace(envelope.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), true
	}
	var detail struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil {
		switch {
		case strings.TrimSpace(detail.Message) != "":
			return strings.TrimSpace(detail.Message), true
		case detail.Status != "":
			return detail.Status, true
		}
	}
	return "unknown upstream error", true
}
