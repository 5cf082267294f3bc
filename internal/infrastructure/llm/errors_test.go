package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

func TestToDomainMapsFailureKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "status", err: &HTTPStatusError{Provider: "ollama", Operation: "generate", StatusCode: 404, Status: "404 Not Found"}, want: domain.ErrUpstreamRejected},
		{name: "payload", err: fmt.Errorf("decode: %w", ErrErrorPayload), want: domain.ErrUpstreamRejected},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: domain.ErrUpstreamUnavailable},
		{name: "circuit", err: gobreaker.ErrOpenState, want: domain.ErrUpstreamUnavailable},
		{name: "canceled", err: context.Canceled, want: domain.ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToDomain("op", tc.err); !domain.IsKind(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if ToDomain("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestClassifyStatusCodes(t *testing.T) {
	retry := Classify(&HTTPStatusError{StatusCode: http.StatusServiceUnavailable})
	if !retry.Retryable || !retry.RecordFailure {
		t.Fatalf("503 should be retryable and recorded, got %+v", retry)
	}
	perm := Classify(&HTTPStatusError{StatusCode: http.StatusUnauthorized})
	if perm.Retryable || perm.RecordFailure {
		t.Fatalf("401 should be neither retried nor recorded, got %+v", perm)
	}
	if c := Classify(context.DeadlineExceeded); c.Retryable || c.RecordFailure {
		t.Fatalf("deadline should not count, got %+v", c)
	}
}

func TestHTTPStatusErrorMessageIncludesBody(t *testing.T) {
	err := &HTTPStatusError{Provider: "ollama", Operation: "generate", Status: "502 Bad Gateway", Body: " model unavailable \n"}
	if err.Error() != "ollama generate status: 502 Bad Gateway: model unavailable" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
