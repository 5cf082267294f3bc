package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

type relayInfoContextKey struct{}

// relayInfo travels with a request so the access log can report what the relay decided,
// including failures that errors-as-200 hides behind a 200 status.
type relayInfo struct {
	requestID   string
	mock        bool
	errorKind   string
	errorStatus int
}

func relayInfoFromContext(ctx context.Context) *relayInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(relayInfoContextKey{}).(*relayInfo)
	return info
}

func requestIDFromContext(ctx context.Context) string {
	if info := relayInfoFromContext(ctx); info != nil {
		return info.requestID
	}
	return ""
}

// recordFailure notes the domain kind and mapped status of a failed request.
func recordFailure(ctx context.Context, kind string, status int) {
	if info := relayInfoFromContext(ctx); info != nil {
		info.errorKind = kind
		info.errorStatus = status
	}
}

// acceptRequestID keeps a caller-supplied id only when it is short and made of token characters.
func acceptRequestID(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxRequestIDLen {
		return "", false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return "", false
		}
	}
	return value, true
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, ok := acceptRequestID(r.Header.Get(requestIDHeader))
		if !ok {
			requestID = uuid.NewString()
		}
		info := &relayInfo{
			requestID: requestID,
			mock:      isMockRequested(r.Header.Get(mockHeader)),
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), relayInfoContextKey{}, info)))
	})
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}
		logAttrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
			"remote_addr", remoteAddr,
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			logAttrs = append(logAttrs, "origin", origin)
		}

		// effective is the status the failure maps to, even when it was answered as 200.
		effective := recorder.statusCode
		if info := relayInfoFromContext(r.Context()); info != nil {
			logAttrs = append(logAttrs, "request_id", info.requestID)
			if info.mock {
				logAttrs = append(logAttrs, "mock", true)
			}
			if info.errorKind != "" {
				logAttrs = append(logAttrs, "error_kind", info.errorKind, "error_status", info.errorStatus)
				effective = info.errorStatus
			}
		}

		switch {
		case effective >= 500:
			slog.Error("http_request", logAttrs...)
		case effective >= 400:
			slog.Warn("http_request", logAttrs...)
		default:
			slog.Info("http_request", logAttrs...)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}
