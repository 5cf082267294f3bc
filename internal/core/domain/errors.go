package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrCatalogUnavailable    = errors.New("catalog unavailable")
	ErrCatalogMalformed      = errors.New("catalog malformed")
	ErrBaseProductNotFound   = errors.New("base product not found")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrUpstreamRejected      = errors.New("upstream rejected")
	ErrUpstreamEmptyResponse = errors.New("upstream empty response")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DiagnosticError carries the upstream payload that explains a failure.
type DiagnosticError struct {
	Err error
	Raw any
}

func (e *DiagnosticError) Error() string {
	if e == nil || e.Err == nil {
		return "diagnostic error"
	}
	return e.Err.Error()
}

func (e *DiagnosticError) Unwrap() error {
	return e.Err
}

func WithRaw(err error, raw any) error {
	if err == nil {
		return nil
	}
	return &DiagnosticError{Err: err, Raw: raw}
}

// RawOf returns the diagnostic payload attached anywhere in the chain.
func RawOf(err error) (any, bool) {
	var diag *DiagnosticError
	if errors.As(err, &diag) && diag.Raw != nil {
		return diag.Raw, true
	}
	return nil, false
}

// KindOf names the taxonomy entry of err for logs and metric labels.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsKind(err, ErrInvalidRequest):
		return "invalid_request"
	case IsKind(err, ErrUnauthorized):
		return "unauthorized"
	case IsKind(err, ErrCatalogUnavailable):
		return "catalog_unavailable"
	case IsKind(err, ErrCatalogMalformed):
		return "catalog_malformed"
	case IsKind(err, ErrBaseProductNotFound):
		return "base_product_not_found"
	case IsKind(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case IsKind(err, ErrUpstreamRejected):
		return "upstream_rejected"
	case IsKind(err, ErrUpstreamEmptyResponse):
		return "upstream_empty_response"
	default:
		return "internal"
	}
}
