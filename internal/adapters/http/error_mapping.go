package httpadapter

import (
	"net/http"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrBaseProductNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrCatalogMalformed):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrCatalogUnavailable),
		domain.IsKind(err, domain.ErrUpstreamUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpstreamRejected),
		domain.IsKind(err, domain.ErrUpstreamEmptyResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
