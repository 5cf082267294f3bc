package ports

import (
	"context"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

// CatalogProvider loads the product catalog from its source.
type CatalogProvider interface {
	Load(ctx context.Context) (domain.Catalog, error)
}

// CatalogInvalidator is implemented by providers that cache the catalog.
type CatalogInvalidator interface {
	Invalidate()
}

// TextGenerator turns a prompt into model text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (domain.Generation, error)
	Name() string
}

// OutfitEventPublisher announces completed recommendations.
type OutfitEventPublisher interface {
	PublishOutfitRecommended(ctx context.Context, event domain.OutfitEvent) error
}

// RecommendationObserver receives per-request relay measurements.
type RecommendationObserver interface {
	ObserveRecommendation(mode, status string, suggestions int)
	ObserveUpstream(provider, status string, seconds float64)
}
