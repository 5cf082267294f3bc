package ports

import (
	"context"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

// OutfitRecommender is the inbound contract for building an outfit around a base product.
type OutfitRecommender interface {
	Recommend(ctx context.Context, req domain.OutfitRequest) (*domain.Outfit, error)
}

// CatalogReader is the inbound read model for the product catalog.
type CatalogReader interface {
	Products(ctx context.Context) (domain.Catalog, error)
	Reload(ctx context.Context) error
}
