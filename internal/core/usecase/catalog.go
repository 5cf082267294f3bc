package usecase

import (
	"context"
	"fmt"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/core/ports"
)

type CatalogUseCase struct {
	provider ports.CatalogProvider
}

func NewCatalogUseCase(provider ports.CatalogProvider) *CatalogUseCase {
	return &CatalogUseCase{provider: provider}
}

func (uc *CatalogUseCase) Products(ctx context.Context) (domain.Catalog, error) {
	catalog, err := uc.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return catalog, nil
}

// Reload drops any cached copy and reads the source again so errors surface immediately.
func (uc *CatalogUseCase) Reload(ctx context.Context) error {
	if inv, ok := uc.provider.(ports.CatalogInvalidator); ok {
		inv.Invalidate()
	}
	if _, err := uc.provider.Load(ctx); err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}
	return nil
}
