package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/core/ports"
)

const (
	modeModel = "model"
	modeMock  = "mock"
)

type RecommendOptions struct {
	Categories []string
	// ForceMock answers every request locally, as if the bypass signal were always set.
	ForceMock bool
}

type RecommendUseCase struct {
	catalog   ports.CatalogProvider
	generator ports.TextGenerator
	events    ports.OutfitEventPublisher
	observer  ports.RecommendationObserver
	opts      RecommendOptions
	now       func() time.Time
}

// NewRecommendUseCase wires the relay. A nil generator puts the relay in mock mode;
// events and observer are optional.
func NewRecommendUseCase(
	catalog ports.CatalogProvider,
	generator ports.TextGenerator,
	events ports.OutfitEventPublisher,
	observer ports.RecommendationObserver,
	opts RecommendOptions,
) *RecommendUseCase {
	if len(opts.Categories) == 0 {
		opts.Categories = DefaultOutfitCategories
	}
	return &RecommendUseCase{
		catalog:   catalog,
		generator: generator,
		events:    events,
		observer:  observer,
		opts:      opts,
		now:       time.Now,
	}
}

func (uc *RecommendUseCase) Recommend(ctx context.Context, req domain.OutfitRequest) (*domain.Outfit, error) {
	mode := modeModel
	if uc.mockMode(req) {
		mode = modeMock
	}

	outfit, err := uc.recommend(ctx, req, mode)
	if uc.observer != nil {
		count := 0
		if outfit != nil {
			count = len(outfit.Suggestions)
		}
		uc.observer.ObserveRecommendation(mode, domain.KindOf(err), count)
	}
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, req, outfit)
	return outfit, nil
}

func (uc *RecommendUseCase) recommend(ctx context.Context, req domain.OutfitRequest, mode string) (*domain.Outfit, error) {
	baseID := strings.TrimSpace(req.BaseProductID)
	if baseID == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "recommend", errors.New("baseProductId is required"))
	}

	catalog, err := uc.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	base, ok := catalog.Find(baseID)
	if !ok {
		return nil, domain.WrapError(domain.ErrBaseProductNotFound, "recommend", fmt.Errorf("id=%s", baseID))
	}

	if mode == modeMock {
		return &domain.Outfit{
			BaseProduct: base,
			Suggestions: catalog.Without(base.ID),
			Raw:         map[string]any{"mode": modeMock},
			Mock:        true,
		}, nil
	}

	gen, err := uc.generate(ctx, buildOutfitPrompt(base, catalog, req.Preferences.Normalized(), uc.opts.Categories))
	if err != nil {
		return nil, err
	}

	obj, _ := ExtractJSONObject(gen.Text)
	return &domain.Outfit{
		BaseProduct: base,
		Suggestions: catalog.Select(SuggestionIDs(obj), base.ID),
		Raw: map[string]any{
			"model_output":  gen.Text,
			"full_response": gen.Raw,
			"model":         gen.Model,
		},
	}, nil
}

func (uc *RecommendUseCase) generate(ctx context.Context, prompt string) (domain.Generation, error) {
	start := uc.now()
	gen, err := uc.generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(gen.Text) == "" {
		err = domain.WithRaw(
			domain.WrapError(domain.ErrUpstreamEmptyResponse, "generate", errors.New("model returned no text")),
			gen.Raw,
		)
	}
	if err != nil && !isUpstreamKind(err) {
		err = domain.WrapError(domain.ErrUpstreamUnavailable, "generate", err)
	}

	if uc.observer != nil {
		uc.observer.ObserveUpstream(uc.generator.Name(), domain.KindOf(err), uc.now().Sub(start).Seconds())
	}
	if err != nil {
		return domain.Generation{}, err
	}
	return gen, nil
}

func (uc *RecommendUseCase) mockMode(req domain.OutfitRequest) bool {
	return req.Mock || uc.opts.ForceMock || uc.generator == nil
}

func (uc *RecommendUseCase) publish(ctx context.Context, req domain.OutfitRequest, outfit *domain.Outfit) {
	if uc.events == nil {
		return
	}

	ids := make([]string, 0, len(outfit.Suggestions))
	for _, p := range outfit.Suggestions {
		ids = append(ids, p.ID)
	}
	model, _ := outfit.Raw["model"].(string)

	event := domain.OutfitEvent{
		RequestID:     req.RequestID,
		BaseProductID: outfit.BaseProduct.ID,
		SuggestionIDs: ids,
		Mock:          outfit.Mock,
		Model:         model,
		CreatedAt:     uc.now().UTC(),
	}
	if err := uc.events.PublishOutfitRecommended(ctx, event); err != nil {
		slog.Warn("outfit_event_publish_failed",
			"request_id", req.RequestID,
			"base_product_id", outfit.BaseProduct.ID,
			"error", err,
		)
	}
}

func isUpstreamKind(err error) bool {
	return domain.IsKind(err, domain.ErrUpstreamUnavailable) ||
		domain.IsKind(err, domain.ErrUpstreamRejected) ||
		domain.IsKind(err, domain.ErrUpstreamEmptyResponse)
}
