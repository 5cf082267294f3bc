package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

type catalogFake struct {
	catalog domain.Catalog
	err     error
	loads   int
}

func (f *catalogFake) Load(context.Context) (domain.Catalog, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

type generatorFake struct {
	text   string
	raw    json.RawMessage
	err    error
	calls  int
	prompt string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (domain.Generation, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return domain.Generation{}, f.err
	}
	return domain.Generation{Text: f.text, Raw: f.raw, Model: "fake-model"}, nil
}

func (f *generatorFake) Name() string { return "fake" }

type eventsFake struct {
	events []domain.OutfitEvent
	err    error
}

func (f *eventsFake) PublishOutfitRecommended(_ context.Context, event domain.OutfitEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	statuses []string
	upstream []string
}

func (f *observerFake) ObserveRecommendation(mode, status string, _ int) {
	f.statuses = append(f.statuses, mode+":"+status)
}

func (f *observerFake) ObserveUpstream(provider, status string, _ float64) {
	f.upstream = append(f.upstream, provider+":"+status)
}

func testCatalog() domain.Catalog {
	return domain.Catalog{
		{ID: "p1", Name: "Denim jacket", Category: "tops", Colors: []string{"blue"}, Image: "img/p1.jpg"},
		{ID: "p2", Name: "Black jeans", Category: "bottoms", Colors: []string{"black"}, Image: "img/p2.jpg"},
		{ID: "p3", Name: "White sneakers", Category: "shoes", Colors: []string{"white"}, Image: "img/p3.jpg"},
		{ID: "p4", Name: "Linen shirt", Category: "tops", Colors: []string{"beige"}, Image: "img/p4.jpg"},
	}
}

func suggestionIDs(outfit *domain.Outfit) []string {
	ids := make([]string, 0, len(outfit.Suggestions))
	for _, p := range outfit.Suggestions {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestRecommendResolvesSuggestionsInCatalogOrder(t *testing.T) {
	gen := &generatorFake{
		text: `Sure! {"suggestions":["p3","p2","p3","ghost"]}`,
		raw:  json.RawMessage(`{"candidates":[]}`),
	}
	obs := &observerFake{}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, nil, obs, RecommendOptions{})

	outfit, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p1"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if outfit.BaseProduct.ID != "p1" {
		t.Fatalf("expected base p1, got %s", outfit.BaseProduct.ID)
	}
	got := strings.Join(suggestionIDs(outfit), ",")
	if got != "p2,p3" {
		t.Fatalf("expected catalog-ordered unique suggestions p2,p3, got %s", got)
	}
	if outfit.Raw["model_output"] != gen.text {
		t.Fatalf("expected model output in raw, got %v", outfit.Raw["model_output"])
	}
	if outfit.Mock {
		t.Fatalf("model outfit must not be tagged as mock")
	}
	if len(obs.statuses) != 1 || obs.statuses[0] != "model:ok" {
		t.Fatalf("unexpected observations: %v", obs.statuses)
	}
	if len(obs.upstream) != 1 || obs.upstream[0] != "fake:ok" {
		t.Fatalf("unexpected upstream observations: %v", obs.upstream)
	}
}

func TestRecommendNeverSuggestsBaseProduct(t *testing.T) {
	gen := &generatorFake{text: `{"suggestions":["p1","p4"]}`}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, nil, nil, RecommendOptions{})

	outfit, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p1"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, p := range outfit.Suggestions {
		if p.ID == "p1" {
			t.Fatalf("base product leaked into suggestions: %v", suggestionIDs(outfit))
		}
	}
	if len(outfit.Suggestions) != 1 || outfit.Suggestions[0].ID != "p4" {
		t.Fatalf("expected only p4, got %v", suggestionIDs(outfit))
	}
}

func TestRecommendDegradesUnparseableOutputToEmptyList(t *testing.T) {
	gen := &generatorFake{text: "I would pair it with something nice."}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, nil, nil, RecommendOptions{})

	outfit, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p2"})
	if err != nil {
		t.Fatalf("expected soft degrade, got %v", err)
	}
	if outfit.Suggestions == nil || len(outfit.Suggestions) != 0 {
		t.Fatalf("expected empty non-nil suggestions, got %#v", outfit.Suggestions)
	}
}

func TestRecommendRejectsEmptyBaseID(t *testing.T) {
	catalog := &catalogFake{catalog: testCatalog()}
	gen := &generatorFake{}
	uc := NewRecommendUseCase(catalog, gen, nil, nil, RecommendOptions{})

	_, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "   "})
	if !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if catalog.loads != 0 || gen.calls != 0 {
		t.Fatalf("expected no catalog load or upstream call, got loads=%d calls=%d", catalog.loads, gen.calls)
	}
}

func TestRecommendUnknownBaseSkipsUpstream(t *testing.T) {
	gen := &generatorFake{text: `{"suggestions":["p2"]}`}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, nil, nil, RecommendOptions{})

	_, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "missing"})
	if !domain.IsKind(err, domain.ErrBaseProductNotFound) {
		t.Fatalf("expected ErrBaseProductNotFound, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no upstream call, got %d", gen.calls)
	}
}

func TestRecommendPropagatesCatalogErrors(t *testing.T) {
	for _, kind := range []error{domain.ErrCatalogUnavailable, domain.ErrCatalogMalformed} {
		gen := &generatorFake{}
		catalog := &catalogFake{err: domain.WrapError(kind, "load", errors.New("boom"))}
		uc := NewRecommendUseCase(catalog, gen, nil, nil, RecommendOptions{})

		outfit, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p1"})
		if !domain.IsKind(err, kind) {
			t.Fatalf("expected %v, got %v", kind, err)
		}
		if outfit != nil {
			t.Fatalf("expected no partial response, got %+v", outfit)
		}
		if gen.calls != 0 {
			t.Fatalf("expected no upstream call")
		}
	}
}

func TestRecommendMockModeSkipsUpstream(t *testing.T) {
	cases := []struct {
		name string
		gen  *generatorFake
		req  domain.OutfitRequest
		opts RecommendOptions
	}{
		{name: "bypass signal", gen: &generatorFake{}, req: domain.OutfitRequest{BaseProductID: "p2", Mock: true}},
		{name: "forced", gen: &generatorFake{}, req: domain.OutfitRequest{BaseProductID: "p2"}, opts: RecommendOptions{ForceMock: true}},
		{name: "no generator", req: domain.OutfitRequest{BaseProductID: "p2"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var uc *RecommendUseCase
			if tc.gen != nil {
				uc = NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, tc.gen, nil, nil, tc.opts)
			} else {
				uc = NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, nil, nil, nil, tc.opts)
			}

			outfit, err := uc.Recommend(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if got := strings.Join(suggestionIDs(outfit), ","); got != "p1,p3,p4" {
				t.Fatalf("expected every product but the base, got %s", got)
			}
			if !outfit.Mock || outfit.Raw["mode"] != "mock" {
				t.Fatalf("expected mock tag, got mock=%v raw=%v", outfit.Mock, outfit.Raw)
			}
			if tc.gen != nil && tc.gen.calls != 0 {
				t.Fatalf("expected no upstream call, got %d", tc.gen.calls)
			}
		})
	}
}

func TestRecommendClassifiesUpstreamFailures(t *testing.T) {
	rejected := domain.WrapError(domain.ErrUpstreamRejected, "gemini generate", errors.New("400 bad key"))
	cases := []struct {
		name string
		gen  *generatorFake
		want error
	}{
		{name: "rejected passes through", gen: &generatorFake{err: rejected}, want: domain.ErrUpstreamRejected},
		{name: "unclassified becomes unavailable", gen: &generatorFake{err: errors.New("dial tcp: refused")}, want: domain.ErrUpstreamUnavailable},
		{name: "blank text is empty response", gen: &generatorFake{text: "  ", raw: json.RawMessage(`{"promptFeedback":{"blockReason":"SAFETY"}}`)}, want: domain.ErrUpstreamEmptyResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, tc.gen, nil, nil, RecommendOptions{})
			_, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p1"})
			if !domain.IsKind(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecommendEmptyResponseCarriesRaw(t *testing.T) {
	gen := &generatorFake{text: "", raw: json.RawMessage(`{"candidates":[]}`)}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, nil, nil, RecommendOptions{})

	_, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p1"})
	raw, ok := domain.RawOf(err)
	if !ok {
		t.Fatalf("expected raw payload on %v", err)
	}
	if string(raw.(json.RawMessage)) != `{"candidates":[]}` {
		t.Fatalf("unexpected raw payload: %v", raw)
	}
}

func TestRecommendPromptCarriesConstraints(t *testing.T) {
	gen := &generatorFake{text: `{"suggestions":[]}`}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, nil, nil, RecommendOptions{
		Categories: []string{"tops", "bottoms", "shoes", "accessories"},
	})

	_, err := uc.Recommend(context.Background(), domain.OutfitRequest{
		BaseProductID: "p1",
		Preferences:   domain.Preferences{Occasion: "wedding"},
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	for _, want := range []string{
		"expert fashion stylist",
		`"id":"p1"`,
		"White sneakers",
		"occasion: wedding, style: any",
		"'tops', 'bottoms', 'shoes', 'accessories'",
		`DO NOT include the base product (id "p1")`,
		`{"suggestions": ["product_id_1","product_id_2"]}`,
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestRecommendPublishesEventAndIgnoresPublishFailure(t *testing.T) {
	events := &eventsFake{err: errors.New("nats down")}
	gen := &generatorFake{text: `{"suggestions":["p2","p3"]}`}
	uc := NewRecommendUseCase(&catalogFake{catalog: testCatalog()}, gen, events, nil, RecommendOptions{})

	outfit, err := uc.Recommend(context.Background(), domain.OutfitRequest{BaseProductID: "p1", RequestID: "req-1"})
	if err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if len(outfit.Suggestions) != 2 {
		t.Fatalf("expected two suggestions, got %v", suggestionIDs(outfit))
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(events.events))
	}
	ev := events.events[0]
	if ev.RequestID != "req-1" || ev.BaseProductID != "p1" || strings.Join(ev.SuggestionIDs, ",") != "p2,p3" || ev.Model != "fake-model" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
