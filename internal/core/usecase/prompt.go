package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

var DefaultOutfitCategories = []string{"tops", "bottoms", "shoes"}

func buildOutfitPrompt(base domain.Product, catalog domain.Catalog, prefs domain.Preferences, categories []string) string {
	if len(categories) == 0 {
		categories = DefaultOutfitCategories
	}
	quoted := make([]string, 0, len(categories))
	for _, c := range categories {
		quoted = append(quoted, "'"+c+"'")
	}

	return fmt.Sprintf(`Your role: you are an expert fashion stylist. Your goal is to put together a complete, coherent outfit from a catalog.

Task: design a complete and harmonious outfit.

Base product (an item the customer already owns): %s

Available catalog: %s

Customer preferences: occasion: %s, style: %s

CRITICAL rules:
1. The outfit must be coherent. Every suggested item must go well with the others.
2. Select AT MOST ONE item from each of these categories: %s.
3. DO NOT include the base product (id %q) in your suggestions.
4. Respond ONLY with valid JSON, without any additional text or formatting. The JSON must have this shape: {"suggestions": ["product_id_1","product_id_2"]}`,
		compactJSON(base),
		compactJSON(catalog),
		prefs.Occasion,
		prefs.Style,
		strings.Join(quoted, ", "),
		base.ID,
	)
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "null"
	}
	return strings.TrimSpace(buf.String())
}
