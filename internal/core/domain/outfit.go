package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const AnyPreference = "any"

type Preferences struct {
	Occasion string `json:"occasion,omitempty"`
	Style    string `json:"style,omitempty"`
}

func (p Preferences) Normalized() Preferences {
	out := Preferences{
		Occasion: strings.TrimSpace(p.Occasion),
		Style:    strings.TrimSpace(p.Style),
	}
	if out.Occasion == "" {
		out.Occasion = AnyPreference
	}
	if out.Style == "" {
		out.Style = AnyPreference
	}
	return out
}

type OutfitRequest struct {
	BaseProductID string      `json:"baseProductId"`
	Preferences   Preferences `json:"preferences"`
	// Mock skips the model call; set from the bypass header, never from the body.
	Mock      bool   `json:"-"`
	RequestID string `json:"-"`
}

type Outfit struct {
	BaseProduct Product        `json:"baseProduct"`
	Suggestions []Product      `json:"suggestions"`
	Raw         map[string]any `json:"raw"`
	Mock        bool           `json:"-"`
}

// Generation is what a text provider returned for one prompt.
type Generation struct {
	Text  string
	Raw   json.RawMessage
	Model string
}

type OutfitEvent struct {
	RequestID     string    `json:"request_id,omitempty"`
	BaseProductID string    `json:"base_product_id"`
	SuggestionIDs []string  `json:"suggestion_ids"`
	Mock          bool      `json:"mock"`
	Model         string    `json:"model,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
