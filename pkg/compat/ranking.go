package compat

import (
	"sort"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// Query weights when a selected item carries a color.
const (
	ItemWeight  = 0.7
	ColorWeight = 0.3
)

// CompatibleColorCount is how many colors are attached to each suggestion.
const CompatibleColorCount = 5

// ColorMatch is a color ranked against another color.
type ColorMatch struct {
	Color      string  `json:"color"`
	Similarity float64 `json:"similarity"`
}

// Suggestion is a ranked garment.
type Suggestion struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	Prompt           string       `json:"prompt"`
	BodyRegion       string       `json:"body_region"`
	Similarity       float64      `json:"similarity"`
	CompatibleColors []ColorMatch `json:"compatible_colors,omitempty"`
}

// CompatibleItemsResult groups suggestions by region, best first.
type CompatibleItemsResult struct {
	SelectedItem  types.SelectedItem      `json:"selected_item"`
	TargetRegions []string                `json:"target_regions,omitempty"`
	Suggestions   map[string][]Suggestion `json:"suggestions"`
}

// ColorCompatibilityResult groups garments that suit a color by region.
type ColorCompatibilityResult struct {
	Color         string                  `json:"color"`
	TargetRegions []string                `json:"target_regions,omitempty"`
	Suggestions   map[string][]Suggestion `json:"suggestions"`
}

// OutfitSuggestionsResult proposes garments for the slots an outfit lacks.
type OutfitSuggestionsResult struct {
	Complete       bool                    `json:"complete"`
	Message        string                  `json:"message,omitempty"`
	MissingRegions []string                `json:"missing_regions"`
	AnchorItem     *types.SelectedItem     `json:"anchor_item,omitempty"`
	Suggestions    map[string][]Suggestion `json:"suggestions"`
}

// CompatibleItems ranks catalog garments against the selected item, blended
// with its color when one is given. The selected garment itself is never
// returned. Empty targetRegions means all regions.
func (e *Engine) CompatibleItems(selected types.SelectedItem, targetRegions []string, topK int) (*CompatibleItemsResult, error) {
	emb, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	if err := validateTopK(topK); err != nil {
		return nil, err
	}

	idx, err := e.catalog.garmentIndex(selected.Prompt)
	if err != nil {
		return nil, err
	}

	query := emb.garments[idx]
	var colors []ColorMatch
	if selected.Color != "" {
		ci, err := e.catalog.colorIndex(selected.Color)
		if err != nil {
			return nil, err
		}
		query = blend(query, ItemWeight, emb.colors[ci], ColorWeight)
		colors = e.rankColors(emb, emb.colors[ci], ci, CompatibleColorCount)
	}

	return &CompatibleItemsResult{
		SelectedItem:  selected,
		TargetRegions: targetRegions,
		Suggestions:   e.rankGarments(emb, query, idx, targetRegions, topK, colors),
	}, nil
}

// ColorCompatibility ranks catalog garments against a color.
func (e *Engine) ColorCompatibility(color string, targetRegions []string, topK int) (*ColorCompatibilityResult, error) {
	emb, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	if err := validateTopK(topK); err != nil {
		return nil, err
	}

	ci, err := e.catalog.colorIndex(color)
	if err != nil {
		return nil, err
	}

	return &ColorCompatibilityResult{
		Color:         color,
		TargetRegions: targetRegions,
		Suggestions:   e.rankGarments(emb, emb.colors[ci], -1, targetRegions, topK, nil),
	}, nil
}

// OutfitSuggestions finds the outfit slots not covered by selected and, if
// any, suggests garments for them anchored on the most confident selection.
func (e *Engine) OutfitSuggestions(selected []types.SelectedItem, topK int) (*OutfitSuggestionsResult, error) {
	if _, err := e.snapshot(); err != nil {
		return nil, err
	}
	if err := validateTopK(topK); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "at least one selected item is required")
	}

	covered := map[string]bool{}
	for _, item := range selected {
		covered[item.BodyRegion] = true
	}
	missing := make([]string, 0, len(OutfitSlots))
	for _, slot := range OutfitSlots {
		if !covered[slot] {
			missing = append(missing, slot)
		}
	}
	if len(missing) == 0 {
		return &OutfitSuggestionsResult{
			Complete:       true,
			Message:        "Outfit is complete",
			MissingRegions: missing,
			Suggestions:    map[string][]Suggestion{},
		}, nil
	}

	anchor := selected[0]
	for _, item := range selected[1:] {
		if item.Probability > anchor.Probability {
			anchor = item
		}
	}

	res, err := e.CompatibleItems(anchor, missing, topK)
	if err != nil {
		return nil, err
	}
	return &OutfitSuggestionsResult{
		MissingRegions: missing,
		AnchorItem:     &anchor,
		Suggestions:    res.Suggestions,
	}, nil
}

func (e *Engine) rankGarments(emb *embeddings, query []float32, exclude int, targetRegions []string, topK int, colors []ColorMatch) map[string][]Suggestion {
	allowed := make(map[string]bool, len(targetRegions))
	for _, r := range targetRegions {
		allowed[r] = true
	}

	groups := map[string][]Suggestion{}
	for i, g := range e.catalog.garments {
		if i == exclude {
			continue
		}
		if len(allowed) > 0 && !allowed[g.BodyRegion] {
			continue
		}
		groups[g.BodyRegion] = append(groups[g.BodyRegion], Suggestion{
			ID:               g.ID,
			Name:             g.Name,
			Prompt:           g.Prompt,
			BodyRegion:       g.BodyRegion,
			Similarity:       cosine(query, emb.garments[i]),
			CompatibleColors: colors,
		})
	}

	for region, list := range groups {
		sort.SliceStable(list, func(a, b int) bool {
			return list[a].Similarity > list[b].Similarity
		})
		if len(list) > topK {
			list = list[:topK]
		}
		groups[region] = list
	}
	return groups
}

func (e *Engine) rankColors(emb *embeddings, query []float32, exclude, n int) []ColorMatch {
	out := make([]ColorMatch, 0, len(emb.colors))
	for i, c := range e.catalog.colors {
		if i == exclude {
			continue
		}
		out = append(out, ColorMatch{Color: c.Name, Similarity: cosine(query, emb.colors[i])})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Similarity > out[b].Similarity
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func validateTopK(topK int) error {
	if topK <= 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "top_k must be positive, got %d", topK).
			WithDetail("top_k", topK)
	}
	return nil
}
