package compat

import (
	"fmt"
	"sort"

	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// Level is a qualitative compatibility band.
type Level string

const (
	Excellent Level = "Excellent"
	Good      Level = "Good"
	Regular   Level = "Regular"
	Low       Level = "Low"
)

// Band thresholds, inclusive lower bounds.
const (
	ExcellentThreshold = 0.8
	GoodThreshold      = 0.6
	RegularThreshold   = 0.4
)

// ContextualThreshold is the similarity a contextual candidate must exceed.
const ContextualThreshold = 0.5

// MaxSuggestions caps the merged outfit suggestion list.
const MaxSuggestions = 3

const maxContextual = 2

// alternatives for the single missing slot of a two-piece outfit
var slotAlternatives = map[string][]string{
	RegionTorso: {"blouse", "sweater"},
	RegionLegs:  {"pants", "skirt"},
	RegionFeet:  {"shoes", "boots", "sandals"},
}

var (
	formalIndicators  = []string{"suit", "coat", "shoes"}
	formalAccessories = []string{"belt", "hat", "scarf"}
	casualAccessories = []string{"bag", "cap", "backpack"}
)

var levelDescriptions = map[Level]string{
	Excellent: "The pieces combine very well",
	Good:      "The pieces work well together",
	Regular:   "The combination is acceptable but could be improved",
	Low:       "The pieces clash, other combinations may work better",
}

// LevelOf maps a similarity to its band.
func LevelOf(score float64) Level {
	switch {
	case score >= ExcellentThreshold:
		return Excellent
	case score >= GoodThreshold:
		return Good
	case score >= RegularThreshold:
		return Regular
	default:
		return Low
	}
}

// Description returns the human readable text of a band.
func (l Level) Description() string {
	return levelDescriptions[l]
}

// PairScore is the compatibility of two detected regions.
type PairScore struct {
	Part1      string  `json:"part1"`
	Part2      string  `json:"part2"`
	Item1      string  `json:"item1"`
	Item2      string  `json:"item2"`
	Similarity float64 `json:"similarity"`
	Level      Level   `json:"compatibility_level"`
}

// OutfitCompatibility scores a whole outfit.
type OutfitCompatibility struct {
	Pairwise    map[string]PairScore `json:"pairwise_compatibility"`
	Pairs       []string             `json:"pair_order"`
	Score       float64              `json:"compatibility_score"`
	Rating      Level                `json:"outfit_rating,omitempty"`
	Description string               `json:"rating_description,omitempty"`
	Message     string               `json:"message,omitempty"`
	Suggestions []string             `json:"suggestions"`
}

// PairwiseOutfitScore compares the top prediction of every pair of detected
// outfit slots. Pairs below RegularThreshold are flagged first in the
// suggestions, followed by contextual suggestions, up to MaxSuggestions.
func (e *Engine) PairwiseOutfitScore(parts map[string]types.ClassifiedPart) (*OutfitCompatibility, error) {
	emb, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	var slots []string
	vecs := map[string][]float32{}
	for _, slot := range OutfitSlots {
		part, ok := parts[slot]
		if !ok {
			continue
		}
		idx, err := e.catalog.garmentIndex(part.TopPrediction.Prompt)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
		vecs[slot] = emb.garments[idx]
	}

	res := &OutfitCompatibility{
		Pairwise:    map[string]PairScore{},
		Pairs:       []string{},
		Suggestions: []string{},
	}
	if len(slots) < 2 {
		res.Message = "At least two clothing pieces are needed to evaluate compatibility"
		return res, nil
	}

	var flagged []string
	var total float64
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			sim := cosine(vecs[a], vecs[b])
			key := a + "_" + b
			pair := PairScore{
				Part1:      a,
				Part2:      b,
				Item1:      parts[a].TopPrediction.Prompt,
				Item2:      parts[b].TopPrediction.Prompt,
				Similarity: sim,
				Level:      LevelOf(sim),
			}
			res.Pairwise[key] = pair
			res.Pairs = append(res.Pairs, key)
			total += sim
			if sim < RegularThreshold {
				flagged = append(flagged, fmt.Sprintf("Consider replacing the %s or the %s for better harmony", pair.Item1, pair.Item2))
			}
		}
	}

	res.Score = total / float64(len(res.Pairs))
	res.Rating = LevelOf(res.Score)
	res.Description = res.Rating.Description()

	contextual, err := e.contextual(emb, parts)
	if err != nil {
		return nil, err
	}
	res.Suggestions = mergeSuggestions(flagged, contextual)
	return res, nil
}

// ContextualSuggestions proposes what to add to the detected parts.
func (e *Engine) ContextualSuggestions(parts map[string]types.ClassifiedPart) ([]string, error) {
	emb, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	return e.contextual(emb, parts)
}

func (e *Engine) contextual(emb *embeddings, parts map[string]types.ClassifiedPart) ([]string, error) {
	present := map[string]bool{}
	var filled []string
	for _, slot := range OutfitSlots {
		if _, ok := parts[slot]; ok {
			filled = append(filled, slot)
		}
	}

	// deterministic iteration over the map
	regions := make([]string, 0, len(parts))
	for r := range parts {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	vecs := make([][]float32, 0, len(parts))
	for _, r := range regions {
		prompt := parts[r].TopPrediction.Prompt
		idx, err := e.catalog.garmentIndex(prompt)
		if err != nil {
			return nil, err
		}
		present[prompt] = true
		vecs = append(vecs, emb.garments[idx])
	}

	var candidates []string
	var render func(string) string
	switch {
	case len(filled) == 2:
		for _, slot := range OutfitSlots {
			if _, ok := parts[slot]; !ok {
				candidates = slotAlternatives[slot]
			}
		}
		render = func(p string) string { return fmt.Sprintf("Try adding %s to complete the outfit", p) }
	case len(parts) >= 3:
		candidates = casualAccessories
		for _, f := range formalIndicators {
			if present[f] {
				candidates = formalAccessories
				break
			}
		}
		render = func(p string) string { return fmt.Sprintf("A %s would complement this look", p) }
	}

	var out []string
	if len(candidates) > 0 && len(vecs) > 0 {
		centroid := mean(vecs)
		type scored struct {
			prompt string
			sim    float64
		}
		var hits []scored
		for _, c := range candidates {
			idx, err := e.catalog.garmentIndex(c)
			if err != nil {
				continue
			}
			if sim := cosine(centroid, emb.garments[idx]); sim > ContextualThreshold {
				hits = append(hits, scored{c, sim})
			}
		}
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].sim > hits[b].sim })
		for i := 0; i < len(hits) && i < maxContextual; i++ {
			out = append(out, render(hits[i].prompt))
		}
	}

	if len(out) == 0 {
		switch {
		case len(parts) == 2:
			out = append(out, "Add one more piece to complete the outfit")
		case len(parts) >= 3:
			out = append(out, "The outfit is complete, accessories can add personality")
		}
	}
	return out, nil
}

func mergeSuggestions(flagged, contextual []string) []string {
	out := make([]string, 0, MaxSuggestions)
	for _, s := range append(append([]string{}, flagged...), contextual...) {
		if len(out) == MaxSuggestions {
			break
		}
		out = append(out, s)
	}
	return out
}
