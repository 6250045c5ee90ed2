package analyzer

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/luizh3/fashion-extractor-api/pkg/compat"
	"github.com/luizh3/fashion-extractor-api/pkg/processing"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// MinColorConfidence is the model probability below which the pixel based
// color estimate is used instead.
const MinColorConfidence = 0.2

// ColorAlternatives is how many runner-up colors are reported.
const ColorAlternatives = 2

// Classification is the ranked catalog labels for one crop
type Classification struct {
	Predictions   []types.Prediction `json:"predictions"`
	TopPrediction types.Prediction   `json:"top_prediction"`
}

// Classify scores a crop against every catalog garment prompt. Predictions
// are sorted by probability, ties keep catalog order.
func (a *Analyzer) Classify(ctx context.Context, crop image.Image) (*Classification, error) {
	garments := a.deps.Engine.Catalog().Garments()
	prompts := make([]string, len(garments))
	for i, g := range garments {
		prompts[i] = g.Prompt
	}

	probs, err := a.deps.Model.JointSimilarity(ctx, crop, prompts)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(probs) != len(garments) {
		return nil, fmt.Errorf("classify: got %d scores for %d labels", len(probs), len(garments))
	}

	preds := make([]types.Prediction, len(garments))
	for i, g := range garments {
		preds[i] = types.Prediction{
			Category:    g.ID,
			Name:        g.Name,
			Prompt:      g.Prompt,
			BodyRegion:  g.BodyRegion,
			Probability: probs[i],
			Percentage:  formatPercentage(probs[i]),
		}
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Probability > preds[j].Probability })

	return &Classification{Predictions: preds, TopPrediction: preds[0]}, nil
}

// DetectColor names the dominant color of a crop. The embedding model is
// asked first; the CIE Lab nearest catalog color is used when the model
// fails or is unsure.
func (a *Analyzer) DetectColor(ctx context.Context, crop image.Image) (*types.ColorAnalysis, error) {
	colors := a.deps.Engine.Catalog().Colors()

	texts := make([]string, len(colors))
	for i, c := range colors {
		texts[i] = fmt.Sprintf("a %s garment", c.Name)
	}

	probs, err := a.deps.Model.JointSimilarity(ctx, crop, texts)
	if err == nil && len(probs) == len(colors) {
		scores := make([]types.ColorScore, len(colors))
		for i, c := range colors {
			scores[i] = types.ColorScore{Color: c.Name, Confidence: probs[i]}
		}
		sort.SliceStable(scores, func(i, j int) bool { return scores[i].Confidence > scores[j].Confidence })
		if scores[0].Confidence >= MinColorConfidence {
			return &types.ColorAnalysis{
				PrimaryColor: scores[0].Color,
				Confidence:   scores[0].Confidence,
				Alternatives: scores[1:min(len(scores), ColorAlternatives+1)],
				FromModel:    true,
			}, nil
		}
	}
	if err != nil {
		a.log.Debug().Err(err).Msg("model color detection failed, using pixel fallback")
	}

	return pixelColor(crop, colors)
}

func pixelColor(crop image.Image, colors []compat.Color) (*types.ColorAnalysis, error) {
	palette := make([]processing.NamedColor, len(colors))
	for i, c := range colors {
		palette[i] = processing.NamedColor{Name: c.Name, Hex: c.Hex}
	}
	dominant, err := processing.DominantColor(crop)
	if err != nil {
		return nil, fmt.Errorf("detect color: %w", err)
	}
	ranked, err := processing.RankPalette(dominant, palette)
	if err != nil {
		return nil, fmt.Errorf("detect color: %w", err)
	}

	out := &types.ColorAnalysis{
		PrimaryColor: ranked[0].Name,
		Confidence:   ranked[0].Confidence,
	}
	for _, m := range ranked[1:min(len(ranked), ColorAlternatives+1)] {
		out.Alternatives = append(out.Alternatives, types.ColorScore{Color: m.Name, Confidence: m.Confidence})
	}
	return out, nil
}

// ClassifyPart classifies a crop and detects its color. A failed color
// detection leaves Color nil.
func (a *Analyzer) ClassifyPart(ctx context.Context, crop image.Image) (types.ClassifiedPart, error) {
	cls, err := a.Classify(ctx, crop)
	if err != nil {
		return types.ClassifiedPart{}, err
	}
	part := types.ClassifiedPart{TopPrediction: cls.TopPrediction, Predictions: cls.Predictions}

	color, err := a.DetectColor(ctx, crop)
	if err != nil {
		a.log.Warn().Err(err).Msg("color detection failed")
	} else {
		part.Color = color
	}
	return part, nil
}

func formatPercentage(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
