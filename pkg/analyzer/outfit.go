package analyzer

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/luizh3/fashion-extractor-api/pkg/compat"
)

// Styles scored on the full image, in report order.
var Styles = []string{"casual", "formal", "sporty", "elegant", "streetwear"}

// coordination aspects; the last one is the negative class
var coordinationPrompts = []struct {
	Aspect string
	Prompt string
}{
	{"color_harmony", "an outfit with harmonious colors"},
	{"style_consistency", "an outfit whose pieces share one style"},
	{"proportion_balance", "an outfit with balanced proportions"},
	{"mismatch", "a mismatched outfit with clashing pieces"},
}

// ConsistencyTolerance is how far the full image score may drift from the
// per-part score before the analyses are reported as diverging.
const ConsistencyTolerance = 0.1

// DisplayScore is a presentation rescaling of a joint-similarity probability:
// doubled and capped at 1. It is not a calibrated probability.
func DisplayScore(p float64) float64 {
	return math.Min(1, 2*p)
}

// StyleAnalysis holds display scores per style
type StyleAnalysis struct {
	Scores     map[string]float64 `json:"all_style_scores"`
	Dominant   string             `json:"dominant_style"`
	Confidence float64            `json:"style_confidence"`
}

// CoordinationAnalysis holds display scores per coordination aspect
type CoordinationAnalysis struct {
	Scores map[string]float64 `json:"all_coordination_scores"`
	Score  float64            `json:"coordination_score"`
}

// OverallRating summarizes the full image analysis
type OverallRating struct {
	Level             compat.Level `json:"level"`
	Description       string       `json:"description"`
	CoordinationScore float64      `json:"coordination_score"`
	DominantStyle     string       `json:"dominant_style"`
	StyleConfidence   float64      `json:"style_confidence"`
}

// OutfitAnalysis is the full image outfit report
type OutfitAnalysis struct {
	Style        StyleAnalysis        `json:"style_analysis"`
	Coordination CoordinationAnalysis `json:"coordination_analysis"`
	Rating       OverallRating        `json:"overall_rating"`
	Insights     []string             `json:"insights"`
}

// AnalyzeOutfit scores the style and coordination of the whole image.
// partsScore is the pairwise score of the classified parts and partsCount
// how many parts were classified; both only feed the insights.
func (a *Analyzer) AnalyzeOutfit(ctx context.Context, img image.Image, partsScore float64, partsCount int) (*OutfitAnalysis, error) {
	stylePrompts := make([]string, len(Styles))
	for i, s := range Styles {
		stylePrompts[i] = fmt.Sprintf("a %s outfit", s)
	}
	styleProbs, err := a.deps.Model.JointSimilarity(ctx, img, stylePrompts)
	if err != nil {
		return nil, fmt.Errorf("style analysis: %w", err)
	}
	if len(styleProbs) != len(Styles) {
		return nil, fmt.Errorf("style analysis: got %d scores for %d styles", len(styleProbs), len(Styles))
	}

	out := &OutfitAnalysis{
		Style:        StyleAnalysis{Scores: map[string]float64{}},
		Coordination: CoordinationAnalysis{Scores: map[string]float64{}},
		Insights:     []string{},
	}
	best := -1.0
	for i, s := range Styles {
		out.Style.Scores[s] = DisplayScore(styleProbs[i])
		if styleProbs[i] > best {
			best = styleProbs[i]
			out.Style.Dominant = s
		}
	}
	out.Style.Confidence = DisplayScore(best)

	coordPrompts := make([]string, len(coordinationPrompts))
	for i, c := range coordinationPrompts {
		coordPrompts[i] = c.Prompt
	}
	coordProbs, err := a.deps.Model.JointSimilarity(ctx, img, coordPrompts)
	if err != nil {
		return nil, fmt.Errorf("coordination analysis: %w", err)
	}
	if len(coordProbs) != len(coordinationPrompts) {
		return nil, fmt.Errorf("coordination analysis: got %d scores for %d aspects", len(coordProbs), len(coordinationPrompts))
	}

	var positive float64
	for i, c := range coordinationPrompts {
		out.Coordination.Scores[c.Aspect] = DisplayScore(coordProbs[i])
		if i < len(coordinationPrompts)-1 {
			positive += out.Coordination.Scores[c.Aspect]
		}
	}
	out.Coordination.Score = positive / float64(len(coordinationPrompts)-1)

	level := compat.LevelOf(out.Coordination.Score)
	out.Rating = OverallRating{
		Level:             level,
		Description:       level.Description(),
		CoordinationScore: out.Coordination.Score,
		DominantStyle:     out.Style.Dominant,
		StyleConfidence:   out.Style.Confidence,
	}
	out.Insights = insights(out, partsScore, partsCount)
	return out, nil
}

func insights(o *OutfitAnalysis, partsScore float64, partsCount int) []string {
	var out []string
	out = append(out, fmt.Sprintf("Dominant style: %s (%.0f%%)", o.Style.Dominant, o.Style.Confidence*100))

	switch o.Rating.Level {
	case compat.Excellent, compat.Good:
		out = append(out, "The pieces work well together as a whole")
	case compat.Low:
		out = append(out, "The look as a whole feels disconnected, try pieces with a shared style or palette")
	}

	if o.Coordination.Scores["mismatch"] > o.Coordination.Score {
		out = append(out, "Some pieces appear to clash")
	}

	if partsCount >= 2 {
		if math.Abs(partsScore-o.Rating.CoordinationScore) < ConsistencyTolerance {
			out = append(out, "Individual pieces and the full image agree")
		} else {
			out = append(out, "The full image reads differently from the individual pieces")
		}
	}
	return out
}
