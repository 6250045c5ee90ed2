// Package analyzer runs the full outfit pipeline: pose estimation, region
// geometry, cropping, crop classification, color detection and outfit
// scoring.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/internal/logging"
	"github.com/luizh3/fashion-extractor-api/internal/metrics"
	"github.com/luizh3/fashion-extractor-api/internal/utils"
	"github.com/luizh3/fashion-extractor-api/pkg/client"
	"github.com/luizh3/fashion-extractor-api/pkg/compat"
	"github.com/luizh3/fashion-extractor-api/pkg/cropper"
	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
	"github.com/luizh3/fashion-extractor-api/pkg/processing"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// Deps are the collaborators an Analyzer is built from. People is optional.
type Deps struct {
	Geometry *geometry.Geometry
	Cropper  *cropper.RegionCropper
	Pose     client.PoseEstimator
	People   client.PersonDetector
	Model    client.EmbeddingModel
	Engine   *compat.Engine
}

// Config holds configuration for the analyzer
type Config struct {
	// OutputDir receives region crops. Empty disables saving.
	OutputDir   string
	JPEGQuality int
	// URLPrefix is prepended to saved crop names in results
	URLPrefix string
}

// DefaultConfig returns the settings used by the API server
func DefaultConfig() Config {
	return Config{
		OutputDir:   filepath.Join("static", "body_parts"),
		JPEGQuality: 95,
		URLPrefix:   "/api/v1/static/body-parts/",
	}
}

// Analyzer ties the pipeline together
type Analyzer struct {
	deps      Deps
	config    Config
	processor *processing.Processor
	log       zerolog.Logger
	now       func() time.Time
}

// New creates an Analyzer. Geometry, Cropper, Pose, Model and Engine are required.
func New(deps Deps, config Config) (*Analyzer, error) {
	if deps.Geometry == nil || deps.Cropper == nil || deps.Pose == nil || deps.Model == nil || deps.Engine == nil {
		return nil, fmt.Errorf("analyzer: missing required dependency")
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 95
	}
	return &Analyzer{
		deps:      deps,
		config:    config,
		processor: processing.NewProcessor(),
		log:       logging.With("analyzer"),
		now:       time.Now,
	}, nil
}

// Geometry returns the region geometry in use
func (a *Analyzer) Geometry() *geometry.Geometry {
	return a.deps.Geometry
}

// Engine returns the compatibility engine in use
func (a *Analyzer) Engine() *compat.Engine {
	return a.deps.Engine
}

// RegionDetection is a Detection plus the people found in the image
type RegionDetection struct {
	*geometry.Detection
	People []types.PersonBox `json:"people"`
}

// DetectRegions estimates the pose and derives body regions. When no person
// is found the detection is returned with Success false together with
// apperrors.ErrNoDetection.
func (a *Analyzer) DetectRegions(ctx context.Context, img image.Image) (*RegionDetection, error) {
	start := time.Now()
	b := img.Bounds()

	set, err := a.deps.Pose.EstimatePose(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("pose estimation: %w", err)
	}

	det, err := a.deps.Geometry.DeriveRegions(set, b.Dx(), b.Dy())
	if det == nil {
		return nil, err
	}
	out := &RegionDetection{Detection: det, People: []types.PersonBox{}}

	found := make([]string, 0, len(det.Regions))
	for r := range det.Regions {
		found = append(found, string(r))
	}
	metrics.RecordRegions(found)

	if err != nil {
		a.log.Info().Dur("elapsed", time.Since(start)).Msg("no person detected")
		return out, err
	}

	if a.deps.People != nil {
		people, perr := a.deps.People.DetectPeople(ctx, img)
		if perr != nil {
			a.log.Warn().Err(perr).Msg("person detection failed")
		} else {
			out.People = people
		}
	}

	a.log.Debug().
		Int("regions", len(det.Regions)).
		Int("people", len(out.People)).
		Dur("elapsed", time.Since(start)).
		Msg("regions derived")
	return out, nil
}

// ExtractRegion detects regions and returns the crop of one of them
func (a *Analyzer) ExtractRegion(ctx context.Context, img image.Image, region geometry.Region) (cropper.CropResult, error) {
	det, err := a.DetectRegions(ctx, img)
	if err != nil {
		return cropper.CropResult{}, err
	}
	return a.deps.Cropper.Extract(img, det.Detection, region)
}

// SavedPart describes a crop written to the output directory
type SavedPart struct {
	Filename string        `json:"filename"`
	URL      string        `json:"url"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Area     int           `json:"area"`
	BBox     geometry.Rect `json:"bbox"`
}

// RegionAnalysis is the classification of one region crop
type RegionAnalysis struct {
	types.ClassifiedPart
	URL string `json:"url,omitempty"`
}

// Summary condenses a complete analysis
type Summary struct {
	TotalPartsDetected   int     `json:"total_parts_detected"`
	TotalPartsClassified int     `json:"total_parts_classified"`
	PeopleDetected       int     `json:"people_detected"`
	CompatibilityScore   float64 `json:"compatibility_score"`
	CoordinationScore    float64 `json:"overall_coordination_score"`
}

// CompleteResult is the outcome of AnalyzeComplete
type CompleteResult struct {
	Success         bool                               `json:"success"`
	Error           string                             `json:"error,omitempty"`
	SessionID       string                             `json:"session_id,omitempty"`
	Timestamp       string                             `json:"timestamp,omitempty"`
	Detection       *RegionDetection                   `json:"detection,omitempty"`
	SavedParts      map[geometry.Region]SavedPart      `json:"saved_parts,omitempty"`
	Classifications map[geometry.Region]RegionAnalysis `json:"classifications,omitempty"`
	Compatibility   *compat.OutfitCompatibility        `json:"outfit_compatibility,omitempty"`
	Outfit          *OutfitAnalysis                    `json:"complete_outfit_analysis,omitempty"`
	Failures        map[string]string                  `json:"failures,omitempty"`
	Summary         Summary                            `json:"summary"`
}

// AnalyzeComplete runs the whole pipeline on img. A missing person yields
// a result with Success false and no error. Failures of single regions, of
// outfit scoring and of the full image analysis are recorded in Failures and
// do not stop the rest.
func (a *Analyzer) AnalyzeComplete(ctx context.Context, img image.Image) (*CompleteResult, error) {
	start := time.Now()
	img = a.processor.EnsureRGB(img)

	det, err := a.DetectRegions(ctx, img)
	if errors.Is(err, apperrors.ErrNoDetection) {
		return &CompleteResult{Success: false, Error: det.Error, Detection: det}, nil
	}
	if err != nil {
		return nil, err
	}

	now := a.now()
	res := &CompleteResult{
		Success:         true,
		SessionID:       utils.NewSessionID(),
		Timestamp:       now.Format(utils.TimestampLayout),
		Detection:       det,
		SavedParts:      map[geometry.Region]SavedPart{},
		Classifications: map[geometry.Region]RegionAnalysis{},
		Failures:        map[string]string{},
	}
	log := a.log.With().Str("session", res.SessionID).Logger()

	parts := map[string]types.ClassifiedPart{}
	for _, region := range geometry.ClothingRegions {
		box, ok := det.Regions[region]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop, err := a.deps.Cropper.Extract(img, det.Detection, region)
		if err == nil && crop.Empty() {
			err = apperrors.New(apperrors.CodeRegionNotFound, "region %s has no area", region)
		}
		if err != nil {
			log.Warn().Err(err).Str("region", string(region)).Msg("crop failed")
			res.Failures[string(region)] = err.Error()
			continue
		}

		analysis := RegionAnalysis{}
		if a.config.OutputDir != "" {
			// the crop is still classified when it cannot be persisted
			if saved, err := a.savePart(crop, box, res.SessionID, now); err != nil {
				log.Warn().Err(err).Str("region", string(region)).Msg("saving crop failed")
				res.Failures[string(region)+"_save"] = err.Error()
			} else {
				res.SavedParts[region] = saved
				analysis.URL = saved.URL
			}
		}

		part, err := a.ClassifyPart(ctx, crop.Image)
		if err != nil {
			log.Warn().Err(err).Str("region", string(region)).Msg("classification failed")
			res.Failures[string(region)] = err.Error()
			continue
		}
		analysis.ClassifiedPart = part
		res.Classifications[region] = analysis
		parts[string(region)] = part
	}

	if compatibility, err := a.deps.Engine.PairwiseOutfitScore(parts); err != nil {
		log.Warn().Err(err).Msg("outfit scoring failed")
		res.Failures["outfit_compatibility"] = err.Error()
	} else {
		res.Compatibility = compatibility
		res.Summary.CompatibilityScore = compatibility.Score
	}

	if outfit, err := a.AnalyzeOutfit(ctx, img, res.Summary.CompatibilityScore, len(parts)); err != nil {
		log.Warn().Err(err).Msg("full image analysis failed")
		res.Failures["complete_outfit_analysis"] = err.Error()
	} else {
		res.Outfit = outfit
		res.Summary.CoordinationScore = outfit.Rating.CoordinationScore
	}

	res.Summary.TotalPartsDetected = len(det.Regions)
	res.Summary.TotalPartsClassified = len(res.Classifications)
	res.Summary.PeopleDetected = len(det.People)

	log.Info().
		Int("classified", len(res.Classifications)).
		Int("failures", len(res.Failures)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")
	return res, nil
}

func (a *Analyzer) savePart(crop cropper.CropResult, box geometry.RegionBox, session string, at time.Time) (SavedPart, error) {
	if err := utils.EnsureDir(a.config.OutputDir); err != nil {
		return SavedPart{}, fmt.Errorf("create output dir: %w", err)
	}
	name := utils.PartFilename(string(crop.Region), session, at)
	if err := a.processor.SaveImage(crop.Image, filepath.Join(a.config.OutputDir, name), "jpg", a.config.JPEGQuality, false); err != nil {
		return SavedPart{}, fmt.Errorf("save crop: %w", err)
	}
	b := crop.Image.Bounds()
	return SavedPart{
		Filename: name,
		URL:      a.config.URLPrefix + name,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Area:     box.Area,
		BBox:     crop.BBox,
	}, nil
}
