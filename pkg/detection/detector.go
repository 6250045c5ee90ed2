package detection

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/luizh3/fashion-extractor-api/pkg/client"
	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
	"github.com/luizh3/fashion-extractor-api/pkg/processing"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// PosePromptTemplate asks a vision model for body landmarks. %s is the
// comma separated landmark list.
const PosePromptTemplate = `You are a human pose estimator.

Return JSON only:
{
  "person": true,
  "confidence": 0.0,
  "landmarks": [
    {"name": "left_shoulder", "x": 0.0, "y": 0.0, "visibility": 0.0}
  ]
}

HARD RULES
- Only describe the most prominent person in the image.
- Use only these landmark names: %s.
- x and y are normalized to [0,1] (NOT pixels), origin at the top-left corner.
- Omit landmarks that are not visible. Do not guess hidden points.
- visibility is your confidence in [0,1] that the point is visible.
- If no person is visible, return {"person": false, "confidence": 0.0, "landmarks": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// PeoplePrompt asks a vision model for one box per person.
const PeoplePrompt = `You are a person detector.

Return JSON only:
{
  "people": [
    {"box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "confidence": 0.0}
  ]
}

HARD RULES
- One entry per visible person, including partially visible people.
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- If nobody is visible, return {"people": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options controls how images are sent to the vision model
type Options struct {
	Model         string
	Format        string
	MaxDim        int
	Quality       int
	MinVisibility float64
}

// DefaultOptions returns the settings used by the API server
func DefaultOptions() Options {
	return Options{
		Model:         "openbmb/minicpm-v4.5",
		Format:        "jpg",
		MaxDim:        1024,
		Quality:       85,
		MinVisibility: 0.2,
	}
}

// Detector estimates poses and people with a multimodal chat model
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
	prompt    string
	known     map[string]struct{}
}

// NewDetector creates a new detector with a vision client
func NewDetector(vc client.VisionClient, opts Options) *Detector {
	names := landmarkNames()
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	return &Detector{
		client:    vc,
		processor: processing.NewProcessor(),
		opts:      opts,
		prompt:    fmt.Sprintf(PosePromptTemplate, strings.Join(names, ", ")),
		known:     known,
	}
}

type poseResponse struct {
	Person     *bool                `json:"person"`
	Confidence float64              `json:"confidence"`
	Landmarks  []types.Landmark     `json:"landmarks"`
	Keypoints  map[string][]float64 `json:"keypoints,omitempty"`
}

type peopleResponse struct {
	People []types.PersonBox `json:"people"`
}

// EstimatePose returns the landmarks of the most prominent person. A nil
// set means the model saw nobody.
func (d *Detector) EstimatePose(ctx context.Context, img image.Image) (*types.LandmarkSet, error) {
	raw, err := d.query(ctx, img, d.prompt)
	if err != nil {
		return nil, err
	}

	var resp poseResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse pose response: %v", err)
	}
	if resp.Person != nil && !*resp.Person {
		return nil, nil
	}

	b := img.Bounds()
	set := &types.LandmarkSet{Confidence: clamp(resp.Confidence, 0, 1)}
	seen := map[string]struct{}{}
	points := resp.Landmarks
	// some models answer with {"keypoints": {"nose": [x, y]}}
	keys := make([]string, 0, len(resp.Keypoints))
	for name := range resp.Keypoints {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		if xy := resp.Keypoints[name]; len(xy) >= 2 {
			points = append(points, types.Landmark{Name: name, X: xy[0], Y: xy[1]})
		}
	}
	for _, lm := range points {
		lm, ok := d.normalizeLandmark(lm, b.Dx(), b.Dy())
		if !ok {
			continue
		}
		if _, dup := seen[lm.Name]; dup {
			continue
		}
		seen[lm.Name] = struct{}{}
		set.Landmarks = append(set.Landmarks, lm)
	}

	if set.Empty() {
		return nil, nil
	}
	return set, nil
}

// DetectPeople returns one normalized box per person
func (d *Detector) DetectPeople(ctx context.Context, img image.Image) ([]types.PersonBox, error) {
	raw, err := d.query(ctx, img, PeoplePrompt)
	if err != nil {
		return nil, err
	}

	var resp peopleResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse people response: %v", err)
	}

	b := img.Bounds()
	out := make([]types.PersonBox, 0, len(resp.People))
	for _, p := range resp.People {
		box := normalizeBox(p.Box, b.Dx(), b.Dy())
		if box.W <= 0 || box.H <= 0 {
			continue
		}
		out = append(out, types.PersonBox{Box: box, Confidence: clamp(p.Confidence, 0, 1)})
	}
	return out, nil
}

func (d *Detector) query(ctx context.Context, img image.Image, prompt string) (string, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, d.opts.Format, d.opts.MaxDim, d.opts.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %v", err)
	}
	raw, err := d.client.SimpleQuery(ctx, d.opts.Model, prompt, imgB64)
	if err != nil {
		return "", err
	}
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return "", fmt.Errorf("model returned non-JSON response")
	}
	return raw, nil
}

func (d *Detector) normalizeLandmark(lm types.Landmark, imgW, imgH int) (types.Landmark, bool) {
	lm.Name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lm.Name)), " ", "_")
	if _, ok := d.known[lm.Name]; !ok {
		return lm, false
	}
	if math.IsNaN(lm.X) || math.IsNaN(lm.Y) || lm.X < 0 || lm.Y < 0 {
		return lm, false
	}
	if lm.Visibility > 0 && lm.Visibility < d.opts.MinVisibility {
		return lm, false
	}
	// pixel coordinates slipped through
	if (lm.X > 1 || lm.Y > 1) && imgW > 0 && imgH > 0 {
		lm.X /= float64(imgW)
		lm.Y /= float64(imgH)
	}
	lm.X = clamp(lm.X, 0, 1)
	lm.Y = clamp(lm.Y, 0, 1)
	lm.Visibility = clamp(lm.Visibility, 0, 1)
	return lm, true
}

// landmarkNames lists every landmark used by the default region table
func landmarkNames() []string {
	var names []string
	seen := map[string]struct{}{}
	for _, spec := range geometry.DefaultRegions() {
		for _, n := range spec.Landmarks {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	return names
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	// convert from pixel coordinates if needed
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
