// Package geometry turns normalized pose landmarks into clipped pixel
// rectangles for each body region.
package geometry

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// Rect is a pixel rectangle clipped to the image, max edges exclusive.
type Rect struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

func (r Rect) Width() int  { return r.XMax - r.XMin }
func (r Rect) Height() int { return r.YMax - r.YMin }
func (r Rect) Area() int   { return r.Width() * r.Height() }

// Image converts r for use with image and imaging APIs.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.XMin, r.YMin, r.XMax, r.YMax)
}

// Contains reports whether o lies inside r.
func (r Rect) Contains(o Rect) bool {
	return o.XMin >= r.XMin && o.YMin >= r.YMin && o.XMax <= r.XMax && o.YMax <= r.YMax
}

// RegionBox is a derived region.
type RegionBox struct {
	BBox Rect `json:"bbox"`
	Area int  `json:"area"`
}

// Detection is the outcome of deriving regions from one landmark set.
type Detection struct {
	Success        bool                 `json:"success"`
	Error          string               `json:"error,omitempty"`
	ImageWidth     int                  `json:"image_width"`
	ImageHeight    int                  `json:"image_height"`
	MarginFraction float64              `json:"margin_fraction"`
	Regions        map[Region]RegionBox `json:"body_parts"`
}

// Region returns a derived region or a RegionNotFound error.
func (d *Detection) Region(r Region) (RegionBox, error) {
	if d != nil {
		if box, ok := d.Regions[r]; ok {
			return box, nil
		}
	}
	return RegionBox{}, apperrors.New(apperrors.CodeRegionNotFound, "region %s not detected", r).
		WithDetail("region", string(r))
}

// Geometry derives regions with a margin fraction that may be changed at
// any time by another goroutine.
type Geometry struct {
	regions []RegionSpec
	margin  atomic.Uint64
}

// New creates a Geometry with the default region table.
func New(margin float64) (*Geometry, error) {
	return NewWithRegions(margin, DefaultRegions())
}

// NewWithRegions creates a Geometry with a custom region table.
func NewWithRegions(margin float64, regions []RegionSpec) (*Geometry, error) {
	for _, spec := range regions {
		if len(spec.Landmarks) == 0 {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "region %s has no landmarks", spec.Region)
		}
	}
	g := &Geometry{regions: regions}
	if err := g.SetMarginFraction(margin); err != nil {
		return nil, err
	}
	return g, nil
}

// MarginFraction returns the margin currently applied.
func (g *Geometry) MarginFraction() float64 {
	return math.Float64frombits(g.margin.Load())
}

// SetMarginFraction replaces the margin. Values outside [0,1] are rejected
// and leave the current margin unchanged.
func (g *Geometry) SetMarginFraction(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return apperrors.New(apperrors.CodeInvalidArgument, "margin fraction must be between 0 and 1, got %v", v).
			WithDetail("margin_fraction", v)
	}
	g.margin.Store(math.Float64bits(v))
	return nil
}

// Regions returns a copy of the region table.
func (g *Geometry) Regions() []RegionSpec {
	out := make([]RegionSpec, len(g.regions))
	copy(out, g.regions)
	return out
}

// DeriveRegions computes every region whose landmarks are present. When the
// set is nil or empty it returns a failed Detection together with
// ErrNoDetection.
func (g *Geometry) DeriveRegions(set *types.LandmarkSet, width, height int) (*Detection, error) {
	margin := g.MarginFraction()
	det := &Detection{
		ImageWidth:     width,
		ImageHeight:    height,
		MarginFraction: margin,
		Regions:        map[Region]RegionBox{},
	}

	if width <= 0 || height <= 0 {
		err := apperrors.New(apperrors.CodeInvalidArgument, "invalid image size %dx%d", width, height)
		det.Error = err.Message
		return det, err
	}
	if set.Empty() {
		det.Error = "No person detected in image"
		return det, apperrors.New(apperrors.CodeNoDetection, "no pose landmarks found")
	}

	for _, spec := range g.regions {
		points := make([]types.Landmark, 0, len(spec.Landmarks))
		for _, name := range spec.Landmarks {
			if l, ok := set.Get(name); ok {
				points = append(points, l)
			}
		}
		if len(points) == 0 {
			continue
		}
		r := BoundingBoxWithMargin(points, width, height, margin)
		r = Expand(r, spec.Expansion, width, height)
		det.Regions[spec.Region] = RegionBox{BBox: r, Area: r.Area()}
	}

	det.Success = true
	return det, nil
}

// BoundingBoxWithMargin returns the tight box around points, grown on each
// side by margin times the box extent and clipped to the image.
func BoundingBoxWithMargin(points []types.Landmark, width, height int, margin float64) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	if math.IsNaN(margin) || margin < 0 {
		margin = 0
	} else if margin > 1 {
		margin = 1
	}

	xMin, yMin := math.MaxInt, math.MaxInt
	xMax, yMax := math.MinInt, math.MinInt
	for _, p := range points {
		x := int(math.Floor(p.X * float64(width)))
		y := int(math.Floor(p.Y * float64(height)))
		xMin, xMax = min(xMin, x), max(xMax, x)
		yMin, yMax = min(yMin, y), max(yMax, y)
	}

	mx := int(float64(xMax-xMin) * margin)
	my := int(float64(yMax-yMin) * margin)

	return Rect{
		XMin: clampInt(xMin-mx, 0, width),
		YMin: clampInt(yMin-my, 0, height),
		XMax: clampInt(xMax+mx, 0, width),
		YMax: clampInt(yMax+my, 0, height),
	}
}

// Expand applies a region's post-margin growth and re-clips to the image.
// Both growth amounts are measured on the box as passed in.
func Expand(r Rect, e Expansion, width, height int) Rect {
	w := float64(r.Width())
	h := float64(r.Height())
	if e.Lateral > 0 {
		r.XMin = max(0, int(float64(r.XMin)-w*e.Lateral))
		r.XMax = min(width, int(float64(r.XMax)+w*e.Lateral))
	}
	if e.Upward > 0 {
		r.YMin = max(0, int(float64(r.YMin)-h*e.Upward))
	}
	return r
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
