package cropper

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
)

// DefaultMinFeetSide is the smallest side a feet crop is upscaled to.
const DefaultMinFeetSide = 224

// RegionCropper cuts derived regions out of the source image
type RegionCropper struct {
	config CropConfig
}

// CropConfig holds configuration for region cropping
type CropConfig struct {
	// MinSide upscales a region's crop, preserving aspect ratio, until its
	// smaller side reaches the given size. Regions not listed are never resized.
	MinSide map[geometry.Region]int
}

// CropResult is one extracted region
type CropResult struct {
	Region   geometry.Region `json:"region"`
	BBox     geometry.Rect   `json:"bbox"`
	Image    image.Image     `json:"-"`
	Upscaled bool            `json:"upscaled"`
}

// Empty reports whether the crop has no pixels.
func (r CropResult) Empty() bool {
	return r.Image == nil || r.Image.Bounds().Empty()
}

// New creates a RegionCropper that upscales feet crops to DefaultMinFeetSide
func New() *RegionCropper {
	return NewWithConfig(CropConfig{
		MinSide: map[geometry.Region]int{geometry.Feet: DefaultMinFeetSide},
	})
}

// NewWithConfig creates a RegionCropper with custom configuration
func NewWithConfig(config CropConfig) *RegionCropper {
	minSide := make(map[geometry.Region]int, len(config.MinSide))
	for r, v := range config.MinSide {
		if v > 0 {
			minSide[r] = v
		}
	}
	return &RegionCropper{config: CropConfig{MinSide: minSide}}
}

// Extract crops one region. A region absent from the detection yields a
// RegionNotFound error; a zero-area region yields an empty crop and no error.
func (c *RegionCropper) Extract(img image.Image, det *geometry.Detection, region geometry.Region) (CropResult, error) {
	box, err := det.Region(region)
	if err != nil {
		return CropResult{}, err
	}

	rect := box.BBox.Image().Add(img.Bounds().Min)
	out := imaging.Crop(img, rect)
	res := CropResult{Region: region, BBox: box.BBox, Image: out}

	if minSide, ok := c.config.MinSide[region]; ok {
		if up, resized := upscaleToMinSide(out, minSide); resized {
			res.Image = up
			res.Upscaled = true
		}
	}
	return res, nil
}

// ExtractAll crops every detected region. Failures are reported per region
// and do not stop the others.
func (c *RegionCropper) ExtractAll(img image.Image, det *geometry.Detection) (map[geometry.Region]CropResult, map[geometry.Region]error) {
	crops := make(map[geometry.Region]CropResult)
	failures := make(map[geometry.Region]error)
	if det == nil {
		return crops, failures
	}
	for region := range det.Regions {
		res, err := c.Extract(img, det, region)
		if err != nil {
			failures[region] = err
			continue
		}
		crops[region] = res
	}
	return crops, failures
}

func upscaleToMinSide(img *image.NRGBA, minSide int) (*image.NRGBA, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 || (w >= minSide && h >= minSide) {
		return img, false
	}
	scale := math.Max(float64(minSide)/float64(w), float64(minSide)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return imaging.Resize(img, nw, nh, imaging.Lanczos), true
}
