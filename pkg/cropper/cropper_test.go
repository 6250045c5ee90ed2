package cropper

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{200, 30, 30, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func detectionWith(regions map[geometry.Region]geometry.Rect) *geometry.Detection {
	det := &geometry.Detection{Success: true, Regions: map[geometry.Region]geometry.RegionBox{}}
	for r, rect := range regions {
		det.Regions[r] = geometry.RegionBox{BBox: rect, Area: rect.Area()}
	}
	return det
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.config.MinSide[geometry.Feet] != DefaultMinFeetSide {
		t.Errorf("Expected feet min side %d, got %d", DefaultMinFeetSide, c.config.MinSide[geometry.Feet])
	}
	if _, ok := c.config.MinSide[geometry.Torso]; ok {
		t.Error("Expected torso crops not to be resized")
	}
}

func TestNewWithConfigDropsNonPositive(t *testing.T) {
	c := NewWithConfig(CropConfig{MinSide: map[geometry.Region]int{geometry.Feet: 0, geometry.Head: 64}})
	if _, ok := c.config.MinSide[geometry.Feet]; ok {
		t.Error("Expected zero min side to be ignored")
	}
	if c.config.MinSide[geometry.Head] != 64 {
		t.Error("Expected head min side to be kept")
	}
}

func TestExtractTorso(t *testing.T) {
	img := createTestImage(300, 600)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Torso: {XMin: 50, YMin: 100, XMax: 250, YMax: 300},
	})

	res, err := New().Extract(img, det, geometry.Torso)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b := res.Image.Bounds()
	if b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("Expected 200x200 crop, got %dx%d", b.Dx(), b.Dy())
	}
	if res.Upscaled {
		t.Error("Torso crop should not be upscaled")
	}
	// pixel (150,250) of the source is inside the bright subject
	if got := color.NRGBAModel.Convert(res.Image.At(b.Min.X+100, b.Min.Y+150)).(color.NRGBA); got.R != 200 {
		t.Errorf("Expected subject pixel, got %+v", got)
	}
}

func TestExtractFeetUpscales(t *testing.T) {
	img := createTestImage(400, 400)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Feet: {XMin: 100, YMin: 300, XMax: 200, YMax: 350},
	})

	res, err := New().Extract(img, det, geometry.Feet)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !res.Upscaled {
		t.Fatal("Expected small feet crop to be upscaled")
	}
	b := res.Image.Bounds()
	if b.Dx() != 448 || b.Dy() != 224 {
		t.Errorf("Expected 448x224, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestExtractFeetLargeEnough(t *testing.T) {
	img := createTestImage(600, 600)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Feet: {XMin: 0, YMin: 300, XMax: 300, YMax: 560},
	})

	res, err := New().Extract(img, det, geometry.Feet)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Upscaled {
		t.Error("Feet crop already above minimum should keep its size")
	}
	if b := res.Image.Bounds(); b.Dx() != 300 || b.Dy() != 260 {
		t.Errorf("Expected 300x260, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestExtractMissingRegion(t *testing.T) {
	img := createTestImage(100, 100)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Torso: {XMin: 0, YMin: 0, XMax: 50, YMax: 50},
	})

	_, err := New().Extract(img, det, geometry.Legs)
	if !errors.Is(err, apperrors.ErrRegionNotFound) {
		t.Errorf("Expected RegionNotFound, got %v", err)
	}
}

func TestExtractZeroAreaRegion(t *testing.T) {
	img := createTestImage(100, 100)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Feet: {XMin: 40, YMin: 90, XMax: 40, YMax: 90},
	})

	res, err := New().Extract(img, det, geometry.Feet)
	if err != nil {
		t.Fatalf("Zero-area region should not fail: %v", err)
	}
	if !res.Empty() {
		t.Error("Expected an empty crop")
	}
	if res.Upscaled {
		t.Error("Empty crop must not be resized")
	}
}

func TestExtractOffsetImageBounds(t *testing.T) {
	src := createTestImage(200, 200).(*image.RGBA)
	sub := src.SubImage(image.Rect(50, 50, 200, 200))
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Torso: {XMin: 0, YMin: 0, XMax: 100, YMax: 80},
	})

	res, err := New().Extract(sub, det, geometry.Torso)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if b := res.Image.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("Expected 100x80, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestExtractAll(t *testing.T) {
	img := createTestImage(300, 300)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Torso: {XMin: 10, YMin: 10, XMax: 100, YMax: 100},
		geometry.Legs:  {XMin: 10, YMin: 100, XMax: 100, YMax: 250},
		geometry.Feet:  {XMin: 10, YMin: 250, XMax: 100, YMax: 290},
	})

	crops, failures := New().ExtractAll(img, det)
	if len(failures) != 0 {
		t.Errorf("Unexpected failures: %v", failures)
	}
	if len(crops) != 3 {
		t.Fatalf("Expected 3 crops, got %d", len(crops))
	}
	if !crops[geometry.Feet].Upscaled {
		t.Error("Expected feet to be upscaled")
	}

	crops, failures = New().ExtractAll(img, nil)
	if len(crops) != 0 || len(failures) != 0 {
		t.Error("Expected nothing for a nil detection")
	}
}

func BenchmarkExtractFeet(b *testing.B) {
	img := createTestImage(1080, 1920)
	det := detectionWith(map[geometry.Region]geometry.Rect{
		geometry.Feet: {XMin: 400, YMin: 1700, XMax: 600, YMax: 1800},
	})
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Extract(img, det, geometry.Feet)
	}
}
