package processing

import (
	"fmt"
	"image"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// NamedColor is a palette entry given as a hex string.
type NamedColor struct {
	Name string
	Hex  string
}

// ColorMatch is a palette color scored against an image.
type ColorMatch struct {
	Name       string  `json:"name"`
	Hex        string  `json:"hex"`
	Distance   float64 `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// DominantColor returns the most frequent quantized color of img. Pixels
// are grouped in steps of 16 per channel, and fully transparent pixels are
// skipped.
func DominantColor(img image.Image) (colorful.Color, error) {
	b := img.Bounds()
	if b.Empty() {
		return colorful.Color{}, fmt.Errorf("empty image")
	}

	counts := make(map[[3]uint8]int)
	// sample at most ~64k pixels
	step := max(1, (b.Dx()*b.Dy())/(1<<16))
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i++
			if i%step != 0 {
				continue
			}
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			key := [3]uint8{uint8((r >> 8) / 16 * 16), uint8((g >> 8) / 16 * 16), uint8((bl >> 8) / 16 * 16)}
			counts[key]++
		}
	}
	if len(counts) == 0 {
		return colorful.Color{}, fmt.Errorf("image has no opaque pixels")
	}

	var best [3]uint8
	bestCount := -1
	for k, n := range counts {
		// ties resolved by key so the result does not depend on map order
		if n > bestCount || (n == bestCount && lessKey(k, best)) {
			best, bestCount = k, n
		}
	}
	// center of the quantization bucket
	return colorful.Color{
		R: (float64(best[0]) + 8) / 255,
		G: (float64(best[1]) + 8) / 255,
		B: (float64(best[2]) + 8) / 255,
	}.Clamped(), nil
}

func lessKey(a, b [3]uint8) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// RankPalette orders palette colors by CIE Lab distance to c, nearest first.
// Confidence is 1 for an exact match and falls toward 0 with distance.
func RankPalette(c colorful.Color, palette []NamedColor) ([]ColorMatch, error) {
	out := make([]ColorMatch, 0, len(palette))
	for _, p := range palette {
		pc, err := colorful.Hex(p.Hex)
		if err != nil {
			return nil, fmt.Errorf("palette color %s: %w", p.Name, err)
		}
		d := c.DistanceLab(pc)
		out = append(out, ColorMatch{Name: p.Name, Hex: p.Hex, Distance: d, Confidence: 1 / (1 + d*4)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// NearestNamedColor returns the palette color closest to the dominant color of img.
func NearestNamedColor(img image.Image, palette []NamedColor) (ColorMatch, error) {
	if len(palette) == 0 {
		return ColorMatch{}, fmt.Errorf("empty palette")
	}
	c, err := DominantColor(img)
	if err != nil {
		return ColorMatch{}, err
	}
	ranked, err := RankPalette(c, palette)
	if err != nil {
		return ColorMatch{}, err
	}
	return ranked[0], nil
}
