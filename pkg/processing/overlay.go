package processing

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
)

var regionColors = map[geometry.Region]color.NRGBA{
	geometry.Head:  {255, 215, 0, 255},
	geometry.Torso: {0, 200, 83, 255},
	geometry.Legs:  {41, 121, 255, 255},
	geometry.Feet:  {255, 61, 0, 255},
}

// CreateDebugOverlay returns a copy of img with every detected region
// outlined and its center marked. Degenerate boxes are skipped.
func (p *Processor) CreateDebugOverlay(img image.Image, det *geometry.Detection) image.Image {
	canvas := imaging.Clone(img)
	if det == nil {
		return canvas
	}

	b := canvas.Bounds()
	stroke := max(2, min(b.Dx(), b.Dy())*4/1000)

	for region, box := range det.Regions {
		r := box.BBox
		if r.Width() <= 0 || r.Height() <= 0 {
			continue
		}
		c, ok := regionColors[region]
		if !ok {
			c = color.NRGBA{255, 255, 255, 255}
		}
		outline(canvas, image.Rect(r.XMin, r.YMin, r.XMax, r.YMax), stroke, c)

		cx, cy := (r.XMin+r.XMax)/2, (r.YMin+r.YMax)/2
		fill(canvas, image.Rect(cx-stroke, cy-stroke, cx+stroke, cy+stroke), c)
	}
	return canvas
}

// outline paints the inner border of rect, stroke pixels thick.
func outline(dst *image.NRGBA, rect image.Rectangle, stroke int, c color.NRGBA) {
	s := min(stroke, rect.Dx(), rect.Dy())
	fill(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+s), c)
	fill(dst, image.Rect(rect.Min.X, rect.Max.Y-s, rect.Max.X, rect.Max.Y), c)
	fill(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+s, rect.Max.Y), c)
	fill(dst, image.Rect(rect.Max.X-s, rect.Min.Y, rect.Max.X, rect.Max.Y), c)
}

func fill(dst *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}
