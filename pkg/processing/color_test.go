package processing

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPalette = []NamedColor{
	{Name: "red", Hex: "#d32f2f"},
	{Name: "blue", Hex: "#1976d2"},
	{Name: "black", Hex: "#000000"},
	{Name: "white", Hex: "#ffffff"},
}

func TestDominantColorPicksMajority(t *testing.T) {
	img := solidImage(10, 10, color.NRGBA{200, 40, 40, 255})
	for x := 0; x < 10; x++ {
		img.Set(x, 0, color.NRGBA{20, 20, 200, 255})
	}

	c, err := DominantColor(img)
	require.NoError(t, err)
	r, g, b := c.RGB255()
	assert.InDelta(t, 200, int(r), 16)
	assert.InDelta(t, 40, int(g), 16)
	assert.InDelta(t, 40, int(b), 16)
}

func TestDominantColorSkipsTransparent(t *testing.T) {
	_, err := DominantColor(image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	assert.Error(t, err)

	_, err = DominantColor(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestNearestNamedColor(t *testing.T) {
	tests := []struct {
		fill color.NRGBA
		want string
	}{
		{color.NRGBA{210, 50, 50, 255}, "red"},
		{color.NRGBA{30, 110, 200, 255}, "blue"},
		{color.NRGBA{5, 5, 5, 255}, "black"},
		{color.NRGBA{250, 250, 250, 255}, "white"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			m, err := NearestNamedColor(solidImage(8, 8, tt.fill), testPalette)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Name)
			assert.Greater(t, m.Confidence, 0.0)
			assert.LessOrEqual(t, m.Confidence, 1.0)
		})
	}

	_, err := NearestNamedColor(solidImage(2, 2, color.White), nil)
	assert.Error(t, err)
}

func TestRankPaletteRejectsBadHex(t *testing.T) {
	c, err := DominantColor(solidImage(2, 2, color.White))
	require.NoError(t, err)
	_, err = RankPalette(c, []NamedColor{{Name: "bad", Hex: "zzz"}})
	assert.Error(t, err)
}
