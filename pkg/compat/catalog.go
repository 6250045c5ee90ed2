package compat

import (
	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
)

// Region tags carried by catalog garments.
const (
	RegionTorso       = "torso"
	RegionLegs        = "legs"
	RegionFeet        = "feet"
	RegionHead        = "head"
	RegionAccessories = "accessories"
)

// OutfitSlots are the regions an outfit needs to be complete, in scoring order.
var OutfitSlots = []string{RegionTorso, RegionLegs, RegionFeet}

// Garment is a catalog entry. Prompt is the label embeddings are computed
// from and the key callers refer to it by.
type Garment struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Prompt     string `json:"prompt"`
	BodyRegion string `json:"body_region"`
}

// Color is a named catalog color. Hex is only used for pixel-based fallbacks.
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// Catalog is an immutable set of garments and colors with label lookups.
type Catalog struct {
	garments []Garment
	colors   []Color
	byPrompt map[string]int
	byColor  map[string]int
}

// NewCatalog validates and indexes the entries. Prompts and color names must
// be unique and non-empty.
func NewCatalog(garments []Garment, colors []Color) (*Catalog, error) {
	if len(garments) == 0 || len(colors) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "catalog needs at least one garment and one color")
	}
	c := &Catalog{
		garments: append([]Garment(nil), garments...),
		colors:   append([]Color(nil), colors...),
		byPrompt: make(map[string]int, len(garments)),
		byColor:  make(map[string]int, len(colors)),
	}
	for i, g := range c.garments {
		if g.Prompt == "" || g.BodyRegion == "" {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "garment %d needs a prompt and a body region", g.ID)
		}
		if _, dup := c.byPrompt[g.Prompt]; dup {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "duplicate garment prompt %q", g.Prompt)
		}
		c.byPrompt[g.Prompt] = i
	}
	for i, col := range c.colors {
		if col.Name == "" {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "color %d has no name", i)
		}
		if _, dup := c.byColor[col.Name]; dup {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "duplicate color %q", col.Name)
		}
		c.byColor[col.Name] = i
	}
	return c, nil
}

// DefaultCatalog returns the built-in 23 garments and 16 colors.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultGarments(), DefaultColors())
	if err != nil {
		panic(err)
	}
	return c
}

func DefaultGarments() []Garment {
	return []Garment{
		{0, "Camiseta", "t-shirt", RegionTorso},
		{1, "Calça", "pants", RegionLegs},
		{2, "Shorts", "shorts", RegionLegs},
		{3, "Jaqueta", "jacket", RegionTorso},
		{4, "Blusa", "blouse", RegionTorso},
		{5, "Saia", "skirt", RegionLegs},
		{6, "Suéter", "sweater", RegionTorso},
		{7, "Moletom", "hoodie", RegionTorso},
		{8, "Casaco", "coat", RegionTorso},
		{9, "Terno", "suit", RegionTorso},
		{10, "Maiô", "swimsuit", RegionTorso},
		{11, "Roupa Íntima", "underwear", RegionLegs},
		{12, "Meias", "socks", RegionFeet},
		{13, "Sapatos", "shoes", RegionFeet},
		{14, "Botas", "boots", RegionFeet},
		{15, "Sandálias", "sandals", RegionFeet},
		{16, "Chapéu", "hat", RegionHead},
		{17, "Boné", "cap", RegionHead},
		{18, "Cachecol", "scarf", RegionAccessories},
		{19, "Luvas", "gloves", RegionAccessories},
		{20, "Cinto", "belt", RegionAccessories},
		{21, "Bolsa", "bag", RegionAccessories},
		{22, "Mochila", "backpack", RegionAccessories},
	}
}

func DefaultColors() []Color {
	return []Color{
		{"red", "#d32f2f"},
		{"blue", "#1976d2"},
		{"green", "#388e3c"},
		{"yellow", "#fbc02d"},
		{"black", "#000000"},
		{"white", "#ffffff"},
		{"gray", "#808080"},
		{"brown", "#795548"},
		{"pink", "#f48fb1"},
		{"purple", "#7b1fa2"},
		{"orange", "#f57c00"},
		{"beige", "#f5f5dc"},
		{"navy", "#001f3f"},
		{"burgundy", "#800020"},
		{"olive", "#808000"},
		{"khaki", "#c3b091"},
	}
}

// Garments returns a copy of the garment entries in catalog order.
func (c *Catalog) Garments() []Garment {
	return append([]Garment(nil), c.garments...)
}

// Colors returns a copy of the color entries in catalog order.
func (c *Catalog) Colors() []Color {
	return append([]Color(nil), c.colors...)
}

// Garment looks up a garment by prompt.
func (c *Catalog) Garment(prompt string) (Garment, bool) {
	i, ok := c.byPrompt[prompt]
	if !ok {
		return Garment{}, false
	}
	return c.garments[i], true
}

// HasColor reports whether name is a catalog color.
func (c *Catalog) HasColor(name string) bool {
	_, ok := c.byColor[name]
	return ok
}

// Regions lists the distinct region tags in first-seen order.
func (c *Catalog) Regions() []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range c.garments {
		if !seen[g.BodyRegion] {
			seen[g.BodyRegion] = true
			out = append(out, g.BodyRegion)
		}
	}
	return out
}

// GarmentsByRegion groups prompts by region tag.
func (c *Catalog) GarmentsByRegion() map[string][]string {
	out := map[string][]string{}
	for _, g := range c.garments {
		out[g.BodyRegion] = append(out[g.BodyRegion], g.Prompt)
	}
	return out
}

func (c *Catalog) garmentIndex(prompt string) (int, error) {
	i, ok := c.byPrompt[prompt]
	if !ok {
		return -1, apperrors.New(apperrors.CodeUnknownLabel, "garment %q is not in the catalog", prompt).
			WithDetail("prompt", prompt)
	}
	return i, nil
}

func (c *Catalog) colorIndex(name string) (int, error) {
	i, ok := c.byColor[name]
	if !ok {
		return -1, apperrors.New(apperrors.CodeUnknownColor, "color %q is not in the catalog", name).
			WithDetail("color", name)
	}
	return i, nil
}
