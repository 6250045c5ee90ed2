package geometry

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// standingPerson uses binary fractions so pixel coordinates are exact on an 800x1600 image.
func standingPerson() *types.LandmarkSet {
	return &types.LandmarkSet{
		Confidence: 0.9,
		Landmarks: []types.Landmark{
			{Name: Nose, X: 0.5, Y: 0.125},
			{Name: LeftEye, X: 0.46875, Y: 0.109375},
			{Name: RightEye, X: 0.53125, Y: 0.109375},
			{Name: LeftEar, X: 0.4375, Y: 0.125},
			{Name: RightEar, X: 0.5625, Y: 0.125},
			{Name: MouthLeft, X: 0.484375, Y: 0.140625},
			{Name: MouthRight, X: 0.515625, Y: 0.140625},
			{Name: LeftShoulder, X: 0.375, Y: 0.25},
			{Name: RightShoulder, X: 0.625, Y: 0.25},
			{Name: LeftHip, X: 0.40625, Y: 0.5},
			{Name: RightHip, X: 0.59375, Y: 0.5},
			{Name: LeftKnee, X: 0.4375, Y: 0.6875},
			{Name: RightKnee, X: 0.5625, Y: 0.6875},
			{Name: LeftAnkle, X: 0.4375, Y: 0.875},
			{Name: RightAnkle, X: 0.5625, Y: 0.875},
			{Name: LeftHeel, X: 0.4375, Y: 0.90625},
			{Name: RightHeel, X: 0.5625, Y: 0.90625},
			{Name: LeftFootIndex, X: 0.46875, Y: 0.9375},
			{Name: RightFootIndex, X: 0.53125, Y: 0.9375},
		},
	}
}

func randomPerson(rng *rand.Rand) *types.LandmarkSet {
	set := &types.LandmarkSet{Confidence: rng.Float64()}
	for _, spec := range DefaultRegions() {
		for _, name := range spec.Landmarks {
			if _, ok := set.Get(name); ok {
				continue
			}
			set.Landmarks = append(set.Landmarks, types.Landmark{
				Name: name,
				X:    rng.Float64()*1.4 - 0.2,
				Y:    rng.Float64()*1.4 - 0.2,
			})
		}
	}
	return set
}

func TestDeriveRegionsStandingPerson(t *testing.T) {
	g, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	det, err := g.DeriveRegions(standingPerson(), 800, 1600)
	require.NoError(t, err)
	require.True(t, det.Success)

	want := map[Region]Rect{
		Torso: {XMin: 290, YMin: 380, XMax: 510, YMax: 820},
		Legs:  {XMin: 268, YMin: 770, XMax: 531, YMax: 1430},
		Feet:  {XMin: 312, YMin: 1437, XMax: 488, YMax: 1502},
		Head:  {XMin: 345, YMin: 146, XMax: 455, YMax: 227},
	}
	require.Len(t, det.Regions, len(want))
	for region, rect := range want {
		box, err := det.Region(region)
		require.NoError(t, err, region)
		assert.Equal(t, rect, box.BBox, region)
		assert.Equal(t, rect.Area(), box.Area, region)
	}
	assert.Equal(t, 96800, det.Regions[Torso].Area)
}

func TestRegionsStayInsideImage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		w, h := 1+rng.Intn(2000), 1+rng.Intn(2000)
		g, err := New(rng.Float64())
		require.NoError(t, err)

		det, err := g.DeriveRegions(randomPerson(rng), w, h)
		require.NoError(t, err)
		for region, box := range det.Regions {
			r := box.BBox
			assert.True(t, r.XMin >= 0 && r.XMin <= r.XMax && r.XMax <= w, "%s x out of bounds: %+v (w=%d)", region, r, w)
			assert.True(t, r.YMin >= 0 && r.YMin <= r.YMax && r.YMax <= h, "%s y out of bounds: %+v (h=%d)", region, r, h)
			assert.GreaterOrEqual(t, box.Area, 0)
		}
	}
}

func TestLargerMarginNeverShrinksRegions(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		set := randomPerson(rng)
		w, h := 100+rng.Intn(1500), 100+rng.Intn(1500)
		m1 := rng.Float64() * 0.5
		m2 := m1 + rng.Float64()*0.5

		small, err := New(m1)
		require.NoError(t, err)
		large, err := New(m2)
		require.NoError(t, err)

		a, err := small.DeriveRegions(set, w, h)
		require.NoError(t, err)
		b, err := large.DeriveRegions(set, w, h)
		require.NoError(t, err)

		for region, box := range a.Regions {
			assert.True(t, b.Regions[region].BBox.Contains(box.BBox),
				"%s with margin %.3f is not inside margin %.3f: %+v vs %+v", region, m1, m2, box.BBox, b.Regions[region].BBox)
		}
	}
}

func TestExpansionDirections(t *testing.T) {
	plain := DefaultRegions()
	for i := range plain {
		plain[i].Expansion = Expansion{}
	}
	base, err := NewWithRegions(DefaultMarginFraction, plain)
	require.NoError(t, err)
	expanded, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	set := standingPerson()
	b, err := base.DeriveRegions(set, 800, 1600)
	require.NoError(t, err)
	e, err := expanded.DeriveRegions(set, 800, 1600)
	require.NoError(t, err)

	legs, legsBase := e.Regions[Legs].BBox, b.Regions[Legs].BBox
	assert.Less(t, legs.XMin, legsBase.XMin)
	assert.Greater(t, legs.XMax, legsBase.XMax)
	assert.Equal(t, legsBase.YMin, legs.YMin)
	assert.Equal(t, legsBase.YMax, legs.YMax)

	feet, feetBase := e.Regions[Feet].BBox, b.Regions[Feet].BBox
	assert.Less(t, feet.XMin, feetBase.XMin)
	assert.Greater(t, feet.XMax, feetBase.XMax)
	assert.Less(t, feet.YMin, feetBase.YMin)
	assert.Equal(t, feetBase.YMax, feet.YMax)

	head, headBase := e.Regions[Head].BBox, b.Regions[Head].BBox
	assert.Equal(t, headBase.XMin, head.XMin)
	assert.Equal(t, headBase.XMax, head.XMax)
	assert.Less(t, head.YMin, headBase.YMin)
	assert.Equal(t, headBase.YMax, head.YMax)

	assert.Equal(t, b.Regions[Torso], e.Regions[Torso])
}

func TestExpandClipsToImage(t *testing.T) {
	r := Expand(Rect{XMin: 5, YMin: 3, XMax: 95, YMax: 50}, Expansion{Lateral: 0.3, Upward: 0.5}, 100, 60)
	assert.Equal(t, Rect{XMin: 0, YMin: 0, XMax: 100, YMax: 50}, r)
}

func TestDeriveRegionsWithoutLandmarks(t *testing.T) {
	g, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	for name, set := range map[string]*types.LandmarkSet{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			det, err := g.DeriveRegions(set, 640, 480)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrNoDetection))
			require.NotNil(t, det)
			assert.False(t, det.Success)
			assert.NotEmpty(t, det.Error)
			assert.Empty(t, det.Regions)
		})
	}
}

func TestDeriveRegionsInvalidSize(t *testing.T) {
	g, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	_, err = g.DeriveRegions(standingPerson(), 0, 480)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestPartialLandmarkSet(t *testing.T) {
	g, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	set := &types.LandmarkSet{Landmarks: []types.Landmark{
		{Name: LeftShoulder, X: 0.25, Y: 0.25},
		{Name: RightShoulder, X: 0.75, Y: 0.25},
	}}
	det, err := g.DeriveRegions(set, 400, 400)
	require.NoError(t, err)

	torso, err := det.Region(Torso)
	require.NoError(t, err)
	assert.Equal(t, Rect{XMin: 90, YMin: 100, XMax: 310, YMax: 100}, torso.BBox)
	assert.Zero(t, torso.Area)

	_, err = det.Region(Legs)
	assert.True(t, errors.Is(err, apperrors.ErrRegionNotFound))
}

func TestBoundingBoxDegenerate(t *testing.T) {
	r := BoundingBoxWithMargin([]types.Landmark{{X: 0.5, Y: 0.5}}, 100, 100, 0.5)
	assert.Equal(t, Rect{XMin: 50, YMin: 50, XMax: 50, YMax: 50}, r)
	assert.Zero(t, r.Area())

	assert.Equal(t, Rect{}, BoundingBoxWithMargin(nil, 100, 100, 0.1))
}

func TestSetMarginFraction(t *testing.T) {
	g, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	require.NoError(t, g.SetMarginFraction(0.1))
	assert.Equal(t, 0.1, g.MarginFraction())

	for _, v := range []float64{1.5, -0.01, math.NaN(), math.Inf(1)} {
		err := g.SetMarginFraction(v)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument), "%v", v)
		assert.Equal(t, 0.1, g.MarginFraction())
	}

	require.NoError(t, g.SetMarginFraction(1))
	assert.Equal(t, 1.0, g.MarginFraction())

	_, err = New(2)
	assert.Error(t, err)
}

func TestMarginConcurrentAccess(t *testing.T) {
	g, err := New(DefaultMarginFraction)
	require.NoError(t, err)

	allowed := map[float64]bool{DefaultMarginFraction: true, 0.1: true, 0.2: true, 0.35: true}
	values := []float64{0.1, 0.2, 0.35}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = g.SetMarginFraction(values[(i+j)%len(values)])
			}
		}(i)
	}

	var bad sync.Map
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m := g.MarginFraction()
				if !allowed[m] {
					bad.Store(m, true)
				}
				det, err := g.DeriveRegions(standingPerson(), 800, 1600)
				if err != nil || !allowed[det.MarginFraction] {
					bad.Store(det.MarginFraction, true)
				}
			}
		}()
	}
	wg.Wait()

	bad.Range(func(k, _ any) bool {
		t.Errorf("observed margin %v that was never written", k)
		return true
	})
}

func TestNewWithRegionsRejectsEmptySpec(t *testing.T) {
	_, err := NewWithRegions(0.05, []RegionSpec{{Region: Torso}})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestParseRegion(t *testing.T) {
	r, ok := ParseRegion("feet")
	assert.True(t, ok)
	assert.Equal(t, Feet, r)

	_, ok = ParseRegion("arms")
	assert.False(t, ok)
}
