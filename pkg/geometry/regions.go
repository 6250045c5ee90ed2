package geometry

// Region identifies a body region.
type Region string

const (
	Torso Region = "torso"
	Legs  Region = "legs"
	Feet  Region = "feet"
	Head  Region = "head"
)

// Expansion fractions applied after the margin box. Lateral fractions are of
// the box width and widen both sides; upward fractions are of the box height
// and only move the top edge.
const (
	LegsLateralExpansion = 0.30
	FeetLateralExpansion = 0.30
	FeetUpwardExpansion  = 0.20
	HeadUpwardExpansion  = 0.50
)

// DefaultMarginFraction is the margin used when none is configured.
const DefaultMarginFraction = 0.05

// Landmark names, as emitted by MediaPipe-style pose estimators.
const (
	Nose           = "nose"
	LeftEye        = "left_eye"
	RightEye       = "right_eye"
	LeftEar        = "left_ear"
	RightEar       = "right_ear"
	MouthLeft      = "mouth_left"
	MouthRight     = "mouth_right"
	LeftShoulder   = "left_shoulder"
	RightShoulder  = "right_shoulder"
	LeftHip        = "left_hip"
	RightHip       = "right_hip"
	LeftKnee       = "left_knee"
	RightKnee      = "right_knee"
	LeftAnkle      = "left_ankle"
	RightAnkle     = "right_ankle"
	LeftHeel       = "left_heel"
	RightHeel      = "right_heel"
	LeftFootIndex  = "left_foot_index"
	RightFootIndex = "right_foot_index"
)

// Expansion is the post-margin growth policy of a region.
type Expansion struct {
	Lateral float64 `json:"lateral"`
	Upward  float64 `json:"upward"`
}

// RegionSpec maps a region to the landmarks that bound it.
type RegionSpec struct {
	Region    Region    `json:"region"`
	Landmarks []string  `json:"landmarks"`
	Expansion Expansion `json:"expansion"`
}

// DefaultRegions returns the region table in derivation order.
func DefaultRegions() []RegionSpec {
	return []RegionSpec{
		{
			Region:    Torso,
			Landmarks: []string{LeftShoulder, RightShoulder, LeftHip, RightHip},
		},
		{
			Region:    Legs,
			Landmarks: []string{LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle},
			Expansion: Expansion{Lateral: LegsLateralExpansion},
		},
		{
			Region:    Feet,
			Landmarks: []string{LeftHeel, RightHeel, LeftFootIndex, RightFootIndex},
			Expansion: Expansion{Lateral: FeetLateralExpansion, Upward: FeetUpwardExpansion},
		},
		{
			Region:    Head,
			Landmarks: []string{Nose, LeftEye, RightEye, LeftEar, RightEar, MouthLeft, MouthRight},
			Expansion: Expansion{Upward: HeadUpwardExpansion},
		},
	}
}

// ClothingRegions are the regions crops are extracted and classified for.
var ClothingRegions = []Region{Torso, Legs, Feet}

// ParseRegion validates a region name.
func ParseRegion(s string) (Region, bool) {
	switch r := Region(s); r {
	case Torso, Legs, Feet, Head:
		return r, true
	}
	return "", false
}
