package types

// Landmark is a named body keypoint with coordinates normalized to [0,1]
type Landmark struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility,omitempty"`
}

// LandmarkSet is the output of a pose estimator for one person
type LandmarkSet struct {
	Landmarks  []Landmark `json:"landmarks"`
	Confidence float64    `json:"confidence"`
}

// Get returns the landmark with the given name
func (s *LandmarkSet) Get(name string) (Landmark, bool) {
	if s == nil {
		return Landmark{}, false
	}
	for _, l := range s.Landmarks {
		if l.Name == name {
			return l, true
		}
	}
	return Landmark{}, false
}

// Empty reports whether the set carries no points
func (s *LandmarkSet) Empty() bool {
	return s == nil || len(s.Landmarks) == 0
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PersonBox is one person detection
type PersonBox struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// SelectedItem is a garment the user has already picked, as produced by classification
type SelectedItem struct {
	Name        string  `json:"name"`
	Prompt      string  `json:"prompt" validate:"required"`
	BodyRegion  string  `json:"body_region"`
	Color       string  `json:"color,omitempty"`
	Probability float64 `json:"probability"`
}

// Prediction is one scored catalog label for a crop
type Prediction struct {
	Category    int     `json:"category"`
	Name        string  `json:"name"`
	Prompt      string  `json:"prompt"`
	BodyRegion  string  `json:"body_region"`
	Probability float64 `json:"probability"`
	Percentage  string  `json:"percentage"`
}

// ColorScore is a color with its confidence
type ColorScore struct {
	Color      string  `json:"color"`
	Confidence float64 `json:"confidence"`
}

// ColorAnalysis is the dominant color of a crop
type ColorAnalysis struct {
	PrimaryColor string       `json:"primary_color"`
	Confidence   float64      `json:"confidence"`
	Alternatives []ColorScore `json:"alternatives,omitempty"`
	FromModel    bool         `json:"from_model"`
}

// ClassifiedPart is a crop's classification used for outfit scoring
type ClassifiedPart struct {
	TopPrediction Prediction     `json:"top_prediction"`
	Predictions   []Prediction   `json:"all_predictions,omitempty"`
	Color         *ColorAnalysis `json:"color_analysis,omitempty"`
}
