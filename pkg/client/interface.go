package client

import (
	"context"
	"image"

	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

// VisionClient sends a prompt with an image to a multimodal chat model.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// Embedder turns texts into embedding vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// PoseEstimator finds body landmarks of the main person. A nil set with a
// nil error means no pose was found.
type PoseEstimator interface {
	EstimatePose(ctx context.Context, img image.Image) (*types.LandmarkSet, error)
}

// PersonDetector returns one box per person in the image.
type PersonDetector interface {
	DetectPeople(ctx context.Context, img image.Image) ([]types.PersonBox, error)
}

// EmbeddingModel places images and texts in a shared embedding space.
type EmbeddingModel interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeImage(ctx context.Context, img image.Image) ([]float32, error)
	// JointSimilarity returns a probability per text, summing to 1.
	JointSimilarity(ctx context.Context, img image.Image, texts []string) ([]float64, error)
}
