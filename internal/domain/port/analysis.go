package port

import (
	"context"

	"github.com/framescope/framescope/internal/domain/entity"
)

type QualityScorer interface {
	Score(frame entity.FrameFile) entity.FrameAnalysis
}

type SceneSegmenter interface {
	Segment(frames []entity.FrameFile) []entity.Scene
}

type FrameAnnotator interface {
	Annotate(ctx context.Context, frames []entity.FrameFile) []entity.AIAnnotation
}

// VisionClient sends one image with an instruction prompt and returns the
// model's raw text reply.
type VisionClient interface {
	Describe(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}
