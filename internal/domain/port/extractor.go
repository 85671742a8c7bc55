package port

import (
	"context"

	"github.com/framescope/framescope/internal/domain/entity"
)

type MetadataProber interface {
	Probe(ctx context.Context, videoPath string) (entity.VideoMetadata, error)
}

// Command is a transcoder invocation. Args are passed to the process as
// discrete argv entries, never through a shell.
type Command struct {
	Program       string
	Args          []string
	OutputPattern string
}

type ExtractionPlanner interface {
	Plan(req entity.ExtractionRequest, videoPath, outputDir string) (Command, error)
}

type FrameExtractor interface {
	Extract(ctx context.Context, cmd Command, outputDir string) ([]entity.FrameFile, error)
}
