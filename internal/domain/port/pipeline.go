package port

import (
	"context"

	"github.com/framescope/framescope/internal/domain/entity"
)

type FramePipeline interface {
	Run(ctx context.Context, session *entity.Session, sourcePath string, req entity.ExtractionRequest) (*entity.PipelineResult, error)
}
