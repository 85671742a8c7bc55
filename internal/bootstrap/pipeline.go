package bootstrap

import (
	"github.com/framescope/framescope/internal/analysis"
	"github.com/framescope/framescope/internal/domain/port"
	"github.com/framescope/framescope/internal/infra/config"
	"github.com/framescope/framescope/internal/infra/ffmpeg"
	"github.com/framescope/framescope/internal/infra/vision"
	"github.com/framescope/framescope/internal/usecase"
	"go.uber.org/zap"
)

// NewPipeline assembles the extraction pipeline shared by the HTTP server
// and the queue worker.
func NewPipeline(cfg *config.Config, log *zap.Logger) *usecase.ExtractFramesUseCase {
	var client port.VisionClient
	if cfg.AIEnabled && cfg.OpenAIAPIKey != "" {
		client = vision.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else if cfg.AIEnabled {
		log.Warn("AI_ENABLED is set without OPENAI_API_KEY, annotations will use fallback values")
	}

	return usecase.NewExtractFramesUseCase(
		ffmpeg.NewProber(cfg.FFprobePath, cfg.FFprobeTimeout, log),
		ffmpeg.NewPlanner(cfg.FFmpegPath),
		ffmpeg.NewExtractor(cfg.FFmpegTimeout, log),
		analysis.NewQualityScorer(log),
		analysis.NewSceneSegmenter(cfg.SceneThreshold, log),
		analysis.NewAnnotator(client, cfg.AITimeout, log),
		log,
	)
}
