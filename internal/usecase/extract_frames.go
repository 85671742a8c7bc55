package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/framescope/framescope/internal/analysis"
	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/domain/port"
	"github.com/framescope/framescope/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ReportedAnalysis caps the per-frame records returned in a result.
const ReportedAnalysis = 20

// ExtractFramesUseCase runs one session: probe, extract, score, optional blur
// removal, optional scene grouping and optional AI annotation.
type ExtractFramesUseCase struct {
	prober    port.MetadataProber
	planner   port.ExtractionPlanner
	extractor port.FrameExtractor
	scorer    port.QualityScorer
	segmenter port.SceneSegmenter
	annotator port.FrameAnnotator
	logger    *zap.Logger
}

func NewExtractFramesUseCase(
	prober port.MetadataProber,
	planner port.ExtractionPlanner,
	extractor port.FrameExtractor,
	scorer port.QualityScorer,
	segmenter port.SceneSegmenter,
	annotator port.FrameAnnotator,
	logger *zap.Logger,
) *ExtractFramesUseCase {
	return &ExtractFramesUseCase{
		prober:    prober,
		planner:   planner,
		extractor: extractor,
		scorer:    scorer,
		segmenter: segmenter,
		annotator: annotator,
		logger:    logger,
	}
}

// Run executes the pipeline for session. The source file is removed when Run
// returns. On error the session directory is removed as well, so a failed
// session leaves nothing behind.
func (uc *ExtractFramesUseCase) Run(ctx context.Context, session *entity.Session, sourcePath string, req entity.ExtractionRequest) (result *entity.PipelineResult, err error) {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ExtractFramesUseCase.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("extraction.mode", string(req.Mode)),
	)

	log := uc.logger.With(zap.String("session_id", session.ID), zap.String("mode", string(req.Mode)))
	started := time.Now()

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			result, err = nil, fmt.Errorf("%w: %v", entity.ErrPipelineFailure, r)
		}
		if sourcePath != "" {
			if rmErr := os.Remove(sourcePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn("failed to remove source video", zap.Error(rmErr))
			}
		}
		if err != nil {
			uc.discard(session, log)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.SessionsTotal.WithLabelValues(outcomeOf(err)).Inc()
			return
		}
		metrics.SessionsTotal.WithLabelValues("completed").Inc()
		metrics.StageDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(session.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create session dir: %v", entity.ErrPipelineFailure, err)
	}

	var meta entity.VideoMetadata
	if err := uc.stage(ctx, "probe", func(ctx context.Context) error {
		var err error
		meta, err = uc.prober.Probe(ctx, sourcePath)
		return err
	}); err != nil {
		log.Error("probe failed", zap.Error(err))
		return nil, err
	}

	command, err := uc.planner.Plan(req, sourcePath, session.OutputDir)
	if err != nil {
		return nil, err
	}

	var frames []entity.FrameFile
	if err := uc.stage(ctx, "extract", func(ctx context.Context) error {
		var err error
		frames, err = uc.extractor.Extract(ctx, command, session.OutputDir)
		return err
	}); err != nil {
		log.Error("frame extraction failed", zap.Error(err))
		return nil, err
	}
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	var analyses []entity.FrameAnalysis
	_ = uc.stage(ctx, "score", func(context.Context) error {
		analyses = scorePrefix(uc.scorer, frames, analysis.QualityPrefix)
		return nil
	})

	if req.RemoveBlurry {
		var removed int
		frames, analyses, removed = uc.removeBlurry(frames, analyses, log)
		metrics.BlurryFramesRemovedTotal.Add(float64(removed))
		log.Info("blurry frames removed", zap.Int("removed", removed), zap.Int("remaining", len(frames)))
	}

	// Blur removal is complete here; both passes below see the reduced set.
	var (
		scenes      []entity.Scene
		annotations []entity.AIAnnotation
		wg          sync.WaitGroup
		panicMu     sync.Mutex
		panicked    any
	)
	guard := func() {
		if r := recover(); r != nil {
			panicMu.Lock()
			panicked = r
			panicMu.Unlock()
		}
	}
	if req.DetectScenes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer guard()
			_ = uc.stage(ctx, "scenes", func(context.Context) error {
				scenes = uc.segmenter.Segment(frames)
				return nil
			})
		}()
	}
	if req.EnableAI {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer guard()
			_ = uc.stage(ctx, "ai", func(ctx context.Context) error {
				annotations = uc.annotator.Annotate(ctx, frames)
				countAnnotations(annotations)
				return nil
			})
		}()
	}
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}

	if annotations != nil {
		markKeyframes(analyses, annotations)
	}

	reported := analyses
	if len(reported) > ReportedAnalysis {
		reported = reported[:ReportedAnalysis]
	}

	result = &entity.PipelineResult{
		SessionID:     session.ID,
		Metadata:      meta,
		FrameCount:    len(frames),
		Frames:        entity.FrameNames(frames),
		Analysis:      reported,
		Scenes:        scenes,
		AIAnnotations: annotations,
	}

	log.Info("pipeline completed",
		zap.Int("frame_count", result.FrameCount),
		zap.Int("scenes", len(scenes)),
		zap.Int("ai_annotations", len(annotations)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (uc *ExtractFramesUseCase) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// removeBlurry deletes blurry frames from disk and drops them from both lists.
// A frame whose file cannot be deleted stays in the set so that every list
// keeps matching the directory.
func (uc *ExtractFramesUseCase) removeBlurry(frames []entity.FrameFile, analyses []entity.FrameAnalysis, log *zap.Logger) ([]entity.FrameFile, []entity.FrameAnalysis, int) {
	blurry := make(map[string]bool)
	for _, a := range analyses {
		if a.IsBlurry {
			blurry[a.Filename] = true
		}
	}

	gone := make(map[string]bool, len(blurry))
	keptFrames := make([]entity.FrameFile, 0, len(frames))
	for _, f := range frames {
		if blurry[f.Name] {
			err := os.Remove(f.Path)
			if err == nil || errors.Is(err, os.ErrNotExist) {
				gone[f.Name] = true
				continue
			}
			log.Warn("failed to remove blurry frame", zap.String("frame", f.Name), zap.Error(err))
		}
		keptFrames = append(keptFrames, f)
	}

	keptAnalyses := make([]entity.FrameAnalysis, 0, len(analyses))
	for _, a := range analyses {
		if !gone[a.Filename] {
			keptAnalyses = append(keptAnalyses, a)
		}
	}
	return keptFrames, keptAnalyses, len(gone)
}

func (uc *ExtractFramesUseCase) discard(session *entity.Session, log *zap.Logger) {
	if err := os.RemoveAll(session.OutputDir); err != nil {
		log.Warn("failed to remove session dir", zap.String("dir", session.OutputDir), zap.Error(err))
	}
}

func scorePrefix(scorer port.QualityScorer, frames []entity.FrameFile, limit int) []entity.FrameAnalysis {
	if len(frames) > limit {
		frames = frames[:limit]
	}
	out := make([]entity.FrameAnalysis, 0, len(frames))
	for _, f := range frames {
		out = append(out, scorer.Score(f))
	}
	return out
}

func markKeyframes(analyses []entity.FrameAnalysis, annotations []entity.AIAnnotation) {
	keyframes := make(map[string]bool, len(annotations))
	for _, a := range annotations {
		if a.IsKeyframe {
			keyframes[a.Filename] = true
		}
	}
	for i := range analyses {
		if keyframes[analyses[i].Filename] {
			analyses[i].IsKeyframe = true
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, entity.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, entity.ErrProbeFailure), errors.Is(err, entity.ErrProbeParseFailure):
		return "probe_failed"
	case errors.Is(err, entity.ErrEmptyExtraction):
		return "empty_extraction"
	case errors.Is(err, entity.ErrExtractionFailure):
		return "extraction_failed"
	default:
		return "pipeline_failed"
	}
}

func countAnnotations(annotations []entity.AIAnnotation) {
	for _, a := range annotations {
		if a.Fallback {
			metrics.AIAnnotationsTotal.WithLabelValues("fallback").Inc()
			continue
		}
		metrics.AIAnnotationsTotal.WithLabelValues("ok").Inc()
	}
}
