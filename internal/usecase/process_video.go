package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/framescope/framescope/internal/domain/port"
	"github.com/framescope/framescope/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProcessVideoUseCase handles one queued extraction job end to end. Jobs are
// never retried: a failure is recorded, parked on the DLQ and reported.
type ProcessVideoUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	pipeline  port.FramePipeline
	zipper    port.Zipper
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
}

type ProcessVideoConfig struct {
	TempDir string
}

func NewProcessVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	pipeline port.FramePipeline,
	zipper port.Zipper,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ProcessVideoConfig,
) *ProcessVideoUseCase {
	return &ProcessVideoUseCase{
		repo:      repo,
		storage:   storage,
		pipeline:  pipeline,
		zipper:    zipper,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
	}
}

func (uc *ProcessVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, "ProcessVideoUseCase.Execute")
	defer span.End()

	var msg entity.VideoProcessingMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	switch {
	case errors.Is(err, entity.ErrJobNotFound):
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, msg.Options.Mode)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	case err != nil:
		log.Error("failed to load job record", zap.Error(err))
		return fmt.Errorf("find job: %w", err)
	}

	if job.Terminal() {
		log.Warn("job already finished, dropping redelivery", zap.String("status", string(job.Status)))
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	if err := uc.processVideoPipeline(ctx, job, msg, log); err != nil {
		log.Error("job failed", zap.Error(err))
		uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}
	return nil
}

func (uc *ProcessVideoUseCase) processVideoPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+sourceExt(msg.VideoKey))
	err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath)
	spanDl.End()
	if err != nil {
		return fmt.Errorf("download_video: %w", err)
	}
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	session := &entity.Session{
		ID:        job.ID.String(),
		CreatedAt: job.CreatedAt,
		OutputDir: filepath.Join(workDir, "frames"),
	}
	result, err := uc.pipeline.Run(ctx, session, videoPath, msg.Options)
	if err != nil {
		return fmt.Errorf("extract_frames: %w", err)
	}

	framePaths := make([]string, len(result.Frames))
	for i, name := range result.Frames {
		framePaths[i] = filepath.Join(session.OutputDir, name)
	}

	zipStart := time.Now()
	ctxZip, spanZip := tracer.Start(ctx, "create_zip")
	zipPath := filepath.Join(workDir, "frames.zip")
	err = uc.zipper.CreateZip(ctxZip, framePaths, zipPath)
	spanZip.End()
	if err != nil {
		return fmt.Errorf("create_zip: %w: %v", entity.ErrArchiveFailure, err)
	}
	metrics.StageDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_artifacts")
	defer spanUp.End()

	zipKey := fmt.Sprintf("%s/frames_%s.zip", msg.UserID, job.ID.String())
	if err := uc.uploadZip(ctxUp, zipKey, zipPath); err != nil {
		return err
	}

	resultKey := fmt.Sprintf("%s/result_%s.json", msg.UserID, job.ID.String())
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := uc.storage.UploadResult(ctxUp, resultKey, doc); err != nil {
		return fmt.Errorf("upload_result: %w", err)
	}
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(zipKey, resultKey, result.FrameCount, result.Metadata.Duration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", result.FrameCount),
		zap.Float64("duration_secs", result.Metadata.Duration),
		zap.String("zip_key", zipKey),
		zap.String("result_key", resultKey),
	)
	return nil
}

func (uc *ProcessVideoUseCase) uploadZip(ctx context.Context, key, path string) error {
	zipFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open_zip: %w", err)
	}
	defer zipFile.Close()

	stat, err := zipFile.Stat()
	if err != nil {
		return fmt.Errorf("stat_zip: %w", err)
	}
	if err := uc.storage.UploadZip(ctx, key, zipFile, stat.Size()); err != nil {
		return fmt.Errorf("upload_zip: %w", err)
	}
	return nil
}

func (uc *ProcessVideoUseCase) handleFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	cause error,
	log *zap.Logger,
) {
	reason := failureReason(cause)
	job.MarkFailed(reason)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to FAILED", zap.Error(err))
	}

	if err := uc.dlq.PublishToDLQ(ctx, rawMsg, cause.Error()); err != nil {
		log.Error("failed to publish to DLQ", zap.Error(err))
	}

	uc.publishStatus(ctx, job, log)

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, port.FailureNotice{
			UserEmail: msg.UserEmail,
			JobID:     job.ID.String(),
			VideoKey:  msg.VideoKey,
			Reason:    reason,
		})
	}
}

func (uc *ProcessVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.VideoStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		ZipKey:       job.ZipKey,
		ResultKey:    job.ResultKey,
		FrameCount:   job.FrameCount,
		Duration:     job.VideoDuration,
		ErrorMessage: job.ErrorMessage,
	}
	if err := uc.publisher.PublishStatus(ctx, statusMsg); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// failureReason is the user-facing summary; diagnostics stay in the logs.
func failureReason(err error) string {
	switch {
	case errors.Is(err, entity.ErrInvalidParameter):
		return "invalid extraction options: " + err.Error()
	case errors.Is(err, entity.ErrProbeFailure), errors.Is(err, entity.ErrProbeParseFailure):
		return "could not read video metadata; the file may be corrupted or in an unsupported format"
	case errors.Is(err, entity.ErrEmptyExtraction):
		return "no frames could be extracted from the video"
	case errors.Is(err, entity.ErrExtractionFailure):
		return "error extracting frames; the video file may be corrupted or in an unsupported format"
	case errors.Is(err, entity.ErrArchiveFailure):
		return "error creating ZIP file"
	default:
		return "processing failed: " + err.Error()
	}
}

func sourceExt(key string) string {
	if ext := filepath.Ext(key); ext != "" && len(ext) <= 6 {
		return ext
	}
	return ".mp4"
}
