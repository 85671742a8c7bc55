package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/framescope/framescope/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, user_id, video_key, zip_key, result_key, mode, status,
	frame_count, file_size, video_duration, error_message,
	created_at, updated_at, completed_at`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `INSERT INTO processing_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.ZipKey, job.ResultKey,
		string(job.Mode), string(job.Status),
		job.FrameCount, job.FileSize, job.VideoDuration, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// Update persists the mutable lifecycle fields. Identity, owner, source and
// mode are fixed at creation.
func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE processing_jobs SET
			status=$2, zip_key=$3, result_key=$4, frame_count=$5,
			video_duration=$6, error_message=$7, updated_at=$8, completed_at=$9
		WHERE id=$1`,
		job.ID, string(job.Status), job.ZipKey, job.ResultKey, job.FrameCount,
		job.VideoDuration, job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, entity.ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM processing_jobs WHERE id=$1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find job %s: %w", id, entity.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return job, nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	job := &entity.Job{}
	var mode, status string
	if err := row.Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.ZipKey, &job.ResultKey, &mode, &status,
		&job.FrameCount, &job.FileSize, &job.VideoDuration, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	); err != nil {
		return nil, err
	}
	job.Mode = entity.ExtractionMode(mode)
	job.Status = entity.JobStatus(status)
	return job, nil
}
