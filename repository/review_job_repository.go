package repository

import (
	"context"
	"time"

	"adgm-review-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewJobRepository handles database operations for review jobs
type ReviewJobRepository struct {
	db *pgxpool.Pool
}

// NewReviewJobRepository creates a new review job repository
func NewReviewJobRepository(db *pgxpool.Pool) *ReviewJobRepository {
	return &ReviewJobRepository{db: db}
}

// Create creates a new review job
func (r *ReviewJobRepository) Create(ctx context.Context, job *models.ReviewJob) error {
	query := `
		INSERT INTO review_jobs (
			id, status, current_step, steps, input_keys, output_keys, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		job.ID,
		job.Status,
		job.CurrentStep,
		job.Steps,
		job.InputKeys,
		job.OutputKeys,
		job.ErrorMessage,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	return err
}

// GetByID retrieves a review job by ID
func (r *ReviewJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReviewJob, error) {
	job := &models.ReviewJob{}
	query := `
		SELECT id, status, current_step, steps, input_keys, output_keys,
			report, error_message, created_at, updated_at, completed_at
		FROM review_jobs
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.InputKeys,
		&job.OutputKeys,
		&job.ReportJSON,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)

	if err != nil {
		return nil, err
	}

	if job.Steps == nil {
		job.Steps = make(models.ReviewSteps, 0)
	}

	return job, nil
}

// UpdateStatus updates the status of a review job
func (r *ReviewJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReviewJobStatus) error {
	query := `
		UPDATE review_jobs SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

// UpdateProgress updates the current step and step list of a review job
func (r *ReviewJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.ReviewSteps) error {
	query := `
		UPDATE review_jobs SET
			current_step = $2,
			steps = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, currentStep, steps)
	return err
}

// Complete marks a review job as completed and stores the consolidated
// report and the keys of the produced artifacts
func (r *ReviewJobRepository) Complete(ctx context.Context, id uuid.UUID, reportJSON string, outputKeys models.StringList) error {
	now := time.Now()
	query := `
		UPDATE review_jobs SET
			status = $2,
			report = $3,
			output_keys = $4,
			completed_at = $5,
			updated_at = $5
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.JobStatusCompleted, reportJSON, outputKeys, now)
	return err
}

// Fail marks a review job as failed
func (r *ReviewJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE review_jobs SET
			status = $2,
			error_message = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.JobStatusFailed, errorMessage)
	return err
}
