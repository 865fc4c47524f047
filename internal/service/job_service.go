package service

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// CreateJobInput is the payload of CreateJob.
type CreateJobInput struct {
	AuthorID             uuid.UUID `validate:"required"`
	Title                string    `validate:"required,max=200"`
	Description          string    `validate:"max=4000"`
	Labels               []string  `validate:"max=64"`
	NumLabellersRequired int       `validate:"gte=1,lte=1000"`
	Reward               int64     `validate:"gte=0"`
}

// JobService creates and reads jobs.
type JobService struct {
	jobs     store.JobStore
	validate *validator.Validate
	logger   *slog.Logger
}

// NewJobService creates a JobService.
func NewJobService(jobs store.JobStore, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobs:     jobs,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "job_service")),
	}
}

// CreateJob validates and stores a new job with no items.
func (s *JobService) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}

	job, err := domain.NewJob(in.AuthorID, in.Title, in.Description, in.Labels, in.NumLabellersRequired, in.Reward)
	if err != nil {
		return nil, invalidInput(err)
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		log.Error("failed to create job",
			slog.String("author_id", in.AuthorID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("author_id", job.AuthorID.String()))
	return job, nil
}

// GetJob returns a job by its identifier.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	id, err := parseID("job_id", jobID)
	if err != nil {
		return nil, err
	}
	return s.jobs.GetByID(ctx, id)
}
