package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx, logger: s.logger}
}

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	labels, err := json.Marshal(job.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode job labels: %w", err)
	}

	query := `
		INSERT INTO jobs (id, author_id, title, description, labels, num_labellers_required,
			total_batches, reward, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.AuthorID,
		job.Title,
		job.Description,
		labels,
		job.NumLabellersRequired,
		job.TotalBatches,
		job.Reward,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("job author does not exist",
				slog.String("job_id", job.ID.String()),
				slog.String("author_id", job.AuthorID.String()))
			return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, job.AuthorID)
		}
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Info("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("author_id", job.AuthorID.String()))
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, author_id, title, description, labels, num_labellers_required,
			total_batches, reward, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	var job domain.Job
	var labels []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&job.AuthorID,
		&job.Title,
		&job.Description,
		&labels,
		&job.NumLabellersRequired,
		&job.TotalBatches,
		&job.Reward,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}

	if err := json.Unmarshal(labels, &job.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode job labels: %w", err)
	}
	if job.Labels == nil {
		job.Labels = []string{}
	}

	return &job, nil
}

// SetTotalBatches implements store.JobStore.SetTotalBatches
func (s *PostgresJobStore) SetTotalBatches(ctx context.Context, id uuid.UUID, totalBatches int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET total_batches = $1, updated_at = $2
		WHERE id = $3 AND total_batches = 0
	`
	result, err := s.db.ExecContext(ctx, query, totalBatches, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to set total batches",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Distinguish a missing job from one that already has batches.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).
		Scan(&exists); err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrJobNotFound
	}
	return fmt.Errorf("%w: job %s already has batches", store.ErrUpdateFailed, id)
}
