package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/platform/metrics"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// UploadItemsInput is the payload of UploadItems.
type UploadItemsInput struct {
	JobID     string    `validate:"required"`
	UserID    uuid.UUID `validate:"required"`
	FileNames []string  `validate:"dive,required,max=1024"`
}

// UploadResult is what an upload created.
type UploadResult struct {
	JobID        uuid.UUID
	TotalBatches int
	Items        []*domain.Item
	Batches      []*domain.Batch
}

// Progress reports how far a job has come.
type Progress struct {
	JobID           uuid.UUID `json:"job_id"`
	CompletedClaims int       `json:"completed_claims"`
	TotalBatches    int       `json:"total_batches"`
	Percent         float64   `json:"percent"`
}

// SweepReport summarizes one expiry sweep.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Revoked int `json:"revoked"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// errClaimSkipped marks an expired claim that changed state between the scan
// and the revoke.
var errClaimSkipped = errors.New("claim no longer expired")

// BatchService partitions uploads into batches and manages the claim
// lifecycle on them.
type BatchService struct {
	stores     store.Stores
	transactor store.Transactor
	rating     *RatingService
	params     batching.Params
	validate   *validator.Validate
	metrics    *metrics.Manager
	now        func() time.Time
	logger     *slog.Logger
}

// BatchServiceOption configures optional BatchService dependencies.
type BatchServiceOption func(*BatchService)

// WithBatchClock replaces the wall clock, for tests.
func WithBatchClock(now func() time.Time) BatchServiceOption {
	return func(s *BatchService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBatchMetrics attaches a metrics manager.
func WithBatchMetrics(m *metrics.Manager) BatchServiceOption {
	return func(s *BatchService) {
		s.metrics = m
	}
}

// NewBatchService creates a BatchService.
func NewBatchService(
	stores store.Stores,
	transactor store.Transactor,
	rating *RatingService,
	params batching.Params,
	logger *slog.Logger,
	opts ...BatchServiceOption,
) (*BatchService, error) {
	if transactor == nil {
		return nil, domain.NewValidationError("transactor", "cannot be nil", domain.ErrValidation)
	}
	if rating == nil {
		return nil, domain.NewValidationError("rating", "cannot be nil", domain.ErrValidation)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &BatchService{
		stores:     stores,
		transactor: transactor,
		rating:     rating,
		params:     params,
		validate:   validator.New(),
		now:        time.Now,
		logger:     logger.With(slog.String("component", "batch_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadItems partitions the uploaded files of a job into batches. It
// creates the items, the batch records and sets the job's total batch count
// in one transaction. Only the job author may upload, and only once.
func (s *BatchService) UploadItems(ctx context.Context, in UploadItemsInput) (*UploadResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}
	jobID, err := parseID("job_id", in.JobID)
	if err != nil {
		return nil, err
	}

	assignments, totalBatches := batching.Partition(len(in.FileNames), s.params.BatchSize)
	result := &UploadResult{JobID: jobID, TotalBatches: totalBatches}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		job, err := tx.Jobs.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.AuthorID != in.UserID {
			return ErrNotJobAuthor
		}
		if job.HasItems() {
			return ErrJobAlreadyPartitioned
		}

		// The conditional update is what serializes concurrent uploads.
		if err := tx.Jobs.SetTotalBatches(ctx, jobID, totalBatches); err != nil {
			if errors.Is(err, store.ErrUpdateFailed) {
				return ErrJobAlreadyPartitioned
			}
			return err
		}

		batches := make([]*domain.Batch, 0, totalBatches)
		for n := 0; n < totalBatches; n++ {
			batch, err := domain.NewBatch(jobID, n)
			if err != nil {
				return err
			}
			if err := tx.Batches.Create(ctx, batch); err != nil {
				if store.IsDuplicateError(err) {
					return ErrJobAlreadyPartitioned
				}
				return err
			}
			batches = append(batches, batch)
		}

		items := make([]*domain.Item, 0, len(in.FileNames))
		for i, name := range in.FileNames {
			item, err := domain.NewItem(jobID, assignments[i], name)
			if err != nil {
				return invalidInput(err)
			}
			item.Position = i
			items = append(items, item)
		}
		if len(items) > 0 {
			if err := tx.Items.CreateMultiple(ctx, items); err != nil {
				return err
			}
		}

		result.Batches = batches
		result.Items = items
		return nil
	})
	if err != nil {
		log.Debug("upload rejected",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		return nil, NewBatchServiceError("upload_items", "failed to partition items", err)
	}

	s.metrics.RecordItemsUploaded(len(result.Items))
	log.Info("items partitioned",
		slog.String("job_id", jobID.String()),
		slog.Int("items", len(result.Items)),
		slog.Int("total_batches", totalBatches))

	return result, nil
}

// AvailableBatches lists the batches of a job that userID may claim, in
// batch number order. An empty result is not an error.
func (s *BatchService) AvailableBatches(
	ctx context.Context,
	userID uuid.UUID,
	jobID string,
) ([]*domain.Batch, error) {
	job, batches, err := s.loadJobBatches(ctx, jobID)
	if err != nil {
		return nil, NewBatchServiceError("available_batches", "failed to load batches", err)
	}
	return batching.Available(batches, userID, job.NumLabellersRequired), nil
}

// AllocateNextBatch returns the first batch of a job that userID may claim,
// or nil when there is none.
func (s *BatchService) AllocateNextBatch(
	ctx context.Context,
	userID uuid.UUID,
	jobID string,
) (*domain.Batch, error) {
	job, batches, err := s.loadJobBatches(ctx, jobID)
	if err != nil {
		return nil, NewBatchServiceError("allocate_next_batch", "failed to load batches", err)
	}

	next := batching.Next(batches, userID, job.NumLabellersRequired)
	if next == nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("no batch available",
			slog.String("job_id", job.ID.String()),
			slog.String("user_id", userID.String()))
	}
	return next, nil
}

func (s *BatchService) loadJobBatches(ctx context.Context, rawJobID string) (*domain.Job, []*domain.Batch, error) {
	jobID, err := parseID("job_id", rawJobID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.stores.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	batches, err := s.stores.Batches.FindByJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, batches, nil
}

// ClaimBatch adds a pending claim for userID that expires after the
// configured TTL, and returns the batch with the new claim.
func (s *BatchService) ClaimBatch(ctx context.Context, batchID string, userID uuid.UUID) (*domain.Batch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	id, err := parseID("batch_id", batchID)
	if err != nil {
		s.metrics.RecordClaimAttempt(string(KindOf(err)))
		return nil, err
	}

	var claimed *domain.Batch
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		batch, err := tx.Batches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		job, err := tx.Jobs.GetByID(ctx, batch.JobID)
		if err != nil {
			return err
		}

		expiresAt := s.now().Add(s.params.ClaimTTL)
		if _, err := tx.Batches.AppendClaim(ctx, id, userID, expiresAt, job.NumLabellersRequired); err != nil {
			return err
		}

		claimed, err = tx.Batches.GetByID(ctx, id)
		return err
	})
	if err != nil {
		kind := KindOf(err)
		s.metrics.RecordClaimAttempt(string(kind))
		log.Debug("claim rejected",
			slog.String("batch_id", id.String()),
			slog.String("user_id", userID.String()),
			slog.String("kind", string(kind)))
		return nil, NewBatchServiceError("claim_batch", "failed to claim batch", err)
	}

	s.metrics.RecordClaimAttempt("ok")
	log.Info("batch claimed",
		slog.String("batch_id", id.String()),
		slog.String("user_id", userID.String()))

	return claimed, nil
}

// UnclaimBatch removes userID's pending claim together with every label
// they submitted on the batch's items. A completed claim cannot be removed.
func (s *BatchService) UnclaimBatch(ctx context.Context, batchID string, userID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	id, err := parseID("batch_id", batchID)
	if err != nil {
		return err
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		batch, err := tx.Batches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		claim, err := tx.Batches.GetClaimForUpdate(ctx, id, userID)
		if err != nil {
			return err
		}
		if claim.Completed {
			return ErrClaimCompleted
		}
		return revokeClaim(ctx, tx, batch.JobID, batch.BatchNumber, id, userID)
	})
	if err != nil {
		log.Warn("unclaim failed",
			slog.String("batch_id", id.String()),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return NewBatchServiceError("unclaim_batch", "failed to release claim", err)
	}

	s.metrics.RecordClaimRevoked()
	log.Info("batch unclaimed",
		slog.String("batch_id", id.String()),
		slog.String("user_id", userID.String()))
	return nil
}

// revokeClaim deletes the user's labels on the batch and then the claim.
// It must run inside a transaction so a failed removal restores the labels.
func revokeClaim(
	ctx context.Context,
	tx store.Stores,
	jobID uuid.UUID,
	batchNumber int,
	batchID, userID uuid.UUID,
) error {
	if _, err := tx.Items.DeleteLabelsByUser(ctx, jobID, batchNumber, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrLabelCleanupFailed, err)
	}
	if err := tx.Batches.RemoveClaim(ctx, batchID, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrClaimRemovalFailed, err)
	}
	return nil
}

// CompleteBatch marks userID's claim completed and credits the job reward
// and one rating unit to the user, in one transaction.
func (s *BatchService) CompleteBatch(ctx context.Context, batchID string, userID uuid.UUID) (*domain.Batch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}

	var completed *domain.Batch
	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		batch, err := tx.Batches.GetByID(ctx, id)
		if err != nil {
			return err
		}
		job, err := tx.Jobs.GetByID(ctx, batch.JobID)
		if err != nil {
			return err
		}
		if err := tx.Batches.MarkCompleted(ctx, id, userID); err != nil {
			return err
		}
		if err := s.rating.RecordCompletion(ctx, tx.Users, userID, job.Reward); err != nil {
			return err
		}

		completed, err = tx.Batches.GetByID(ctx, id)
		return err
	})
	if err != nil {
		log.Debug("completion rejected",
			slog.String("batch_id", id.String()),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, NewBatchServiceError("complete_batch", "failed to complete batch", err)
	}

	s.metrics.RecordBatchCompleted()
	log.Info("batch completed",
		slog.String("batch_id", id.String()),
		slog.String("user_id", userID.String()))

	return completed, nil
}

// ComputeProgress reports completed claims against total batches.
func (s *BatchService) ComputeProgress(ctx context.Context, jobID string) (*Progress, error) {
	id, err := parseID("job_id", jobID)
	if err != nil {
		return nil, err
	}

	job, err := s.stores.Jobs.GetByID(ctx, id)
	if err != nil {
		return nil, NewBatchServiceError("compute_progress", "failed to load job", err)
	}
	completed, err := s.stores.Batches.CountCompletedClaims(ctx, id)
	if err != nil {
		return nil, NewBatchServiceError("compute_progress", "failed to count completed claims", err)
	}

	return &Progress{
		JobID:           id,
		CompletedClaims: completed,
		TotalBatches:    job.TotalBatches,
		Percent:         batching.ProgressPercent(completed, job.TotalBatches),
	}, nil
}

// GetBatchItems returns the items of a batch. Only claim holders and the
// job author may read them.
func (s *BatchService) GetBatchItems(ctx context.Context, batchID string, userID uuid.UUID) ([]*domain.Item, error) {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}

	batch, err := s.stores.Batches.GetByID(ctx, id)
	if err != nil {
		return nil, NewBatchServiceError("get_batch_items", "failed to load batch", err)
	}
	if !batch.HasClaim(userID) {
		job, err := s.stores.Jobs.GetByID(ctx, batch.JobID)
		if err != nil {
			return nil, NewBatchServiceError("get_batch_items", "failed to load job", err)
		}
		if job.AuthorID != userID {
			return nil, NewBatchServiceError("get_batch_items", "batch not held by user", domain.ErrUnauthorized)
		}
	}

	items, err := s.stores.Items.FindByJobAndBatch(ctx, batch.JobID, batch.BatchNumber)
	if err != nil {
		return nil, NewBatchServiceError("get_batch_items", "failed to load items", err)
	}
	return items, nil
}

// RunExpirySweep revokes every pending claim whose expiry has passed. Each
// claim is revoked in its own transaction after re-checking it under lock;
// a failure is logged and counted and the sweep moves on. The returned
// error is non-nil only when the scan itself fails or ctx is cancelled.
func (s *BatchService) RunExpirySweep(ctx context.Context) (SweepReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	started := time.Now()
	now := s.now()

	var report SweepReport
	defer func() {
		s.metrics.RecordSweep(report.Failed, time.Since(started))
	}()

	expired, err := s.stores.Batches.FindExpiredClaims(ctx, now)
	if err != nil {
		log.Error("failed to scan for expired claims", slog.String("error", err.Error()))
		return report, NewBatchServiceError("run_expiry_sweep", "failed to scan claims", err)
	}
	report.Scanned = len(expired)

	for _, ec := range expired {
		if err := ctx.Err(); err != nil {
			log.Warn("expiry sweep interrupted",
				slog.Int("remaining", report.Scanned-report.Revoked-report.Skipped-report.Failed))
			return report, err
		}

		err := s.transactor.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
			claim, err := tx.Batches.GetClaimForUpdate(ctx, ec.BatchID, ec.UserID)
			if err != nil {
				if errors.Is(err, store.ErrClaimNotFound) {
					return errClaimSkipped
				}
				return err
			}
			if !claim.IsExpired(now) {
				return errClaimSkipped
			}
			return revokeClaim(ctx, tx, ec.JobID, ec.BatchNumber, ec.BatchID, ec.UserID)
		})

		switch {
		case err == nil:
			report.Revoked++
			s.metrics.RecordClaimRevoked()
			log.Info("expired claim revoked",
				slog.String("batch_id", ec.BatchID.String()),
				slog.String("user_id", ec.UserID.String()),
				slog.Time("expired_at", ec.ExpiresAt))
		case errors.Is(err, errClaimSkipped):
			report.Skipped++
		default:
			report.Failed++
			log.Error("failed to revoke expired claim",
				slog.String("batch_id", ec.BatchID.String()),
				slog.String("user_id", ec.UserID.String()),
				slog.String("error", err.Error()))
		}
	}

	log.Info("expiry sweep finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("revoked", report.Revoked),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))

	return report, nil
}

// parseID parses a UUID, reporting a malformed identifier for field.
func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q", ErrMalformedIdentifier, field, raw)
	}
	return id, nil
}
