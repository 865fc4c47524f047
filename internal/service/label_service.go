package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/domain/batching"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/platform/metrics"
	"github.com/phrazzld/labelhive-api/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultAggregateConcurrency bounds concurrent item writes during aggregation.
const DefaultAggregateConcurrency = 8

// SubmitLabelsInput is the payload of SubmitLabels.
type SubmitLabelsInput struct {
	ItemID string    `validate:"required"`
	UserID uuid.UUID `validate:"required"`
	Labels []string
}

// ItemAggregate is the consensus ordering written for one item.
type ItemAggregate struct {
	ItemID         uuid.UUID `json:"item_id"`
	BatchNumber    int       `json:"batch_number"`
	Submissions    int       `json:"submissions"`
	AssignedLabels []string  `json:"assigned_labels"`
}

// LabelService records label submissions and aggregates them per item.
type LabelService struct {
	stores      store.Stores
	transactor  store.Transactor
	validate    *validator.Validate
	metrics     *metrics.Manager
	concurrency int
	logger      *slog.Logger
}

// NewLabelService creates a LabelService. m may be nil.
func NewLabelService(
	stores store.Stores,
	transactor store.Transactor,
	m *metrics.Manager,
	logger *slog.Logger,
) (*LabelService, error) {
	if transactor == nil {
		return nil, domain.NewValidationError("transactor", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LabelService{
		stores:      stores,
		transactor:  transactor,
		validate:    validator.New(),
		metrics:     m,
		concurrency: DefaultAggregateConcurrency,
		logger:      logger.With(slog.String("component", "label_service")),
	}, nil
}

// SubmitLabels stores the user's labels for an item, replacing any earlier
// submission. The user must hold an uncompleted claim on the item's batch,
// and every value must belong to the job's label set when it has one.
func (s *LabelService) SubmitLabels(ctx context.Context, in SubmitLabelsInput) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.validate.Struct(in); err != nil {
		return nil, invalidInput(err)
	}
	itemID, err := parseID("item_id", in.ItemID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateLabelValues(in.Labels); err != nil {
		return nil, err
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		item, err := tx.Items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		job, err := tx.Jobs.GetByID(ctx, item.JobID)
		if err != nil {
			return err
		}
		for _, v := range in.Labels {
			if !job.AcceptsLabel(v) {
				return fmt.Errorf("%w: %q", ErrLabelNotInJob, v)
			}
		}

		batch, err := findBatch(ctx, tx.Batches, item.JobID, item.BatchNumber)
		if err != nil {
			return err
		}
		// Locks the claim so a concurrent sweep cannot revoke it underneath us.
		claim, err := tx.Batches.GetClaimForUpdate(ctx, batch.ID, in.UserID)
		if err != nil {
			if errors.Is(err, store.ErrClaimNotFound) {
				return ErrNoActiveClaim
			}
			return err
		}
		if claim.Completed {
			return ErrNoActiveClaim
		}

		return tx.Items.UpsertLabels(ctx, itemID, in.UserID, in.Labels)
	})
	if err != nil {
		log.Debug("label submission rejected",
			slog.String("item_id", itemID.String()),
			slog.String("user_id", in.UserID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.RecordLabelSubmission()
	out := make([]string, len(in.Labels))
	copy(out, in.Labels)
	return out, nil
}

func findBatch(ctx context.Context, batches store.BatchStore, jobID uuid.UUID, number int) (*domain.Batch, error) {
	all, err := batches.FindByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.BatchNumber == number {
			return b, nil
		}
	}
	return nil, store.ErrBatchNotFound
}

// AggregateJobLabels ranks the submissions on every item of a job and
// writes the ranking back as the item's assigned labels. Raw submissions are
// kept, so running it again recomputes the same result.
func (s *LabelService) AggregateJobLabels(ctx context.Context, jobID string) ([]ItemAggregate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	id, err := parseID("job_id", jobID)
	if err != nil {
		return nil, err
	}
	if _, err := s.stores.Jobs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.stores.Items.FindByJob(ctx, id)
	if err != nil {
		return nil, err
	}

	results := make([]ItemAggregate, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, item := range items {
		g.Go(func() error {
			ranked := batching.RankLabels(item.Submissions)
			if err := s.stores.Items.SetAssignedLabels(gctx, item.ID, ranked); err != nil {
				return fmt.Errorf("item %s: %w", item.ID, err)
			}
			results[i] = ItemAggregate{
				ItemID:         item.ID,
				BatchNumber:    item.BatchNumber,
				Submissions:    len(item.Submissions),
				AssignedLabels: ranked,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("aggregation failed",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.RecordItemsAggregated(len(results))
	log.Info("job labels aggregated",
		slog.String("job_id", id.String()),
		slog.Int("items", len(results)))

	return results, nil
}
