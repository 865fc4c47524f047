package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// PostgresItemStore implements the store.ItemStore interface
// using a PostgreSQL database as the storage backend.
// Label submissions live in item_labels, one row per (item, user).
type PostgresItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresItemStore creates a new PostgreSQL implementation of the ItemStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresItemStore(db store.DBTX, logger *slog.Logger) *PostgresItemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
	}
}

// Ensure PostgresItemStore implements store.ItemStore interface
var _ store.ItemStore = (*PostgresItemStore)(nil)

// WithTx implements store.ItemStore.WithTx
func (s *PostgresItemStore) WithTx(tx *sql.Tx) store.ItemStore {
	return &PostgresItemStore{db: tx, logger: s.logger}
}

// CreateMultiple implements store.ItemStore.CreateMultiple
func (s *PostgresItemStore) CreateMultiple(ctx context.Context, items []*domain.Item) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			log.Warn("item validation failed during create",
				slog.String("error", err.Error()),
				slog.String("item_id", item.ID.String()))
			return err
		}
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO items (id, job_id, batch_number, position, file_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		log.Error("failed to prepare item insert", slog.String("error", err.Error()))
		return MapError(err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.JobID,
			item.BatchNumber,
			item.Position,
			item.FileName,
			item.CreatedAt,
		); err != nil {
			log.Error("failed to insert item",
				slog.String("error", err.Error()),
				slog.String("item_id", item.ID.String()),
				slog.String("job_id", item.JobID.String()))
			return MapError(err)
		}
	}

	log.Debug("items created",
		slog.String("job_id", items[0].JobID.String()),
		slog.Int("count", len(items)))
	return nil
}

const selectItemColumns = `
	SELECT id, job_id, batch_number, position, file_name, assigned_labels, created_at
	FROM items
`

// GetByID implements store.ItemStore.GetByID
func (s *PostgresItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	items, err := s.queryItems(ctx, selectItemColumns+` WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to get item by ID",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrItemNotFound
	}
	return items[0], nil
}

// FindByJobAndBatch implements store.ItemStore.FindByJobAndBatch
func (s *PostgresItemStore) FindByJobAndBatch(
	ctx context.Context,
	jobID uuid.UUID,
	batchNumber int,
) ([]*domain.Item, error) {
	return s.queryItems(ctx,
		selectItemColumns+` WHERE job_id = $1 AND batch_number = $2 ORDER BY position`,
		jobID, batchNumber)
}

// FindByJob implements store.ItemStore.FindByJob
func (s *PostgresItemStore) FindByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error) {
	return s.queryItems(ctx, selectItemColumns+` WHERE job_id = $1 ORDER BY position`, jobID)
}

// queryItems runs an item query and attaches each item's submissions.
func (s *PostgresItemStore) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.Item, 0)
	byID := make(map[uuid.UUID]*domain.Item)
	ids := make([]uuid.UUID, 0)

	for rows.Next() {
		var item domain.Item
		var assigned []byte
		if err := rows.Scan(
			&item.ID,
			&item.JobID,
			&item.BatchNumber,
			&item.Position,
			&item.FileName,
			&assigned,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		if assigned != nil {
			if err := json.Unmarshal(assigned, &item.AssignedLabels); err != nil {
				return nil, fmt.Errorf("failed to decode assigned labels: %w", err)
			}
		}
		item.Submissions = []domain.LabelSubmission{}

		items = append(items, &item)
		byID[item.ID] = &item
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rows: %w", err)
	}

	if len(ids) == 0 {
		return items, nil
	}

	if err := s.attachSubmissions(ctx, ids, byID); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresItemStore) attachSubmissions(
	ctx context.Context,
	ids []uuid.UUID,
	byID map[uuid.UUID]*domain.Item,
) error {
	idText := make([]string, len(ids))
	for i, id := range ids {
		idText[i] = id.String()
	}
	encoded, err := json.Marshal(idText)
	if err != nil {
		return fmt.Errorf("failed to encode item ids: %w", err)
	}

	// created_at then user_id gives a stable first-submitted order
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, user_id, labels, created_at, updated_at
		FROM item_labels
		WHERE item_id IN (SELECT jsonb_array_elements_text($1::jsonb)::uuid)
		ORDER BY created_at, user_id
	`, encoded)
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var itemID uuid.UUID
		var sub domain.LabelSubmission
		var labels []byte
		if err := rows.Scan(&itemID, &sub.UserID, &labels, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan label row: %w", err)
		}
		if err := json.Unmarshal(labels, &sub.Labels); err != nil {
			return fmt.Errorf("failed to decode labels: %w", err)
		}
		if item, ok := byID[itemID]; ok {
			item.Submissions = append(item.Submissions, sub)
		}
	}
	return rows.Err()
}

// UpsertLabels implements store.ItemStore.UpsertLabels
func (s *PostgresItemStore) UpsertLabels(ctx context.Context, itemID, userID uuid.UUID, labels []string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	encoded, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO item_labels (item_id, user_id, labels, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (item_id, user_id)
		DO UPDATE SET labels = EXCLUDED.labels, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, itemID, userID, encoded, now); err != nil {
		if IsForeignKeyViolation(err) {
			if constraintName(err) == "item_labels_item_id_fkey" {
				return store.ErrItemNotFound
			}
			return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, userID)
		}
		log.Error("failed to upsert labels",
			slog.String("error", err.Error()),
			slog.String("item_id", itemID.String()),
			slog.String("user_id", userID.String()))
		return MapError(err)
	}

	log.Debug("labels recorded",
		slog.String("item_id", itemID.String()),
		slog.String("user_id", userID.String()),
		slog.Int("count", len(labels)))
	return nil
}

// DeleteLabelsByUser implements store.ItemStore.DeleteLabelsByUser
func (s *PostgresItemStore) DeleteLabelsByUser(
	ctx context.Context,
	jobID uuid.UUID,
	batchNumber int,
	userID uuid.UUID,
) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM item_labels il
		USING items i
		WHERE il.item_id = i.id
			AND i.job_id = $1
			AND i.batch_number = $2
			AND il.user_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, jobID, batchNumber, userID)
	if err != nil {
		log.Error("failed to delete labels",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()),
			slog.Int("batch_number", batchNumber),
			slog.String("user_id", userID.String()))
		return 0, MapError(err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
}

// SetAssignedLabels implements store.ItemStore.SetAssignedLabels
func (s *PostgresItemStore) SetAssignedLabels(ctx context.Context, itemID uuid.UUID, labels []string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if labels == nil {
		labels = []string{}
	}
	encoded, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to encode assigned labels: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE items SET assigned_labels = $1 WHERE id = $2`, encoded, itemID)
	if err != nil {
		log.Error("failed to set assigned labels",
			slog.String("error", err.Error()),
			slog.String("item_id", itemID.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrItemNotFound)
}
