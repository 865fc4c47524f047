package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/platform/logger"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// PostgresBatchStore implements the store.BatchStore interface
// using a PostgreSQL database as the storage backend.
//
// AppendClaim and GetClaimForUpdate take row locks, so they only give their
// atomicity guarantees when the store is bound to a transaction via WithTx.
type PostgresBatchStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBatchStore creates a new PostgreSQL implementation of the BatchStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresBatchStore(db store.DBTX, logger *slog.Logger) *PostgresBatchStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBatchStore{
		db:     db,
		logger: logger.With(slog.String("component", "batch_store")),
	}
}

// Ensure PostgresBatchStore implements store.BatchStore interface
var _ store.BatchStore = (*PostgresBatchStore)(nil)

// WithTx implements store.BatchStore.WithTx
func (s *PostgresBatchStore) WithTx(tx *sql.Tx) store.BatchStore {
	return &PostgresBatchStore{db: tx, logger: s.logger}
}

// Create implements store.BatchStore.Create
func (s *PostgresBatchStore) Create(ctx context.Context, batch *domain.Batch) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := batch.Validate(); err != nil {
		log.Warn("batch validation failed during create",
			slog.String("error", err.Error()),
			slog.String("batch_id", batch.ID.String()))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, job_id, batch_number, created_at)
		VALUES ($1, $2, $3, $4)
	`, batch.ID, batch.JobID, batch.BatchNumber, batch.CreatedAt)
	if err != nil {
		log.Error("failed to create batch",
			slog.String("error", err.Error()),
			slog.String("job_id", batch.JobID.String()),
			slog.Int("batch_number", batch.BatchNumber))
		return MapUniqueViolation(err, batchNumberConstraint, store.ErrDuplicate)
	}
	return nil
}

// GetByID implements store.BatchStore.GetByID
func (s *PostgresBatchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var batch domain.Batch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, batch_number, created_at
		FROM batches
		WHERE id = $1
	`, id).Scan(&batch.ID, &batch.JobID, &batch.BatchNumber, &batch.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("batch not found", slog.String("batch_id", id.String()))
			return nil, store.ErrBatchNotFound
		}
		log.Error("failed to get batch by ID",
			slog.String("error", err.Error()),
			slog.String("batch_id", id.String()))
		return nil, MapError(err)
	}

	claims, err := s.queryClaims(ctx, `
		SELECT batch_id, user_id, completed, expires_at, created_at
		FROM batch_claims
		WHERE batch_id = $1
		ORDER BY created_at, user_id
	`, id)
	if err != nil {
		return nil, err
	}
	batch.Claims = claims[id]
	if batch.Claims == nil {
		batch.Claims = []domain.Claim{}
	}

	return &batch, nil
}

// FindByJob implements store.BatchStore.FindByJob
func (s *PostgresBatchStore) FindByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Batch, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, batch_number, created_at
		FROM batches
		WHERE job_id = $1
		ORDER BY batch_number
	`, jobID)
	if err != nil {
		log.Error("failed to query batches",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	batches := make([]*domain.Batch, 0)
	for rows.Next() {
		var b domain.Batch
		if err := rows.Scan(&b.ID, &b.JobID, &b.BatchNumber, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		b.Claims = []domain.Claim{}
		batches = append(batches, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batch rows: %w", err)
	}

	if len(batches) == 0 {
		return batches, nil
	}

	claims, err := s.queryClaims(ctx, `
		SELECT c.batch_id, c.user_id, c.completed, c.expires_at, c.created_at
		FROM batch_claims c
		JOIN batches b ON b.id = c.batch_id
		WHERE b.job_id = $1
		ORDER BY c.created_at, c.user_id
	`, jobID)
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		if cs, ok := claims[b.ID]; ok {
			b.Claims = cs
		}
	}

	return batches, nil
}

// queryClaims returns claims grouped by batch ID.
func (s *PostgresBatchStore) queryClaims(
	ctx context.Context,
	query string,
	args ...any,
) (map[uuid.UUID][]domain.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[uuid.UUID][]domain.Claim)
	for rows.Next() {
		var batchID uuid.UUID
		claim, err := scanClaim(rows, &batchID)
		if err != nil {
			return nil, err
		}
		out[batchID] = append(out[batchID], *claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim rows: %w", err)
	}
	return out, nil
}

func scanClaim(row interface{ Scan(dest ...any) error }, batchID *uuid.UUID) (*domain.Claim, error) {
	var claim domain.Claim
	var expiresAt sql.NullTime
	if err := row.Scan(batchID, &claim.UserID, &claim.Completed, &expiresAt, &claim.CreatedAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		claim.ExpiresAt = &t
	}
	return &claim, nil
}

// AppendClaim implements store.BatchStore.AppendClaim
func (s *PostgresBatchStore) AppendClaim(
	ctx context.Context,
	batchID, userID uuid.UUID,
	expiresAt time.Time,
	capacity int,
) (*domain.Claim, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("batch_id", batchID.String()),
		slog.String("user_id", userID.String()))

	// Lock the batch row so concurrent claimers serialize on it.
	var locked uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM batches WHERE id = $1 FOR UPDATE`, batchID).
		Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBatchNotFound
		}
		log.Error("failed to lock batch", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	var total, mine int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE user_id = $2)
		FROM batch_claims
		WHERE batch_id = $1
	`, batchID, userID).Scan(&total, &mine)
	if err != nil {
		log.Error("failed to count claims", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if mine > 0 {
		return nil, store.ErrAlreadyClaimed
	}
	if total >= capacity {
		return nil, store.ErrCapacityExceeded
	}

	claim := domain.NewClaim(userID, expiresAt)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batch_claims (batch_id, user_id, completed, expires_at, created_at)
		VALUES ($1, $2, FALSE, $3, $4)
	`, batchID, userID, *claim.ExpiresAt, claim.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, userID)
		}
		log.Error("failed to insert claim", slog.String("error", err.Error()))
		return nil, MapUniqueViolation(err, batchClaimsPKey, store.ErrAlreadyClaimed)
	}

	log.Debug("claim appended",
		slog.Int("claims_before", total),
		slog.Int("capacity", capacity))
	return &claim, nil
}

// GetClaimForUpdate implements store.BatchStore.GetClaimForUpdate
func (s *PostgresBatchStore) GetClaimForUpdate(ctx context.Context, batchID, userID uuid.UUID) (*domain.Claim, error) {
	var scannedBatch uuid.UUID
	claim, err := scanClaim(s.db.QueryRowContext(ctx, `
		SELECT batch_id, user_id, completed, expires_at, created_at
		FROM batch_claims
		WHERE batch_id = $1 AND user_id = $2
		FOR UPDATE
	`, batchID, userID), &scannedBatch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClaimNotFound
		}
		return nil, MapError(err)
	}
	return claim, nil
}

// RemoveClaim implements store.BatchStore.RemoveClaim
func (s *PostgresBatchStore) RemoveClaim(ctx context.Context, batchID, userID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM batch_claims WHERE batch_id = $1 AND user_id = $2`, batchID, userID)
	if err != nil {
		log.Error("failed to remove claim",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()),
			slog.String("user_id", userID.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrClaimNotFound)
}

// MarkCompleted implements store.BatchStore.MarkCompleted
func (s *PostgresBatchStore) MarkCompleted(ctx context.Context, batchID, userID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE batch_claims
		SET completed = TRUE, expires_at = NULL
		WHERE batch_id = $1 AND user_id = $2 AND NOT completed
	`, batchID, userID)
	if err != nil {
		log.Error("failed to mark claim completed",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()),
			slog.String("user_id", userID.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM batch_claims WHERE batch_id = $1 AND user_id = $2)`,
		batchID, userID).Scan(&exists); err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrClaimNotFound
	}
	return store.ErrClaimAlreadyCompleted
}

// FindExpiredClaims implements store.BatchStore.FindExpiredClaims
func (s *PostgresBatchStore) FindExpiredClaims(ctx context.Context, now time.Time) ([]store.ExpiredClaim, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.batch_id, b.job_id, b.batch_number, c.user_id, c.expires_at
		FROM batch_claims c
		JOIN batches b ON b.id = c.batch_id
		WHERE NOT c.completed AND c.expires_at <= $1
		ORDER BY c.expires_at, c.batch_id, c.user_id
	`, now.UTC())
	if err != nil {
		log.Error("failed to query expired claims", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	expired := make([]store.ExpiredClaim, 0)
	for rows.Next() {
		var e store.ExpiredClaim
		if err := rows.Scan(&e.BatchID, &e.JobID, &e.BatchNumber, &e.UserID, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan expired claim: %w", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired claims: %w", err)
	}
	return expired, nil
}

// CountCompletedClaims implements store.BatchStore.CountCompletedClaims
func (s *PostgresBatchStore) CountCompletedClaims(ctx context.Context, jobID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM batch_claims c
		JOIN batches b ON b.id = c.batch_id
		WHERE b.job_id = $1 AND c.completed
	`, jobID).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}
