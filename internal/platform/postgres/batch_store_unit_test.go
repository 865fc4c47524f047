package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBatchStore(t *testing.T) (*PostgresBatchStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresBatchStore(db, quiet), mock
}

func TestPostgresBatchStore_AppendClaim(t *testing.T) {
	t.Parallel()

	batchID := uuid.New()
	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "batch missing",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id FROM batches WHERE id = \$1 FOR UPDATE`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantErr: store.ErrBatchNotFound,
		},
		{
			name: "user already holds a claim",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FOR UPDATE`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(batchID.String()))
				mock.ExpectQuery(`COUNT\(\*\) FILTER`).
					WillReturnRows(sqlmock.NewRows([]string{"total", "mine"}).AddRow(1, 1))
			},
			wantErr: store.ErrAlreadyClaimed,
		},
		{
			name: "batch at capacity",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FOR UPDATE`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(batchID.String()))
				mock.ExpectQuery(`COUNT\(\*\) FILTER`).
					WillReturnRows(sqlmock.NewRows([]string{"total", "mine"}).AddRow(2, 0))
			},
			wantErr: store.ErrCapacityExceeded,
		},
		{
			name: "claim inserted",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FOR UPDATE`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(batchID.String()))
				mock.ExpectQuery(`COUNT\(\*\) FILTER`).
					WillReturnRows(sqlmock.NewRows([]string{"total", "mine"}).AddRow(1, 0))
				mock.ExpectExec(`INSERT INTO batch_claims`).
					WithArgs(batchID, userID, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, mock := newMockBatchStore(t)
			tt.expect(mock)

			claim, err := s.AppendClaim(context.Background(), batchID, userID, expiresAt, 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claim)
			} else {
				require.NoError(t, err)
				assert.Equal(t, userID, claim.UserID)
				assert.False(t, claim.Completed)
				require.NotNil(t, claim.ExpiresAt)
				assert.WithinDuration(t, expiresAt, *claim.ExpiresAt, time.Second)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresBatchStore_MarkCompleted(t *testing.T) {
	t.Parallel()

	batchID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "pending claim completed",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE batch_claims`).
					WithArgs(batchID, userID).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "no claim",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE batch_claims`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT EXISTS`).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: store.ErrClaimNotFound,
		},
		{
			name: "already completed",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE batch_claims`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT EXISTS`).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: store.ErrClaimAlreadyCompleted,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, mock := newMockBatchStore(t)
			tt.expect(mock)

			err := s.MarkCompleted(context.Background(), batchID, userID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresBatchStore_FindExpiredClaims(t *testing.T) {
	t.Parallel()

	s, mock := newMockBatchStore(t)

	batchID, jobID, userID := uuid.New(), uuid.New(), uuid.New()
	expired := time.Now().Add(-time.Minute).UTC()

	mock.ExpectQuery(`WHERE NOT c.completed AND c.expires_at <= \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id", "job_id", "batch_number", "user_id", "expires_at"}).
			AddRow(batchID.String(), jobID.String(), 3, userID.String(), expired))

	claims, err := s.FindExpiredClaims(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, store.ExpiredClaim{
		BatchID:     batchID,
		JobID:       jobID,
		BatchNumber: 3,
		UserID:      userID,
		ExpiresAt:   expired,
	}, claims[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
