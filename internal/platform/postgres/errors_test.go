package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/labelhive-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{
			name:   "unique violation",
			err:    &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_email_key"},
			wantIs: store.ErrDuplicate,
		},
		{
			name:   "foreign key violation",
			err:    &pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "jobs_author_id_fkey"},
			wantIs: store.ErrInvalidEntity,
		},
		{
			name:   "check violation",
			err:    &pgconn.PgError{Code: checkViolationCode, ConstraintName: "jobs_reward_check"},
			wantIs: store.ErrInvalidEntity,
		},
		{
			name:   "not null violation wrapped",
			err:    fmt.Errorf("exec: %w", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"}),
			wantIs: store.ErrInvalidEntity,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, MapError(tt.err), tt.wantIs)
		})
	}

	assert.NoError(t, MapError(nil))
	plain := errors.New("connection reset")
	assert.Equal(t, plain, MapError(plain))
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()

	emailErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: usersEmailConstraint}
	assert.ErrorIs(t, MapUniqueViolation(emailErr, usersEmailConstraint, store.ErrEmailExists), store.ErrEmailExists)

	other := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "something_else"}
	mapped := MapUniqueViolation(other, usersEmailConstraint, store.ErrEmailExists)
	assert.NotErrorIs(t, mapped, store.ErrEmailExists)
	assert.ErrorIs(t, mapped, store.ErrDuplicate)
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckRowsAffected(sqlmock.NewResult(0, 1), store.ErrItemNotFound))
	assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrItemNotFound), store.ErrItemNotFound)
	assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), nil), store.ErrNotFound)
	assert.Error(t, CheckRowsAffected(nil, nil))
}
