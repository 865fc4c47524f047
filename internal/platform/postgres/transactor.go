package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/labelhive-api/internal/store"
)

// Transactor runs service operations inside a database transaction, handing
// them stores bound to that transaction.
type Transactor struct {
	db     *sql.DB
	stores store.Stores
}

// NewStores builds the PostgreSQL store bundle on db.
func NewStores(db *sql.DB, bcryptCost int, logger *slog.Logger) store.Stores {
	return store.Stores{
		Users:   NewPostgresUserStore(db, bcryptCost, logger),
		Jobs:    NewPostgresJobStore(db, logger),
		Items:   NewPostgresItemStore(db, logger),
		Batches: NewPostgresBatchStore(db, logger),
	}
}

// NewTransactor creates a Transactor over db whose transactions use
// stores rebound with WithTx.
func NewTransactor(db *sql.DB, stores store.Stores) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}
	return &Transactor{db: db, stores: stores}
}

// Ensure Transactor implements store.Transactor interface
var _ store.Transactor = (*Transactor)(nil)

// WithinTx implements store.Transactor.WithinTx
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	return store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, store.Stores{
			Users:   t.stores.Users.WithTx(tx),
			Jobs:    t.stores.Jobs.WithTx(tx),
			Items:   t.stores.Items.WithTx(tx),
			Batches: t.stores.Batches.WithTx(tx),
		})
	})
}
