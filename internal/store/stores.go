package store

import "context"

// Stores bundles the stores a service works with so they can be handed
// around as one unit, in or out of a transaction.
type Stores struct {
	Users   UserStore
	Jobs    JobStore
	Items   ItemStore
	Batches BatchStore
}

// Transactor runs fn with a Stores bundle bound to a single transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Stores) error) error
}
