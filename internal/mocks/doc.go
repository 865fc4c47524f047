// Package mocks provides in-memory and stub implementations of the store and
// auth interfaces for tests.
//
// The in-memory stores share one MemoryDB, so a test can seed data through
// one store and observe it through another. Every store method can be
// replaced with a function field (e.g. MemoryItemStore.DeleteLabelsByUserFn)
// to inject failures:
//
//	stores := mocks.NewMemoryStores()
//	stores.Items.DeleteLabelsByUserFn = func(ctx context.Context, jobID uuid.UUID, n int, userID uuid.UUID) (int64, error) {
//	    return 0, errors.New("disk full")
//	}
package mocks
