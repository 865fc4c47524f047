package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// MemoryItemStore implements store.ItemStore on a MemoryDB.
type MemoryItemStore struct {
	db *MemoryDB

	CreateMultipleFn     func(ctx context.Context, items []*domain.Item) error
	UpsertLabelsFn       func(ctx context.Context, itemID, userID uuid.UUID, labels []string) error
	DeleteLabelsByUserFn func(ctx context.Context, jobID uuid.UUID, batchNumber int, userID uuid.UUID) (int64, error)
	SetAssignedLabelsFn  func(ctx context.Context, itemID uuid.UUID, labels []string) error
}

// Ensure MemoryItemStore implements store.ItemStore interface
var _ store.ItemStore = (*MemoryItemStore)(nil)

// CreateMultiple implements store.ItemStore.CreateMultiple
func (m *MemoryItemStore) CreateMultiple(ctx context.Context, items []*domain.Item) error {
	if m.CreateMultipleFn != nil {
		return m.CreateMultipleFn(ctx, items)
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, item := range items {
		if _, ok := m.db.jobs[item.JobID]; !ok {
			return fmt.Errorf("%w: job with ID %s not found", store.ErrInvalidEntity, item.JobID)
		}
		m.db.items[item.ID] = cloneItem(item)
	}
	return nil
}

// GetByID implements store.ItemStore.GetByID
func (m *MemoryItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	item, ok := m.db.items[id]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	return cloneItem(item), nil
}

// FindByJobAndBatch implements store.ItemStore.FindByJobAndBatch
func (m *MemoryItemStore) FindByJobAndBatch(
	ctx context.Context,
	jobID uuid.UUID,
	batchNumber int,
) ([]*domain.Item, error) {
	return m.find(func(i *domain.Item) bool {
		return i.JobID == jobID && i.BatchNumber == batchNumber
	}), nil
}

// FindByJob implements store.ItemStore.FindByJob
func (m *MemoryItemStore) FindByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Item, error) {
	return m.find(func(i *domain.Item) bool { return i.JobID == jobID }), nil
}

func (m *MemoryItemStore) find(match func(*domain.Item) bool) []*domain.Item {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	out := make([]*domain.Item, 0)
	for _, item := range m.db.items {
		if match(item) {
			out = append(out, cloneItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// UpsertLabels implements store.ItemStore.UpsertLabels
func (m *MemoryItemStore) UpsertLabels(ctx context.Context, itemID, userID uuid.UUID, labels []string) error {
	if m.UpsertLabelsFn != nil {
		return m.UpsertLabelsFn(ctx, itemID, userID, labels)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	item, ok := m.db.items[itemID]
	if !ok {
		return store.ErrItemNotFound
	}

	now := time.Now().UTC()
	for idx := range item.Submissions {
		if item.Submissions[idx].UserID == userID {
			item.Submissions[idx].Labels = cloneStrings(labels)
			item.Submissions[idx].UpdatedAt = now
			return nil
		}
	}
	item.Submissions = append(item.Submissions, domain.LabelSubmission{
		UserID:    userID,
		Labels:    cloneStrings(labels),
		CreatedAt: now,
		UpdatedAt: now,
	})
	return nil
}

// DeleteLabelsByUser implements store.ItemStore.DeleteLabelsByUser
func (m *MemoryItemStore) DeleteLabelsByUser(
	ctx context.Context,
	jobID uuid.UUID,
	batchNumber int,
	userID uuid.UUID,
) (int64, error) {
	if m.DeleteLabelsByUserFn != nil {
		return m.DeleteLabelsByUserFn(ctx, jobID, batchNumber, userID)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var removed int64
	for _, item := range m.db.items {
		if item.JobID != jobID || item.BatchNumber != batchNumber {
			continue
		}
		kept := item.Submissions[:0]
		for _, s := range item.Submissions {
			if s.UserID == userID {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		item.Submissions = kept
	}
	return removed, nil
}

// SetAssignedLabels implements store.ItemStore.SetAssignedLabels
func (m *MemoryItemStore) SetAssignedLabels(ctx context.Context, itemID uuid.UUID, labels []string) error {
	if m.SetAssignedLabelsFn != nil {
		return m.SetAssignedLabelsFn(ctx, itemID, labels)
	}

	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	item, ok := m.db.items[itemID]
	if !ok {
		return store.ErrItemNotFound
	}
	if labels == nil {
		labels = []string{}
	}
	item.AssignedLabels = cloneStrings(labels)
	return nil
}

// WithTx implements store.ItemStore.WithTx. In-memory stores ignore tx.
func (m *MemoryItemStore) WithTx(tx *sql.Tx) store.ItemStore {
	return m
}
