package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/labelhive-api/internal/domain"
	"github.com/phrazzld/labelhive-api/internal/store"
)

// MemoryDB is the shared state behind the in-memory stores. Stores built by
// NewMemoryStores all read and write the same MemoryDB.
type MemoryDB struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	jobs    map[uuid.UUID]*domain.Job
	items   map[uuid.UUID]*domain.Item
	batches map[uuid.UUID]*domain.Batch
}

// NewMemoryDB returns an empty MemoryDB.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:   make(map[uuid.UUID]*domain.User),
		jobs:    make(map[uuid.UUID]*domain.Job),
		items:   make(map[uuid.UUID]*domain.Item),
		batches: make(map[uuid.UUID]*domain.Batch),
	}
}

type memorySnapshot struct {
	users   map[uuid.UUID]*domain.User
	jobs    map[uuid.UUID]*domain.Job
	items   map[uuid.UUID]*domain.Item
	batches map[uuid.UUID]*domain.Batch
}

// snapshot deep-copies the state. Callers hold db.mu.
func (db *MemoryDB) snapshot() memorySnapshot {
	s := memorySnapshot{
		users:   make(map[uuid.UUID]*domain.User, len(db.users)),
		jobs:    make(map[uuid.UUID]*domain.Job, len(db.jobs)),
		items:   make(map[uuid.UUID]*domain.Item, len(db.items)),
		batches: make(map[uuid.UUID]*domain.Batch, len(db.batches)),
	}
	for id, u := range db.users {
		s.users[id] = cloneUser(u)
	}
	for id, j := range db.jobs {
		s.jobs[id] = cloneJob(j)
	}
	for id, i := range db.items {
		s.items[id] = cloneItem(i)
	}
	for id, b := range db.batches {
		s.batches[id] = cloneBatch(b)
	}
	return s
}

func (db *MemoryDB) restore(s memorySnapshot) {
	db.users = s.users
	db.jobs = s.jobs
	db.items = s.items
	db.batches = s.batches
}

// MemoryStores bundles the in-memory stores with their transactor.
type MemoryStores struct {
	DB         *MemoryDB
	Users      *MemoryUserStore
	Jobs       *MemoryJobStore
	Items      *MemoryItemStore
	Batches    *MemoryBatchStore
	Transactor *MemoryTransactor
}

// NewMemoryStores builds a full in-memory store bundle over a fresh MemoryDB.
func NewMemoryStores() *MemoryStores {
	db := NewMemoryDB()
	m := &MemoryStores{
		DB:      db,
		Users:   &MemoryUserStore{db: db},
		Jobs:    &MemoryJobStore{db: db},
		Items:   &MemoryItemStore{db: db},
		Batches: &MemoryBatchStore{db: db},
	}
	m.Transactor = &MemoryTransactor{db: db, stores: m.Stores()}
	return m
}

// Stores returns the bundle as a store.Stores.
func (m *MemoryStores) Stores() store.Stores {
	return store.Stores{
		Users:   m.Users,
		Jobs:    m.Jobs,
		Items:   m.Items,
		Batches: m.Batches,
	}
}

// MemoryTransactor implements store.Transactor. Transactions run one at a
// time; an error from fn restores the state captured when it began.
type MemoryTransactor struct {
	db     *MemoryDB
	txMu   sync.Mutex
	stores store.Stores

	// WithinTxFn overrides the default behavior when set.
	WithinTxFn func(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error

	// Calls counts WithinTx invocations.
	Calls int
}

// Ensure MemoryTransactor implements store.Transactor interface
var _ store.Transactor = (*MemoryTransactor)(nil)

// WithinTx implements store.Transactor.WithinTx
func (t *MemoryTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Stores) error) error {
	if t.WithinTxFn != nil {
		return t.WithinTxFn(ctx, fn)
	}

	t.txMu.Lock()
	defer t.txMu.Unlock()
	t.Calls++

	t.db.mu.Lock()
	snap := t.db.snapshot()
	t.db.mu.Unlock()

	if err := fn(ctx, t.stores); err != nil {
		t.db.mu.Lock()
		t.db.restore(snap)
		t.db.mu.Unlock()
		return err
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	c.Labels = cloneStrings(j.Labels)
	return &c
}

func cloneItem(i *domain.Item) *domain.Item {
	c := *i
	c.AssignedLabels = cloneStrings(i.AssignedLabels)
	c.Submissions = make([]domain.LabelSubmission, len(i.Submissions))
	for idx, s := range i.Submissions {
		s.Labels = cloneStrings(s.Labels)
		c.Submissions[idx] = s
	}
	return &c
}

func cloneBatch(b *domain.Batch) *domain.Batch {
	c := *b
	c.Claims = make([]domain.Claim, len(b.Claims))
	for idx, cl := range b.Claims {
		if cl.ExpiresAt != nil {
			exp := *cl.ExpiresAt
			cl.ExpiresAt = &exp
		}
		c.Claims[idx] = cl
	}
	return &c
}
