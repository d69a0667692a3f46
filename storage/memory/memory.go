package memory

import (
	"context"
	"sync"

	"driverledger/pkg/address"
	"driverledger/pkg/models"
	"driverledger/storage"
)

// Store keeps registry records in a map. Transactions run optimistically: the
// versions a transaction observes are validated when it commits, and a record
// changed in the meantime fails the whole transaction with
// storage.ErrConflictingMutation.
type Store struct {
	mu            sync.RWMutex
	records       map[address.Address]*storage.Record
	maxRecordSize int
}

func New(maxRecordSize int) *Store {
	return &Store{
		records:       make(map[address.Address]*storage.Record),
		maxRecordSize: maxRecordSize,
	}
}

func (s *Store) Registry() storage.IRegistryStorage { return s }

func (s *Store) Close() {}

func (s *Store) Read(_ context.Context, addr address.Address) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[addr]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx storage.ITx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		store:    s,
		observed: make(map[address.Address]int64),
		writes:   make(map[address.Address]*storage.Record),
	}
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, version := range t.observed {
		cur, ok := s.records[addr]
		if !ok || cur.Version != version {
			return storage.ErrConflictingMutation
		}
	}
	for _, addr := range t.created {
		if _, ok := s.records[addr]; ok {
			return storage.ErrAlreadyExists
		}
	}
	for addr, rec := range t.writes {
		s.records[addr] = rec
	}
	return nil
}

type tx struct {
	store    *Store
	observed map[address.Address]int64
	writes   map[address.Address]*storage.Record
	created  []address.Address
}

func (t *tx) Read(_ context.Context, addr address.Address) (*storage.Record, error) {
	if rec, ok := t.writes[addr]; ok {
		return rec.Clone(), nil
	}

	t.store.mu.RLock()
	rec, ok := t.store.records[addr]
	t.store.mu.RUnlock()
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	if _, seen := t.observed[addr]; !seen {
		t.observed[addr] = rec.Version
	}
	return rec.Clone(), nil
}

func (t *tx) Create(_ context.Context, addr address.Address, payer models.Identity, kind string, data []byte) (*storage.Record, error) {
	if _, ok := t.writes[addr]; ok {
		return nil, storage.ErrAlreadyExists
	}
	t.store.mu.RLock()
	_, exists := t.store.records[addr]
	t.store.mu.RUnlock()
	if exists {
		if t.stale() {
			return nil, storage.ErrConflictingMutation
		}
		return nil, storage.ErrAlreadyExists
	}
	if err := storage.CheckSize(data, t.store.maxRecordSize); err != nil {
		return nil, err
	}

	rec := &storage.Record{
		Address: addr,
		Kind:    kind,
		Payer:   payer,
		Data:    append([]byte(nil), data...),
		Version: 1,
	}
	t.writes[addr] = rec
	t.created = append(t.created, addr)
	return rec.Clone(), nil
}

// stale reports whether a record this transaction read has since changed.
// A collision on top of a stale read is a lost race, not a duplicate.
func (t *tx) stale() bool {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	for addr, version := range t.observed {
		cur, ok := t.store.records[addr]
		if !ok || cur.Version != version {
			return true
		}
	}
	return false
}

func (t *tx) Mutate(ctx context.Context, addr address.Address, fn storage.MutateFunc) (*storage.Record, error) {
	cur, err := t.Read(ctx, addr)
	if err != nil {
		return nil, err
	}
	data, err := fn(cur.Data)
	if err != nil {
		return nil, err
	}
	if err := storage.CheckSize(data, t.store.maxRecordSize); err != nil {
		return nil, err
	}

	next := cur.Clone()
	next.Data = append([]byte(nil), data...)
	if _, pending := t.writes[addr]; !pending {
		next.Version = cur.Version + 1
	}
	t.writes[addr] = next
	return next.Clone(), nil
}
