// Package memstore is a transactional in-memory store used when the service
// runs without PostgreSQL and by the domain tests. A transaction holds the
// store lock for its whole duration and journals an undo action for every
// write; returning an error from the transaction body replays the journal in
// reverse.
package memstore

import (
	"context"
	"sort"
	"sync"
)

type txKey struct{}

type journal struct {
	store *Store
	undo  []func()
}

// Store serialises access to every Table created from it.
type Store struct {
	mu sync.Mutex
}

func New() *Store {
	return &Store{}
}

func (s *Store) journal(ctx context.Context) *journal {
	j, _ := ctx.Value(txKey{}).(*journal)
	if j != nil && j.store == s {
		return j
	}
	return nil
}

// WithinTx implements db.Transactor. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.journal(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j := &journal{store: s}
	defer func() {
		if r := recover(); r != nil {
			j.rollback()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		j.rollback()
	}
	return err
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// run executes fn with the store lock held, reusing the lock of an open
// transaction on ctx.
func (s *Store) run(ctx context.Context, fn func(j *journal)) {
	if j := s.journal(ctx); j != nil {
		fn(j)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(nil)
}

// Table is a keyed collection guarded by its Store.
type Table[K comparable, V any] struct {
	store *Store
	rows  map[K]V
	clone func(V) V
}

// NewTable creates a table. clone, when set, copies values crossing the table
// boundary so callers cannot alias stored slices or maps.
func NewTable[K comparable, V any](s *Store, clone func(V) V) *Table[K, V] {
	return &Table[K, V]{store: s, rows: make(map[K]V), clone: clone}
}

func (t *Table[K, V]) copy(v V) V {
	if t.clone == nil {
		return v
	}
	return t.clone(v)
}

func (t *Table[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var (
		v  V
		ok bool
	)
	t.store.run(ctx, func(*journal) {
		v, ok = t.rows[key]
		if ok {
			v = t.copy(v)
		}
	})
	return v, ok
}

// Put inserts or replaces the row at key.
func (t *Table[K, V]) Put(ctx context.Context, key K, v V) {
	t.store.run(ctx, func(j *journal) {
		t.put(j, key, t.copy(v))
	})
}

func (t *Table[K, V]) put(j *journal, key K, v V) {
	if j != nil {
		prev, existed := t.rows[key]
		j.undo = append(j.undo, func() {
			if existed {
				t.rows[key] = prev
			} else {
				delete(t.rows, key)
			}
		})
	}
	t.rows[key] = v
}

// Update applies fn to the row at key atomically. fn returns the new value or
// an error, in which case the row is left untouched. Update reports false when
// key is absent.
func (t *Table[K, V]) Update(ctx context.Context, key K, fn func(V) (V, error)) (bool, error) {
	var (
		found bool
		err   error
	)
	t.store.run(ctx, func(j *journal) {
		cur, ok := t.rows[key]
		if !ok {
			return
		}
		found = true
		var next V
		if next, err = fn(t.copy(cur)); err != nil {
			return
		}
		t.put(j, key, t.copy(next))
	})
	return found, err
}

// Upsert stores fn(current, exists) at key.
func (t *Table[K, V]) Upsert(ctx context.Context, key K, fn func(cur V, exists bool) V) V {
	var out V
	t.store.run(ctx, func(j *journal) {
		cur, ok := t.rows[key]
		out = fn(t.copy(cur), ok)
		t.put(j, key, t.copy(out))
	})
	return out
}

// Filter returns copies of all rows matching keep, ordered by less when set.
func (t *Table[K, V]) Filter(ctx context.Context, keep func(V) bool, less func(a, b V) bool) []V {
	var out []V
	t.store.run(ctx, func(*journal) {
		for _, v := range t.rows {
			if keep == nil || keep(v) {
				out = append(out, t.copy(v))
			}
		}
	})
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func (t *Table[K, V]) Len(ctx context.Context) int {
	var n int
	t.store.run(ctx, func(*journal) { n = len(t.rows) })
	return n
}
