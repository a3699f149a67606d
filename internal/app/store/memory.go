package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store implementation. It backs tests and local
// development where a database is unwelcome. Documents are deep-copied on the
// way in and out, so callers never share memory with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Fields // collection -> id -> fields

	// now supplies the store clock, swappable in tests.
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)
var _ Transactional = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty MemoryStore with a caller-supplied clock.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]Fields),
		now:  now,
	}
}

// Get returns the document with the given id, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.data[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}

	return Document{ID: id, Fields: copyFields(fields)}, nil
}

// Query returns all documents in the collection matching q.
func (m *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Document
	for id, fields := range m.data[collection] {
		if matchesFilters(fields, q.Filters) {
			docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
		}
	}

	if q.OrderBy != "" {
		sort.Slice(docs, func(i, j int) bool {
			a := AsString(docs[i].Fields[q.OrderBy])
			b := AsString(docs[j].Fields[q.OrderBy])
			if q.Descending {
				return a > b
			}
			return a < b
		})
	} else {
		// Deterministic output regardless of map iteration order.
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}

	if q.StartAfter != "" && q.OrderBy != "" {
		cut := 0
		for cut < len(docs) {
			v := AsString(docs[cut].Fields[q.OrderBy])
			if (!q.Descending && v > q.StartAfter) || (q.Descending && v < q.StartAfter) {
				break
			}
			cut++
		}
		docs = docs[cut:]
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs, nil
}

// Put creates or fully replaces the document with the given id.
func (m *MemoryStore) Put(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putLocked(collection, id, fields)
	return nil
}

// Create writes the document only if the id is not yet taken.
func (m *MemoryStore) Create(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[collection][id]; ok {
		return ErrExists
	}

	m.putLocked(collection, id, fields)
	return nil
}

// Update merges the given partial fields into an existing document.
func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data[collection][id]
	if !ok {
		return ErrNotFound
	}

	for k, v := range resolveValues(fields, m.now()) {
		existing[k] = v
	}
	return nil
}

// Delete removes the document. Deleting an absent document is a no-op.
func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data[collection], id)
	return nil
}

// RunTransaction executes fn while holding the store lock, so the whole
// function observes and produces a single atomic state change. The txStore
// passed to fn buffers writes and applies them only if fn succeeds.
func (m *MemoryStore) RunTransaction(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}

	for _, apply := range tx.writes {
		apply()
	}
	return nil
}

func (m *MemoryStore) putLocked(collection, id string, fields Fields) {
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]Fields)
	}
	m.data[collection][id] = resolveValues(fields, m.now())
}

// memoryTx is the Store view handed to transaction functions. Reads see the
// pre-transaction state; writes are deferred. The parent lock is already held,
// so methods touch parent state directly without re-locking.
type memoryTx struct {
	store  *MemoryStore
	writes []func()
}

var _ Store = (*memoryTx)(nil)

func (t *memoryTx) Get(ctx context.Context, collection, id string) (Document, error) {
	fields, ok := t.store.data[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: copyFields(fields)}, nil
}

func (t *memoryTx) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	// Queries inside transactions are rare; serve them from parent state
	// without the outer lock (already held by RunTransaction).
	var docs []Document
	for id, fields := range t.store.data[collection] {
		if matchesFilters(fields, q.Filters) {
			docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (t *memoryTx) Put(ctx context.Context, collection, id string, fields Fields) error {
	t.writes = append(t.writes, func() { t.store.putLocked(collection, id, fields) })
	return nil
}

func (t *memoryTx) Create(ctx context.Context, collection, id string, fields Fields) error {
	if _, ok := t.store.data[collection][id]; ok {
		return ErrExists
	}
	t.writes = append(t.writes, func() { t.store.putLocked(collection, id, fields) })
	return nil
}

func (t *memoryTx) Update(ctx context.Context, collection, id string, fields Fields) error {
	if _, ok := t.store.data[collection][id]; !ok {
		return ErrNotFound
	}
	t.writes = append(t.writes, func() {
		existing := t.store.data[collection][id]
		if existing == nil {
			return
		}
		for k, v := range resolveValues(fields, t.store.now()) {
			existing[k] = v
		}
	})
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, collection, id string) error {
	t.writes = append(t.writes, func() { delete(t.store.data[collection], id) })
	return nil
}

// matchesFilters reports whether fields satisfy every filter in the list.
func matchesFilters(fields Fields, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}

		switch f.Op {
		case OpEqual:
			if !valuesEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			found := false
			for _, item := range AsStringSlice(v) {
				if valuesEqual(item, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// valuesEqual compares two field values, tolerating the int/float64 split
// that JSON decoding introduces and comparing string slices element-wise.
func valuesEqual(a, b any) bool {
	if sa := AsStringSlice(a); sa != nil {
		sb := AsStringSlice(b)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if sa[i] != sb[i] {
				return false
			}
		}
		return true
	}

	switch av := a.(type) {
	case int, int64, float64:
		switch b.(type) {
		case int, int64, float64:
			return AsInt(a) == AsInt(b)
		}
		return false
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return a == b
}

// copyFields deep-copies a field map, including nested maps and string slices.
func copyFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case Fields:
			out[k] = copyFields(tv)
		case []string:
			cp := make([]string, len(tv))
			copy(cp, tv)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
