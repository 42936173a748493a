package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mixgram/mixgram/internal/domain/errs"
)

// MemoryStore is an in-process Store used by tests and mock mode. Snapshot
// delivery is synchronous: subscribers run on the writer's goroutine after
// the write completes, which keeps test flows deterministic.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection

	clockMu sync.Mutex
	last    time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// Collection returns the named collection, creating it on first use.
func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		coll = &memoryCollection{
			store:       s,
			docs:        make(map[string]Fields),
			subscribers: make(map[int]*memorySubscription),
		}
		s.collections[name] = coll
	}
	return coll
}

// Close releases all subscriptions.
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, coll := range s.collections {
		coll.mu.Lock()
		coll.subscribers = make(map[int]*memorySubscription)
		coll.mu.Unlock()
	}
	return nil
}

// now returns a strictly increasing server timestamp.
func (s *MemoryStore) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type memorySubscription struct {
	filter Filter
	fn     SnapshotFunc
}

type memoryCollection struct {
	store       *MemoryStore
	mu          sync.RWMutex
	docs        map[string]Fields
	subscribers map[int]*memorySubscription
	nextSubID   int
}

func (c *memoryCollection) Create(_ context.Context, fields Fields) (string, error) {
	id := uuid.NewString()

	c.mu.Lock()
	c.docs[id] = c.resolve(copyFields(fields))
	c.mu.Unlock()

	c.notify()
	return id, nil
}

func (c *memoryCollection) Get(_ context.Context, id string) (*Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fields, ok := c.docs[id]
	if !ok {
		return nil, nil
	}
	return &Document{ID: id, Fields: copyFields(fields)}, nil
}

func (c *memoryCollection) Update(_ context.Context, id string, fields Fields) error {
	c.mu.Lock()
	existing, ok := c.docs[id]
	if !ok {
		c.mu.Unlock()
		return errs.ErrNotFound
	}
	maps.Copy(existing, c.resolve(copyFields(fields)))
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *memoryCollection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	_, ok := c.docs[id]
	delete(c.docs, id)
	c.mu.Unlock()

	if ok {
		c.notify()
	}
	return nil
}

func (c *memoryCollection) Find(_ context.Context, filter Filter, opts ...FindOption) ([]Document, error) {
	var options FindOptions
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.RLock()
	docs := c.matching(filter)
	c.mu.RUnlock()

	if options.OrderBy != "" {
		sortDocuments(docs, options.OrderBy, options.Descending)
	}
	if options.Limit > 0 && len(docs) > options.Limit {
		docs = docs[:options.Limit]
	}
	return docs, nil
}

func (c *memoryCollection) Subscribe(_ context.Context, filter Filter, fn SnapshotFunc) (Unsubscribe, error) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = &memorySubscription{filter: maps.Clone(filter), fn: fn}
	initial := c.matching(filter)
	c.mu.Unlock()

	// Initial full snapshot, then one per change.
	fn(initial)

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}, nil
}

// resolve replaces ServerTimestamp sentinels with store-assigned times.
// All sentinels within one write resolve to the same instant.
func (c *memoryCollection) resolve(fields Fields) Fields {
	var assigned time.Time
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			if assigned.IsZero() {
				assigned = c.store.now()
			}
			fields[k] = assigned
		}
	}
	return fields
}

// matching is called with c.mu held.
func (c *memoryCollection) matching(filter Filter) []Document {
	var docs []Document
	for id, fields := range c.docs {
		if matchFields(fields, filter) {
			docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
		}
	}
	return docs
}

// notify delivers fresh snapshots to every subscriber whose callbacks run
// outside the collection lock, so a callback may issue further store calls.
func (c *memoryCollection) notify() {
	type delivery struct {
		fn   SnapshotFunc
		docs []Document
	}

	c.mu.RLock()
	deliveries := make([]delivery, 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		deliveries = append(deliveries, delivery{fn: sub.fn, docs: c.matching(sub.filter)})
	}
	c.mu.RUnlock()

	for _, d := range deliveries {
		d.fn(d.docs)
	}
}

// matchFields applies equality conditions; a condition against a []string
// field matches containment.
func matchFields(fields Fields, filter Filter) bool {
	for key, want := range filter {
		got, ok := fields[key]
		if !ok {
			return false
		}
		if arr, isArr := got.([]string); isArr {
			s, isStr := want.(string)
			if !isStr || !slices.Contains(arr, s) {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func sortDocuments(docs []Document, field string, descending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		if descending {
			return lessFieldValue(docs[j].Fields[field], docs[i].Fields[field])
		}
		return lessFieldValue(docs[i].Fields[field], docs[j].Fields[field])
	})
}

func lessFieldValue(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Before(bv)
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case int:
		bv, ok := b.(int)
		return ok && av < bv
	case int64:
		bv, ok := b.(int64)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	default:
		return false
	}
}

func copyFields(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = copyFieldValue(v)
	}
	return out
}

func copyFieldValue(v any) any {
	switch val := v.(type) {
	case []string:
		return slices.Clone(val)
	case map[string]string:
		return maps.Clone(val)
	case map[string][]string:
		out := make(map[string][]string, len(val))
		for k, users := range val {
			out[k] = slices.Clone(users)
		}
		return out
	case Fields:
		return copyFields(val)
	default:
		return v
	}
}
