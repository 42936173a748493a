// Package store provides the document store adapter: a generic
// create/read/update/delete + filter/subscribe interface over named
// document collections, with server-assigned timestamps and live
// full-snapshot change subscriptions.
package store

import (
	"context"
	"time"
)

// serverTimestamp is the unexported type behind the ServerTimestamp
// sentinel so no field value can collide with it accidentally.
type serverTimestamp struct{}

// ServerTimestamp is a sentinel field value replaced at write time with a
// store-assigned timestamp. Timestamps assigned by a single store are
// monotonically increasing per write.
var ServerTimestamp = serverTimestamp{}

// Fields is a partial document: field names mapped to values. Values are
// limited to the JSON-ish set (string, bool, int, int64, float64,
// time.Time, []string, map[string]string, map[string][]string, nested
// Fields) plus the ServerTimestamp sentinel.
type Fields = map[string]any

// Document is a stored record together with its store-assigned id.
type Document struct {
	ID     string
	Fields Fields
}

// Time reads a timestamp field, returning the zero time when absent or of
// the wrong type.
func (d Document) Time(field string) time.Time {
	t, _ := d.Fields[field].(time.Time)
	return t
}

// String reads a string field, empty when absent.
func (d Document) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

// Bool reads a bool field, false when absent.
func (d Document) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

// Filter is a set of equality conditions, all of which must hold. A
// condition on an array-valued field matches containment (the document
// matches when the array contains the condition value), mirroring the
// underlying store's semantics. No range or inequality conditions exist;
// every richer filter the core needs is applied client-side.
type Filter map[string]any

// FindOptions controls ordering and result size of a Find.
type FindOptions struct {
	// OrderBy sorts by a single field when non-empty.
	OrderBy string
	// Descending reverses the sort order.
	Descending bool
	// Limit bounds the result set when positive.
	Limit int
}

// FindOption configures a Find call.
type FindOption func(*FindOptions)

// OrderBy sorts results by field, ascending.
func OrderBy(field string) FindOption {
	return func(o *FindOptions) {
		o.OrderBy = field
		o.Descending = false
	}
}

// OrderByDesc sorts results by field, descending.
func OrderByDesc(field string) FindOption {
	return func(o *FindOptions) {
		o.OrderBy = field
		o.Descending = true
	}
}

// Limit bounds the number of results.
func Limit(n int) FindOption {
	return func(o *FindOptions) {
		o.Limit = n
	}
}

// SnapshotFunc receives the full current matching document set — never a
// diff — on every relevant change.
type SnapshotFunc func(docs []Document)

// Unsubscribe releases a live subscription. It must be called; an
// abandoned subscription keeps its callback registered for the lifetime
// of the store connection.
type Unsubscribe func()

// Collection is the per-collection adapter surface.
type Collection interface {
	// Create inserts a document and returns its store-assigned id.
	Create(ctx context.Context, fields Fields) (string, error)

	// Get returns the document with the given id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Document, error)

	// Update merges fields into an existing document. Returns
	// errs.ErrNotFound when the id does not exist.
	Update(ctx context.Context, id string, fields Fields) error

	// Delete removes a document. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// Find returns all documents matching the filter.
	Find(ctx context.Context, filter Filter, opts ...FindOption) ([]Document, error)

	// Subscribe registers fn for live snapshots of the filter's matching
	// set. The current set is delivered once on registration and again
	// after every change to the collection.
	Subscribe(ctx context.Context, filter Filter, fn SnapshotFunc) (Unsubscribe, error)
}

// Store groups named collections behind a single connection.
type Store interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}
