/*
Package store provides the document store capability that all persistence in the
application goes through.

The model is collection-oriented: schemaless documents addressed by (collection, id),
queried with equality and array-contains filters. Two implementations exist, an
in-memory store for development and tests, and a PostgreSQL-backed store for
production. Timestamps are always assigned by the store, never by callers, via the
ServerTimestamp sentinel, so message ordering is immune to client clock skew.
*/
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the addressed document does not exist.
	// Callers that model "absent" as a valid result translate this themselves.
	ErrNotFound = errors.New("store: document not found")

	// ErrExists indicates that Create was called for an id that is already taken.
	ErrExists = errors.New("store: document already exists")
)

// TimeFormat is the canonical encoding for timestamp field values.
// Fixed-width nanoseconds in UTC so that lexical order equals chronological
// order, which both implementations rely on for ordered queries.
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

// serverTimestamp is the sentinel type marking a field to be resolved to the
// store's clock at write time.
type serverTimestamp struct{}

// ServerTimestamp is the sentinel value callers place in a field map to request
// a store-assigned timestamp.
var ServerTimestamp = serverTimestamp{}

// Fields is the schemaless field set of a document. Values are limited to JSON
// scalars, string slices, nested Fields maps, and timestamp strings produced by
// EncodeTime.
type Fields = map[string]any

// Document is a stored record returned by reads.
type Document struct {
	ID     string
	Fields Fields
}

// FilterOp enumerates the supported filter operators.
type FilterOp int

const (
	// OpEqual matches documents whose field equals the filter value exactly.
	OpEqual FilterOp = iota

	// OpArrayContains matches documents whose array field contains the filter value.
	OpArrayContains
)

// Filter is a single query predicate.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// ArrayContains builds an array-contains filter.
func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Query describes a filtered, optionally ordered and paginated read.
// OrderBy and StartAfter compare the canonical string encoding of the field,
// which for timestamps encoded with TimeFormat is chronological.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool

	// StartAfter, when non-empty, skips documents up to and including the given
	// OrderBy value. Used for message history pagination.
	StartAfter string

	// Limit caps the number of returned documents. Zero means no limit.
	Limit int
}

// Store is the document store capability consumed by every higher layer.
// All operations are safe for concurrent use.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns all documents in the collection matching q.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)

	// Put creates or fully replaces the document with the given id.
	Put(ctx context.Context, collection, id string, fields Fields) error

	// Create writes the document only if the id is not yet taken,
	// returning ErrExists otherwise.
	Create(ctx context.Context, collection, id string, fields Fields) error

	// Update merges the given partial fields into an existing document,
	// returning ErrNotFound if it does not exist.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete removes the document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error
}

// Transactional is an optional capability: stores that can execute a function
// atomically implement it. The Store passed to fn applies all writes only if
// fn returns nil.
type Transactional interface {
	RunTransaction(ctx context.Context, fn func(tx Store) error) error
}

// InTransaction runs fn atomically when the store supports transactions and
// falls back to plain sequential execution otherwise. Callers that need
// compensation on partial failure must handle the fallback themselves.
func InTransaction(ctx context.Context, s Store, fn func(tx Store) error) error {
	if t, ok := s.(Transactional); ok {
		return t.RunTransaction(ctx, fn)
	}
	return fn(s)
}

// EncodeTime converts t to the canonical timestamp string.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// resolveValues returns a copy of fields with every ServerTimestamp sentinel
// replaced by the encoded now value and every time.Time normalized to the
// canonical encoding. Nested field maps are resolved recursively, which covers
// denormalized previews carrying their own timestamps.
func resolveValues(fields Fields, now time.Time) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case serverTimestamp:
			out[k] = EncodeTime(now)
		case time.Time:
			out[k] = EncodeTime(tv)
		case Fields:
			out[k] = resolveValues(tv, now)
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
