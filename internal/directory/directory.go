// Package directory is the boundary to the document database that holds
// tenant data. A tenant is a root document in the Companies collection plus
// subcollections addressed as "Companies/{tenantId}/{name}".
//
// Field values are native Go values; timestamps are time.Time. Conversion to
// the portable marker form happens in the backup engine (and inside SQLStore
// when persisting), never in callers.
package directory

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
)

// MaxBatchSize is the largest number of operations one batch may commit.
const MaxBatchSize = 500

// Root document fields read or written by the toolkit.
const (
	FieldCompanyName          = "companyName"
	FieldIsMaintenance        = "isMaintenance"
	FieldMaintenanceReason    = "maintenanceReason"
	FieldMaintenanceUpdatedAt = "maintenanceUpdatedAt"
	FieldUpdatedAt            = "updatedAt"
)

// Document is one stored document.
type Document struct {
	ID     string
	Fields map[string]any
}

// Store reads and writes documents by collection path and id.
type Store interface {
	// Get returns common.ErrorNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set creates or fully overwrites a document.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update deep-merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document; a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// GetAll returns every document of a collection ordered by id.
	GetAll(ctx context.Context, collection string) ([]Document, error)
	NewBatch() Batch
}

// Batch queues writes and applies them atomically on Commit.
type Batch interface {
	Set(collection, id string, fields map[string]any)
	// Merge deep-merges fields, creating the document when missing.
	Merge(collection, id string, fields map[string]any)
	Delete(collection, id string)
	Len() int
	// Commit fails with common.ErrBatchTooLarge above MaxBatchSize operations.
	Commit(ctx context.Context) error
}

// SubcollectionPath returns the path of a tenant subcollection.
func SubcollectionPath(tenantID, name string) string {
	return common.TenantsCollection + "/" + tenantID + "/" + name
}

// Clear deletes every document of collection in sequential batches of at
// most MaxBatchSize. On failure it returns how many documents were deleted
// by the batches that committed.
func Clear(ctx context.Context, s Store, collection string) (int, error) {
	docs, err := s.GetAll(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", collection, err)
	}

	for start := 0; start < len(docs); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(docs))
		b := s.NewBatch()
		for _, d := range docs[start:end] {
			b.Delete(collection, d.ID)
		}
		if err := b.Commit(ctx); err != nil {
			return start, fmt.Errorf("clear %s: %w", collection, err)
		}
	}
	return len(docs), nil
}

type opKind int

const (
	opSet opKind = iota
	opMerge
	opDelete
)

type op struct {
	kind       opKind
	collection string
	id         string
	fields     map[string]any
}

// batch collects ops and hands them to the owning store on Commit.
type batch struct {
	ops   []op
	apply func(ctx context.Context, ops []op) error
}

func (b *batch) Set(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, op{kind: opSet, collection: collection, id: id, fields: fields})
}

func (b *batch) Merge(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, op{kind: opMerge, collection: collection, id: id, fields: fields})
}

func (b *batch) Delete(collection, id string) {
	b.ops = append(b.ops, op{kind: opDelete, collection: collection, id: id})
}

func (b *batch) Len() int { return len(b.ops) }

func (b *batch) Commit(ctx context.Context) error {
	if len(b.ops) > MaxBatchSize {
		return common.ErrBatchTooLarge
	}
	if len(b.ops) == 0 {
		return nil
	}
	ops := b.ops
	b.ops = nil
	return b.apply(ctx, ops)
}

// MergeFields deep-merges src into dst and returns dst. Nested maps are
// merged key by key; any other value in src replaces the one in dst.
func MergeFields(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sv, ok := v.(map[string]any)
		if !ok {
			dst[k] = copyValue(v)
			continue
		}
		dv, ok := dst[k].(map[string]any)
		if !ok {
			dst[k] = copyValue(sv)
			continue
		}
		dst[k] = MergeFields(dv, sv)
	}
	return dst
}

// CopyFields returns a deep copy of fields.
func CopyFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CopyFields(x)
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}
