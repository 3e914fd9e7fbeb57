package backup

import (
	"context"

	"github.com/dmitrijs2005/tenantadmin/internal/directory"
	"github.com/dmitrijs2005/tenantadmin/internal/logging"
	"github.com/dmitrijs2005/tenantadmin/internal/tscodec"
)

type docWrite struct {
	id     string
	fields map[string]any
	merge  bool
}

func setWrites(records []DocumentRecord, merge bool) []docWrite {
	writes := make([]docWrite, len(records))
	for i, r := range records {
		writes[i] = docWrite{id: r.DocID, fields: tscodec.DecodeFields(r.Data), merge: merge}
	}
	return writes
}

// writeDocuments commits writes in sequential batches of at most
// directory.MaxBatchSize. A failed batch is reported for each of its
// documents and the remaining batches still run.
func (e *Engine) writeDocuments(ctx context.Context, log logging.Logger, tenantID, collection string, writes []docWrite) (int, []ItemFailure) {
	path := directory.SubcollectionPath(tenantID, collection)

	written := 0
	var failures []ItemFailure
	for start := 0; start < len(writes); start += directory.MaxBatchSize {
		end := min(start+directory.MaxBatchSize, len(writes))

		b := e.dir.NewBatch()
		for _, w := range writes[start:end] {
			if w.merge {
				b.Merge(path, w.id, w.fields)
			} else {
				b.Set(path, w.id, w.fields)
			}
		}
		if err := b.Commit(ctx); err != nil {
			log.Warn(ctx, "batch commit failed", "collection", collection, "from", start, "to", end, "err", err)
			for _, w := range writes[start:end] {
				failures = append(failures, ItemFailure{Collection: collection, ID: w.id, Err: err})
			}
			continue
		}
		written += end - start
		log.Debug(ctx, "batch committed", "collection", collection, "documents", end-start)
	}
	return written, failures
}

// clearCollection deletes every document of a subcollection in batches.
func (e *Engine) clearCollection(ctx context.Context, tenantID, collection string) (int, error) {
	return directory.Clear(ctx, e.dir, directory.SubcollectionPath(tenantID, collection))
}
