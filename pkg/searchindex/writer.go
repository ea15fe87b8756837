package searchindex

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"

	"github.com/oriath-net/bundlecat/pkg/catalog"
)

// BatchSink adapts a bleve batch to catalog.Sink, letting the ingester feed
// documents straight into a single commit unit. Document identity uses a
// random id: nothing ever looks a catalog entry up by id, only by field
// query, so collisions are never a concern.
type BatchSink struct {
	batch *bleve.Batch
	count int
}

// NewBatchSink starts a fresh batch against idx.
func NewBatchSink(idx bleve.Index) *BatchSink {
	return &BatchSink{batch: idx.NewBatch()}
}

// Add indexes one document into the batch. It never touches the index
// itself; call Commit to make the batch visible to readers.
func (b *BatchSink) Add(d catalog.Document) error {
	if err := b.batch.Index(uuid.NewString(), d); err != nil {
		return fmt.Errorf("searchindex: batching document %q: %w", d.Path, err)
	}
	b.count++
	return nil
}

// Count returns the number of documents added to the batch so far.
func (b *BatchSink) Count() int { return b.count }

// Batch exposes the underlying bleve batch, letting callers merge it into a
// shared commit batch instead of committing it standalone.
func (b *BatchSink) Batch() *bleve.Batch { return b.batch }

// DeleteVersion queues a delete for every document whose version field
// equals version. Bleve batches only delete by id, so this first resolves
// the matching ids with a term query and then queues one Delete per hit.
func DeleteVersion(idx bleve.Index, batch *bleve.Batch, version string) (int, error) {
	termQuery := bleve.NewTermQuery(version)
	termQuery.SetField("version")

	const pageSize = 1000
	req := bleve.NewSearchRequestOptions(termQuery, pageSize, 0, false)
	req.Fields = nil

	var deleted int
	for {
		res, err := idx.Search(req)
		if err != nil {
			return deleted, fmt.Errorf("searchindex: searching version %q for delete: %w", version, err)
		}
		if len(res.Hits) == 0 {
			break
		}
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
			deleted++
		}
		if len(res.Hits) < pageSize {
			break
		}
		req.From += pageSize
	}
	return deleted, nil
}

// Commit applies batch to idx, making every queued add/delete visible to
// subsequent reads.
func Commit(idx bleve.Index, batch *bleve.Batch) error {
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("searchindex: committing batch: %w", err)
	}
	return nil
}
