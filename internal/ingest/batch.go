package ingest

// DefaultBatchSize bounds memory and bulk-operation size. 5000 rows keeps
// a batch around a few megabytes while amortizing commit overhead.
const DefaultBatchSize = 5000

// Batch buffers accepted records until the capacity threshold is reached.
// A batch belongs to exactly one pipeline run and needs no locking.
type Batch struct {
	capacity int
	recs     []PricingRecord
}

// NewBatch creates an accumulator with the given capacity threshold.
// Non-positive capacities fall back to DefaultBatchSize.
func NewBatch(capacity int) *Batch {
	if capacity <= 0 {
		capacity = DefaultBatchSize
	}
	return &Batch{
		capacity: capacity,
		recs:     make([]PricingRecord, 0, capacity),
	}
}

// Add buffers one record and reports whether the batch has reached its
// capacity threshold and must be committed before any further row is
// buffered.
func (b *Batch) Add(rec PricingRecord) bool {
	b.recs = append(b.recs, rec)
	return len(b.recs) >= b.capacity
}

// Drain returns the buffered records in input order and resets the buffer.
func (b *Batch) Drain() []PricingRecord {
	out := b.recs
	b.recs = make([]PricingRecord, 0, b.capacity)
	return out
}

// Len reports the number of buffered records.
func (b *Batch) Len() int { return len(b.recs) }
