package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// BulkSink commits a batch of records to persistent storage as one atomic
// operation: either every record in the batch becomes visible or none do.
// Implementations must honor ctx cancellation promptly, leaving an aborted
// batch uncommitted. Sink failure is fatal to the run.
type BulkSink interface {
	Commit(ctx context.Context, batch []PricingRecord) error
}

// DefaultRejectionLimit caps how many per-row rejections are carried in the
// run summary. Every rejection is still counted and notified.
const DefaultRejectionLimit = 100

// Pipeline orchestrates one ingestion run: pre-scan row counting, streaming
// decode, validation, batch accumulation, bulk commits and progress
// notification. A Pipeline is cheap to construct; build one per upload.
//
// Total row counts use the pre-scan-then-rewind strategy: the source is
// read once to count data rows, rewound, and then streamed. This is why Run
// takes an io.ReadSeeker rather than a plain reader.
type Pipeline struct {
	sink           BulkSink
	notifier       Notifier
	metrics        *Metrics
	batchSize      int
	rejectionLimit int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets the progress notifier. Defaults to NopNotifier.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithBatchSize overrides the commit threshold.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRejectionLimit overrides how many rejections the summary retains.
func WithRejectionLimit(n int) Option {
	return func(p *Pipeline) { p.rejectionLimit = n }
}

// New builds a pipeline around the given bulk sink.
func New(sink BulkSink, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:           sink,
		notifier:       NopNotifier{},
		batchSize:      DefaultBatchSize,
		rejectionLimit: DefaultRejectionLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests one pricing upload for the given tour operator.
//
// The returned summary always distinguishes completed, failed and
// cancelled, with accepted and rejected counts. The error is non-nil only
// when the run failed; cancellation is not an error. Already-committed
// batches stay committed regardless of how the run ends.
func (p *Pipeline) Run(ctx context.Context, src io.ReadSeeker, operatorID uuid.UUID) (*RunSummary, error) {
	logger := slog.Default().With("tour_operator_id", operatorID.String())
	sum := &RunSummary{}

	if p.metrics != nil {
		p.metrics.RunsActive.Inc()
		defer p.metrics.RunsActive.Dec()
	}
	finish := func(state RunState) {
		sum.State = state
		if p.metrics != nil {
			p.metrics.RunsFinished.WithLabelValues(string(state)).Inc()
		}
	}

	p.notifier.Notify(ctx, msgValidationStarted)
	logger.Info("csv processing started")

	total, err := p.countDataRows(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			finish(StateCancelled)
			return sum, nil
		}
		finish(StateFailed)
		return sum, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		finish(StateFailed)
		return sum, fmt.Errorf("rewind stream: %w", err)
	}

	dec, err := NewDecoder(src)
	if err != nil {
		finish(StateFailed)
		return sum, err
	}

	validator := NewValidator(operatorID)
	batch := NewBatch(p.batchSize)
	marks := newMilestones(total)

	for {
		// Cancellation is checked at every row boundary.
		if ctx.Err() != nil {
			finish(StateCancelled)
			logger.Info("csv processing cancelled",
				"rows", sum.RowsRead, "accepted", sum.Accepted, "rejected", sum.Rejected)
			return sum, nil
		}

		row, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			finish(StateFailed)
			return sum, err
		}
		sum.RowsRead++

		rec, rej := validator.Validate(row)
		if rej != nil {
			sum.Rejected++
			if len(sum.Rejections) < p.rejectionLimit {
				sum.Rejections = append(sum.Rejections, *rej)
			}
			if p.metrics != nil {
				p.metrics.RowsRejected.WithLabelValues(rej.Reason).Inc()
			}
			p.notifier.Notify(ctx, rej.Note())
			logger.Warn("row rejected", "row", rej.Ordinal, "reason", rej.Reason, "value", rej.Value)
			continue
		}

		sum.Accepted++
		if p.metrics != nil {
			p.metrics.RowsAccepted.Inc()
		}

		if full := batch.Add(rec); full {
			if err := p.commit(ctx, batch.Drain()); err != nil {
				if ctx.Err() != nil {
					finish(StateCancelled)
					return sum, nil
				}
				finish(StateFailed)
				return sum, err
			}
		}

		for _, pct := range marks.crossed(sum.Accepted) {
			p.notifier.Notify(ctx, fmt.Sprintf("%d%% completed", pct))
		}
	}

	// Final flush. A cancellation observed here means the remaining batch
	// must not be committed.
	if batch.Len() > 0 {
		if ctx.Err() != nil {
			finish(StateCancelled)
			return sum, nil
		}
		if err := p.commit(ctx, batch.Drain()); err != nil {
			if ctx.Err() != nil {
				finish(StateCancelled)
				return sum, nil
			}
			finish(StateFailed)
			return sum, err
		}
	}

	p.notifier.Notify(ctx, msgBulkInsertCompleted)
	finish(StateCompleted)
	logger.Info("csv processing completed",
		"rows", sum.RowsRead, "accepted", sum.Accepted, "rejected", sum.Rejected)
	return sum, nil
}

// countDataRows is the scanning pass: it consumes the whole stream once and
// returns the number of data rows, so milestone percentages have a fixed
// denominator.
func (p *Pipeline) countDataRows(ctx context.Context, src io.Reader) (int, error) {
	dec, err := NewDecoder(src)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		_, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}

func (p *Pipeline) commit(ctx context.Context, batch []PricingRecord) error {
	start := time.Now()
	if err := p.sink.Commit(ctx, batch); err != nil {
		return fmt.Errorf("bulk commit of %d rows: %w", len(batch), err)
	}
	if p.metrics != nil {
		p.metrics.BatchesCommitted.Inc()
		p.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}
