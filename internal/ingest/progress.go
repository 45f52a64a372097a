package ingest

import "context"

// Notifier delivers free-text progress messages to the uploading client.
// Delivery is fire-and-forget: implementations must never block row
// processing and must swallow their own transport failures.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// NopNotifier discards all messages. Used when the caller supplied no
// progress channel.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) {}

// Progress-channel messages emitted by the pipeline.
const (
	msgValidationStarted   = "Validation started"
	msgBulkInsertCompleted = "Bulk insert completed"
)

// milestones tracks the 10% progress thresholds for a run with a known
// total. Each multiple of 10 is emitted at most once, in increasing order,
// even when processing jumps past several multiples between checks.
type milestones struct {
	total int
	next  int
}

func newMilestones(total int) *milestones {
	return &milestones{total: total, next: 10}
}

// crossed returns every milestone percentage newly reached by the given
// accepted-row count. Percentages are integer-truncated accepted/total*100.
func (m *milestones) crossed(accepted int) []int {
	if m.total <= 0 {
		return nil
	}
	pct := accepted * 100 / m.total
	var out []int
	for m.next <= 100 && pct >= m.next {
		out = append(out, m.next)
		m.next += 10
	}
	return out
}
