// Package ingest implements the streaming CSV ingestion pipeline for
// tour-operator pricing uploads: incremental row decoding, per-row
// validation with recovery, batch accumulation, bulk commits through a
// sink interface, and progress notification to the uploading client.
package ingest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Recognized upload column names. Header matching is exact and
// case-sensitive; column order in the file does not matter.
const (
	ColRouteCode     = "RouteCode"
	ColSeasonCode    = "SeasonCode"
	ColDate          = "Date"
	ColEconomySeats  = "EconomySeats"
	ColBusinessSeats = "BusinessSeats"
	ColEconomyPrice  = "EconomyPrice"
	ColBusinessPrice = "BusinessPrice"
)

// recognizedColumns lists every column the decoder extracts from a row.
var recognizedColumns = []string{
	ColRouteCode, ColSeasonCode, ColDate,
	ColEconomySeats, ColBusinessSeats,
	ColEconomyPrice, ColBusinessPrice,
}

// RawRow is one decoded data line, keyed by recognized column name.
// Columns missing from the line are present with an empty value.
// RawRow is transient: it is discarded after validation.
type RawRow struct {
	// Ordinal is the 1-based position of the row among data rows.
	Ordinal int
	Fields  map[string]string
}

// PricingRecord is the durable entity produced by validation.
// Records are immutable once constructed; corrections arrive as new rows.
type PricingRecord struct {
	ID             uuid.UUID
	TourOperatorID uuid.UUID
	RouteCode      string
	SeasonCode     string
	Date           time.Time
	EconomySeats   int
	BusinessSeats  int
	EconomyPrice   pgtype.Numeric
	BusinessPrice  pgtype.Numeric
	CreatedAt      time.Time
}

// RowError describes a rejected row. It is delivered to the progress
// channel as a human-readable note and aggregated into the run summary.
type RowError struct {
	Ordinal int    `json:"row"`
	Reason  string `json:"reason"`
	Value   string `json:"value,omitempty"`
}

// Note renders the progress-channel message for a rejection.
func (e RowError) Note() string {
	if e.Value != "" {
		return fmt.Sprintf("Row %d: %s '%s' - skipped", e.Ordinal, e.Reason, e.Value)
	}
	return fmt.Sprintf("Row %d: %s - skipped", e.Ordinal, e.Reason)
}

// RunState is the terminal state of an ingestion run.
type RunState string

const (
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// RunSummary reports the outcome of one ingestion run. Counters are owned
// exclusively by the pipeline while the run executes; the summary is the
// only way callers observe them.
type RunSummary struct {
	RowsRead   int        `json:"rowsRead"`
	Accepted   int        `json:"accepted"`
	Rejected   int        `json:"rejected"`
	State      RunState   `json:"state"`
	Rejections []RowError `json:"rejections,omitempty"`
}
