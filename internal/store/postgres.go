// Package store persists pricing records in PostgreSQL and serves the
// paginated pricing queries. The bulk sink relies on the COPY protocol:
// each CopyFrom call runs as a single implicit transaction, so a batch is
// either fully visible or not at all.
//
// Expected table:
//
//	CREATE TABLE pricing_records (
//	    id               uuid PRIMARY KEY,
//	    tour_operator_id uuid NOT NULL,
//	    route_code       text NOT NULL DEFAULT '',
//	    season_code      text NOT NULL DEFAULT '',
//	    date             date NOT NULL,
//	    economy_seats    integer NOT NULL CHECK (economy_seats >= 0),
//	    business_seats   integer NOT NULL CHECK (business_seats >= 0),
//	    economy_price    numeric(18,2) NOT NULL,
//	    business_price   numeric(18,2) NOT NULL,
//	    created_at       timestamptz NOT NULL
//	);
//	CREATE INDEX pricing_records_operator_date_idx
//	    ON pricing_records (tour_operator_id, date);
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tourops/pricing-ingest/internal/ingest"
)

// pricingColumns is the COPY column order; copyValues must match exactly.
var pricingColumns = []string{
	"id",
	"tour_operator_id",
	"route_code",
	"season_code",
	"date",
	"economy_seats",
	"business_seats",
	"economy_price",
	"business_price",
	"created_at",
}

// PricingStore is the storage collaborator for pricing uploads. It is safe
// for concurrent use; the pool serializes its own internal writes.
type PricingStore struct {
	pool *pgxpool.Pool
}

// New wraps a pgx pool.
func New(pool *pgxpool.Pool) *PricingStore {
	return &PricingStore{pool: pool}
}

// Commit bulk-loads one batch. It implements ingest.BulkSink: the COPY
// runs inside one transaction, honors ctx cancellation, and writes the
// ids and timestamps carried by the records rather than generating them.
func (s *PricingStore) Commit(ctx context.Context, batch []ingest.PricingRecord) error {
	if len(batch) == 0 {
		return nil
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"pricing_records"},
		pricingColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			return copyValues(batch[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy into pricing_records: %w", err)
	}
	if n != int64(len(batch)) {
		return fmt.Errorf("copy into pricing_records: wrote %d of %d rows", n, len(batch))
	}
	return nil
}

// copyValues maps a record to the pricingColumns order.
func copyValues(r ingest.PricingRecord) []any {
	return []any{
		r.ID,
		r.TourOperatorID,
		r.RouteCode,
		r.SeasonCode,
		pgtype.Date{Time: r.Date, Valid: true},
		r.EconomySeats,
		r.BusinessSeats,
		r.EconomyPrice,
		r.BusinessPrice,
		r.CreatedAt,
	}
}

// PricingRow is one row of a paginated pricing query. Prices are rendered
// as fixed-point strings with the scale stored in the database.
type PricingRow struct {
	RouteCode     string `json:"routeCode"`
	SeasonCode    string `json:"seasonCode"`
	Date          string `json:"date"`
	EconomySeats  int    `json:"economySeats"`
	BusinessSeats int    `json:"businessSeats"`
	EconomyPrice  string `json:"economyPrice"`
	BusinessPrice string `json:"businessPrice"`
}

// PricingPage returns one page of an operator's pricing records ordered by
// date. page is 1-based.
func (s *PricingStore) PricingPage(ctx context.Context, operatorID uuid.UUID, page, pageSize int) ([]PricingRow, error) {
	if page < 1 {
		page = 1
	}

	rows, err := s.pool.Query(ctx, `
		SELECT route_code, season_code, date::text,
		       economy_seats, business_seats,
		       economy_price::text, business_price::text
		FROM pricing_records
		WHERE tour_operator_id = $1
		ORDER BY date, id
		LIMIT $2 OFFSET $3`,
		operatorID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("query pricing page: %w", err)
	}
	defer rows.Close()

	out := make([]PricingRow, 0, pageSize)
	for rows.Next() {
		var r PricingRow
		if err := rows.Scan(
			&r.RouteCode, &r.SeasonCode, &r.Date,
			&r.EconomySeats, &r.BusinessSeats,
			&r.EconomyPrice, &r.BusinessPrice,
		); err != nil {
			return nil, fmt.Errorf("scan pricing row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pricing rows: %w", err)
	}
	return out, nil
}
