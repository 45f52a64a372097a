package ingest

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Rejection reasons surfaced through progress notes and the run summary.
const (
	ReasonInvalidDate          = "invalid date"
	ReasonInvalidEconomyPrice  = "invalid economy price"
	ReasonInvalidBusinessPrice = "invalid business price"
	ReasonInternal             = "row validation failed"
)

// dateLayouts are the accepted locale-invariant calendar date forms.
// Ambiguous day-first layouts are deliberately absent.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006.01.02",
}

// priceRegex matches a non-negative fixed-point decimal after separator
// stripping. Exponents and signs are not part of the invariant format.
var priceRegex = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// Validator converts raw rows into typed PricingRecords or per-row
// rejections. It owns no shared state and may be used for the whole of one
// ingestion run; identifiers and timestamps are assigned at acceptance.
type Validator struct {
	operatorID uuid.UUID

	// Injection points for deterministic tests.
	now   func() time.Time
	newID func() uuid.UUID
}

// NewValidator returns a validator scoped to one tour operator.
func NewValidator(operatorID uuid.UUID) *Validator {
	return &Validator{
		operatorID: operatorID,
		now:        time.Now,
		newID:      uuid.New,
	}
}

// Validate applies the acceptance rules in order, short-circuiting on the
// first failure. A panic while handling a row is recovered and reported as
// a generic rejection: one bad row never aborts the run.
func (v *Validator) Validate(row RawRow) (rec PricingRecord, rej *RowError) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic validating row", "row", row.Ordinal, "panic", r)
			rec = PricingRecord{}
			rej = &RowError{Ordinal: row.Ordinal, Reason: ReasonInternal}
		}
	}()

	rawDate := strings.TrimSpace(row.Fields[ColDate])
	date, ok := parseDate(rawDate)
	if !ok {
		return PricingRecord{}, &RowError{Ordinal: row.Ordinal, Reason: ReasonInvalidDate, Value: rawDate}
	}

	econPrice, ok := parsePrice(row.Fields[ColEconomyPrice])
	if !ok {
		return PricingRecord{}, &RowError{
			Ordinal: row.Ordinal,
			Reason:  ReasonInvalidEconomyPrice,
			Value:   strings.TrimSpace(row.Fields[ColEconomyPrice]),
		}
	}

	busPrice, ok := parsePrice(row.Fields[ColBusinessPrice])
	if !ok {
		return PricingRecord{}, &RowError{
			Ordinal: row.Ordinal,
			Reason:  ReasonInvalidBusinessPrice,
			Value:   strings.TrimSpace(row.Fields[ColBusinessPrice]),
		}
	}

	return PricingRecord{
		ID:             v.newID(),
		TourOperatorID: v.operatorID,
		RouteCode:      strings.TrimSpace(row.Fields[ColRouteCode]),
		SeasonCode:     strings.TrimSpace(row.Fields[ColSeasonCode]),
		Date:           date,
		EconomySeats:   parseSeats(row.Fields[ColEconomySeats]),
		BusinessSeats:  parseSeats(row.Fields[ColBusinessSeats]),
		EconomyPrice:   econPrice,
		BusinessPrice:  busPrice,
		CreatedAt:      v.now().UTC(),
	}, nil
}

// parseDate tries each invariant layout in order.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parsePrice parses a non-negative fixed-point decimal. Thousands
// separators are stripped before matching; anything else fails.
func parsePrice(s string) (pgtype.Numeric, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !priceRegex.MatchString(s) {
		return pgtype.Numeric{}, false
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, false
	}
	return n, true
}

// parseSeats is best-effort: a seat count that does not parse, or parses
// negative, becomes 0 rather than rejecting the row.
func parseSeats(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
