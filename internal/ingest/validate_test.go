package ingest

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testRow(ordinal int, fields map[string]string) RawRow {
	return RawRow{Ordinal: ordinal, Fields: fields}
}

func validFields() map[string]string {
	return map[string]string{
		ColRouteCode:     "AB1",
		ColSeasonCode:    "WIN",
		ColDate:          "2025-01-10",
		ColEconomySeats:  "10",
		ColBusinessSeats: "5",
		ColEconomyPrice:  "100.50",
		ColBusinessPrice: "200.00",
	}
}

func TestValidateAccepted(t *testing.T) {
	op := uuid.New()
	v := NewValidator(op)

	rec, rej := v.Validate(testRow(1, validFields()))
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	if rec.TourOperatorID != op {
		t.Errorf("TourOperatorID = %v, want %v", rec.TourOperatorID, op)
	}
	if rec.ID == uuid.Nil {
		t.Error("ID should be generated at acceptance")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set at acceptance")
	}
	want := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if !rec.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", rec.Date, want)
	}
	if rec.EconomySeats != 10 || rec.BusinessSeats != 5 {
		t.Errorf("seats = %d/%d, want 10/5", rec.EconomySeats, rec.BusinessSeats)
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]string)
		wantReason string // empty means accepted
	}{
		{
			name:       "invalid date rejects",
			mutate:     func(f map[string]string) { f[ColDate] = "not-a-date" },
			wantReason: ReasonInvalidDate,
		},
		{
			name:       "missing date rejects",
			mutate:     func(f map[string]string) { f[ColDate] = "" },
			wantReason: ReasonInvalidDate,
		},
		{
			name:       "invalid economy price rejects",
			mutate:     func(f map[string]string) { f[ColEconomyPrice] = "abc" },
			wantReason: ReasonInvalidEconomyPrice,
		},
		{
			name:       "negative economy price rejects",
			mutate:     func(f map[string]string) { f[ColEconomyPrice] = "-5.00" },
			wantReason: ReasonInvalidEconomyPrice,
		},
		{
			name:       "invalid business price rejects",
			mutate:     func(f map[string]string) { f[ColBusinessPrice] = "n/a" },
			wantReason: ReasonInvalidBusinessPrice,
		},
		{
			name: "date checked before prices",
			mutate: func(f map[string]string) {
				f[ColDate] = "never"
				f[ColEconomyPrice] = "also bad"
			},
			wantReason: ReasonInvalidDate,
		},
		{
			name:   "unparsable seats default to zero",
			mutate: func(f map[string]string) { f[ColEconomySeats] = "many"; f[ColBusinessSeats] = "" },
		},
		{
			name:   "thousands separators in price accepted",
			mutate: func(f map[string]string) { f[ColEconomyPrice] = "1,234.50" },
		},
		{
			name:   "slash date layout accepted",
			mutate: func(f map[string]string) { f[ColDate] = "2025/01/10" },
		},
	}

	v := NewValidator(uuid.New())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(fields)
			rec, rej := v.Validate(testRow(7, fields))

			if tt.wantReason == "" {
				if rej != nil {
					t.Fatalf("unexpected rejection: %+v", rej)
				}
				return
			}
			if rej == nil {
				t.Fatalf("want rejection %q, got accepted %+v", tt.wantReason, rec)
			}
			if rej.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", rej.Reason, tt.wantReason)
			}
			if rej.Ordinal != 7 {
				t.Errorf("ordinal = %d, want 7", rej.Ordinal)
			}
		})
	}
}

func TestValidateSeatsDefaulted(t *testing.T) {
	v := NewValidator(uuid.New())
	fields := validFields()
	fields[ColEconomySeats] = "lots"
	fields[ColBusinessSeats] = "-3"

	rec, rej := v.Validate(testRow(1, fields))
	if rej != nil {
		t.Fatalf("seat defects must not reject: %+v", rej)
	}
	if rec.EconomySeats != 0 || rec.BusinessSeats != 0 {
		t.Errorf("seats = %d/%d, want 0/0", rec.EconomySeats, rec.BusinessSeats)
	}
}

func TestValidateTrimsCodes(t *testing.T) {
	v := NewValidator(uuid.New())
	fields := validFields()
	fields[ColRouteCode] = "  AB1  "
	fields[ColSeasonCode] = "\tWIN "

	rec, rej := v.Validate(testRow(1, fields))
	if rej != nil {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
	if rec.RouteCode != "AB1" || rec.SeasonCode != "WIN" {
		t.Errorf("codes = %q/%q, want trimmed", rec.RouteCode, rec.SeasonCode)
	}
}

// Re-validating the same raw row must yield the same outcome and identical
// normalized values except for the freshly generated id and timestamp.
func TestValidateIdempotent(t *testing.T) {
	v := NewValidator(uuid.New())
	row := testRow(3, validFields())

	a, rejA := v.Validate(row)
	b, rejB := v.Validate(row)
	if rejA != nil || rejB != nil {
		t.Fatalf("unexpected rejections: %+v %+v", rejA, rejB)
	}
	if a.ID == b.ID {
		t.Error("ids should be freshly generated each time")
	}
	a.ID, b.ID = uuid.Nil, uuid.Nil
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	if a.RouteCode != b.RouteCode || a.SeasonCode != b.SeasonCode ||
		!a.Date.Equal(b.Date) ||
		a.EconomySeats != b.EconomySeats || a.BusinessSeats != b.BusinessSeats ||
		a.EconomyPrice.Int.Cmp(b.EconomyPrice.Int) != 0 ||
		a.EconomyPrice.Exp != b.EconomyPrice.Exp ||
		a.BusinessPrice.Int.Cmp(b.BusinessPrice.Int) != 0 ||
		a.BusinessPrice.Exp != b.BusinessPrice.Exp {
		t.Errorf("normalized values differ:\n%+v\n%+v", a, b)
	}
}

func TestRowErrorNote(t *testing.T) {
	e := RowError{Ordinal: 2, Reason: ReasonInvalidDate, Value: "not-a-date"}
	want := "Row 2: invalid date 'not-a-date' - skipped"
	if got := e.Note(); got != want {
		t.Errorf("Note() = %q, want %q", got, want)
	}
}
