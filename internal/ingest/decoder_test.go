package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecoderHeaderRecognition(t *testing.T) {
	// Reordered and unknown headers; recognized names matched wherever they
	// appear.
	input := "Comment,Date,RouteCode,EconomyPrice,BusinessPrice\n" +
		"ignore me,2025-01-10,AB1,100.50,200.00\n"

	dec, err := NewDecoder(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := row.Fields[ColDate]; got != "2025-01-10" {
		t.Errorf("Date = %q, want %q", got, "2025-01-10")
	}
	if got := row.Fields[ColRouteCode]; got != "AB1" {
		t.Errorf("RouteCode = %q, want %q", got, "AB1")
	}
	if got := row.Fields[ColSeasonCode]; got != "" {
		t.Errorf("SeasonCode = %q, want empty (column absent)", got)
	}
}

func TestDecoderRowShape(t *testing.T) {
	header := "RouteCode,SeasonCode,Date,EconomySeats,BusinessSeats,EconomyPrice,BusinessPrice\n"

	tests := []struct {
		name      string
		row       string
		wantDate  string
		wantBPr   string
	}{
		{
			name:     "full row",
			row:      "AB1,WIN,2025-01-10,10,5,100.50,200.00",
			wantDate: "2025-01-10",
			wantBPr:  "200.00",
		},
		{
			name:     "short row padded",
			row:      "AB1,WIN,2025-01-10",
			wantDate: "2025-01-10",
			wantBPr:  "",
		},
		{
			name:     "extra fields ignored",
			row:      "AB1,WIN,2025-01-10,10,5,100.50,200.00,junk,more",
			wantDate: "2025-01-10",
			wantBPr:  "200.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := NewDecoder(strings.NewReader(header + tt.row + "\n"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			row, err := dec.Next()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := row.Fields[ColDate]; got != tt.wantDate {
				t.Errorf("Date = %q, want %q", got, tt.wantDate)
			}
			if got := row.Fields[ColBusinessPrice]; got != tt.wantBPr {
				t.Errorf("BusinessPrice = %q, want %q", got, tt.wantBPr)
			}
		})
	}
}

func TestDecoderSkipsEmptyLinesAndNumbersRows(t *testing.T) {
	input := "RouteCode,Date\nAB1,2025-01-10\n,\n\nAB2,2025-01-11\n"

	dec, err := NewDecoder(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Ordinal != 1 || first.Fields[ColRouteCode] != "AB1" {
		t.Errorf("first row = ordinal %d route %q", first.Ordinal, first.Fields[ColRouteCode])
	}

	second, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Ordinal != 2 || second.Fields[ColRouteCode] != "AB2" {
		t.Errorf("second row = ordinal %d route %q", second.Ordinal, second.Fields[ColRouteCode])
	}

	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("want io.EOF, got %v", err)
	}
}

func TestDecoderBOMStripped(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("RouteCode,Date\nAB1,2025-01-10\n")...)

	dec, err := NewDecoder(strings.NewReader(string(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := row.Fields[ColRouteCode]; got != "AB1" {
		t.Errorf("RouteCode = %q, want %q (BOM corrupted header?)", got, "AB1")
	}
}

func TestDecoderEmptyStream(t *testing.T) {
	if _, err := NewDecoder(strings.NewReader("")); !errors.Is(err, ErrNoHeader) {
		t.Errorf("want ErrNoHeader, got %v", err)
	}
}

// failingReader errors after yielding its prefix, simulating a stream-level
// I/O failure mid-decode.
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestDecoderStreamFailureIsFatal(t *testing.T) {
	boom := errors.New("disk gone")
	r := &failingReader{data: []byte("RouteCode,Date\nAB1,2025-01-10\n"), err: boom}

	dec, err := NewDecoder(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); err != nil {
		t.Fatalf("first row should decode, got %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, boom) {
		t.Errorf("want wrapped stream error, got %v", err)
	}
}
