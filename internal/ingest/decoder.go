package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned when the stream ends before a header line.
var ErrNoHeader = errors.New("ingest: stream has no header line")

// Decoder turns a byte stream into a lazy sequence of RawRow. The first
// record is treated as the header; recognized column names are located by
// exact match wherever they appear. Rows are decoded incrementally, so the
// stream never needs to fit in memory.
//
// The decoder is tolerant by design: short rows are padded with empty
// fields, extra fields are ignored, and unknown header names are skipped.
// Only an I/O failure of the underlying stream aborts the sequence.
type Decoder struct {
	r       *csv.Reader
	cols    map[string]int
	ordinal int
}

// NewDecoder reads the header line and prepares row decoding. The input is
// wrapped with BOM stripping and UTF-8 sanitization first.
func NewDecoder(r io.Reader) (*Decoder, error) {
	cr := csv.NewReader(sanitizeStream(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(recognizedColumns))
	for pos, name := range header {
		name = strings.TrimSpace(name)
		for _, want := range recognizedColumns {
			if name == want {
				cols[want] = pos
				break
			}
		}
	}

	return &Decoder{r: cr, cols: cols}, nil
}

// Next returns the next data row. Fully empty lines are skipped and do not
// count toward row ordinals. io.EOF signals a cleanly exhausted stream; any
// other error is fatal to the run.
func (d *Decoder) Next() (RawRow, error) {
	for {
		rec, err := d.r.Read()
		if err == io.EOF {
			return RawRow{}, io.EOF
		}
		if err != nil {
			return RawRow{}, fmt.Errorf("decode row %d: %w", d.ordinal+1, err)
		}
		if emptyRecord(rec) {
			continue
		}

		d.ordinal++
		fields := make(map[string]string, len(d.cols))
		for name, pos := range d.cols {
			if pos < len(rec) {
				fields[name] = rec[pos]
			} else {
				fields[name] = ""
			}
		}
		return RawRow{Ordinal: d.ordinal, Fields: fields}, nil
	}
}

func emptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
