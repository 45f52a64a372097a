package ingest

import (
	"bytes"
	"io"
	"testing"
)

func TestBOMReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "leading BOM stripped",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b,c")...),
			expected: "a,b,c",
		},
		{
			name:     "no BOM untouched",
			input:    []byte("a,b,c"),
			expected: "a,b,c",
		},
		{
			name:     "bare BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM preserved",
			input:    []byte{0xEF, 0xBB, 'x'},
			expected: string([]byte{0xEF, 0xBB, 'x'}),
		},
		{
			name:     "short input preserved",
			input:    []byte{'a', 'b'},
			expected: "ab",
		},
		{
			name:     "empty",
			input:    nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := io.ReadAll(newBOMReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(out) != tt.expected {
				t.Errorf("got %q, want %q", out, tt.expected)
			}
		})
	}
}

func TestUTF8Reader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "ascii passthrough",
			input:    []byte("AB1,WIN,2025-01-10"),
			expected: "AB1,WIN,2025-01-10",
		},
		{
			name:     "valid multibyte preserved",
			input:    []byte("Zürich,Åre"),
			expected: "Zürich,Åre",
		},
		{
			name:     "invalid byte replaced",
			input:    []byte{'A', 0x80, 'B'},
			expected: "A?B",
		},
		{
			name:     "run of invalid bytes",
			input:    []byte{0xFF, 0xFE, 'x'},
			expected: "??x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := io.ReadAll(newUTF8Reader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(out) != tt.expected {
				t.Errorf("got %q, want %q", out, tt.expected)
			}
		})
	}
}

// TestUTF8ReaderSplitRune feeds a multi-byte rune across two reads to
// verify the pending-byte handling.
func TestUTF8ReaderSplitRune(t *testing.T) {
	// "é" is 0xC3 0xA9; iotest-style one-byte reads split it.
	src := oneByteReader{bytes.NewReader([]byte("aéb"))}
	out, err := io.ReadAll(newUTF8Reader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "aéb" {
		t.Errorf("got %q, want %q", out, "aéb")
	}
}

type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}
