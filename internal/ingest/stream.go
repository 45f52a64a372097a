package ingest

// Streaming reader wrappers applied beneath the CSV decoder. They keep
// memory at O(buffer) regardless of file size:
//
//   - bomReader strips a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - utf8Reader replaces invalid UTF-8 bytes with '?'
//
// The BOM must be stripped before sanitization so the first header cell
// decodes cleanly.

import (
	"io"
	"unicode/utf8"
)

// sanitizeStream wraps r with BOM stripping and UTF-8 sanitization.
func sanitizeStream(r io.Reader) io.Reader {
	return newUTF8Reader(newBOMReader(r))
}

// bomReader skips the UTF-8 byte order mark commonly written by Windows
// spreadsheet exports. Any other leading bytes pass through untouched.
type bomReader struct {
	r       io.Reader
	checked bool
	held    []byte
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: r}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var head [3]byte
		n, err := io.ReadFull(b.r, head[:])
		if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
			// BOM consumed; fall through to a normal read.
		} else {
			b.held = head[:n]
		}
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}

	if len(b.held) > 0 {
		n := copy(p, b.held)
		b.held = b.held[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// utf8Reader replaces each invalid UTF-8 byte with '?' so downstream text
// columns never receive malformed sequences. A multi-byte rune split across
// two reads is held back until the next call completes it.
type utf8Reader struct {
	r       io.Reader
	pending []byte
}

func newUTF8Reader(r io.Reader) *utf8Reader {
	return &utf8Reader{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (u *utf8Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	off := copy(p, u.pending)
	u.pending = u.pending[:0]

	n, err := u.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	data := p[:n]
	if asciiOnly(data) {
		return n, err
	}

	atEOF := err == io.EOF
	w := 0
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && incompleteTail(data[i:]) {
				u.pending = append(u.pending, data[i:]...)
				return w, err
			}
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return w, err
}

// asciiOnly reports whether every byte is plain ASCII. Most pricing
// spreadsheets are, so this is the common fast path.
func asciiOnly(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// incompleteTail reports whether data could be the truncated start of a
// single multi-byte rune whose remainder arrives on the next read.
func incompleteTail(data []byte) bool {
	if len(data) == 0 || len(data) >= utf8.UTFMax {
		return false
	}
	b := data[0]
	var want int
	switch {
	case b < 0xC0:
		return false
	case b < 0xE0:
		want = 2
	case b < 0xF0:
		want = 3
	default:
		want = 4
	}
	if len(data) >= want {
		return false
	}
	for _, c := range data[1:] {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}
