package dataset

import (
	"bufio"
	"bytes"
	"io"
)

// SniffDelimiter decides whether a CSV payload uses the semicolon or comma
// delimiter by inspecting its first line. Semicolon wins when it appears at
// all, since commas show up inside quoted free-text fields. The published
// incident extracts have shipped with both over the years.
func SniffDelimiter(data []byte) rune {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}
	if bytes.ContainsRune(data, ';') {
		return ';'
	}
	return ','
}

// sniffReader buffers a CSV stream so the delimiter can be inspected without
// consuming it.
type sniffReader struct {
	*bufio.Reader
}

func newSniffReader(r io.Reader) *sniffReader {
	return &sniffReader{Reader: bufio.NewReaderSize(r, 64*1024)}
}

func (s *sniffReader) Delimiter() rune {
	peek, _ := s.Peek(64 * 1024)
	return SniffDelimiter(peek)
}
