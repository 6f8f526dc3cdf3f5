package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVStream reads a large CSV payload one record at a time.
type CSVStream struct {
	r      *csv.Reader
	header map[string]int
	names  []string
}

// NewCSVStream reads the header row of r.
func NewCSVStream(r io.Reader) (*CSVStream, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	s := &CSVStream{r: cr, header: make(map[string]int, len(head))}
	for i, h := range head {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		s.names = append(s.names, h)
		if _, dup := s.header[h]; !dup {
			s.header[h] = i
		}
	}
	return s, nil
}

// Columns returns the header names.
func (s *CSVStream) Columns() []string { return s.names }

// Index returns the position of the first candidate present, or -1.
func (s *CSVStream) Index(candidates ...string) int {
	for _, c := range candidates {
		if i, ok := s.header[c]; ok {
			return i
		}
	}
	return -1
}

// Each calls fn for every record. The slice is reused between calls.
func (s *CSVStream) Each(fn func(rec []string)) error {
	for {
		rec, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("csv: read record: %w", err)
		}
		fn(rec)
	}
}

// Field returns rec[i] trimmed, or "" when i is out of range.
func Field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
