package usecase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"relay-pipeline/internal/domain"
)

const (
	columnName        = "name"
	columnBring       = "bring"
	columnParticipate = "participate in hackathon"
	columnArrival     = "arrival time"
	columnComments    = "comments"
)

var requiredColumns = []string{columnName, columnBring, columnParticipate, columnArrival, columnComments}

// RowSource lazily reads form rows from a CSV stream with a header line.
// Cursor reports how many data rows have been consumed, so a run can be
// resumed with Skip.
type RowSource struct {
	reader *csv.Reader
	closer io.Closer
	index  map[string]int
	cursor int
}

// NewRowSource reads the header and checks that every form column is present.
// The source takes ownership of rc.
func NewRowSource(rc io.ReadCloser) (*RowSource, error) {
	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("usecase: read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		_ = rc.Close()
		return nil, fmt.Errorf("usecase: csv missing columns %q", missing)
	}

	return &RowSource{reader: r, closer: rc, index: index}, nil
}

// Next returns the next row, or io.EOF when the stream is exhausted.
func (s *RowSource) Next() (domain.FormRow, error) {
	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.FormRow{}, io.EOF
		}
		return domain.FormRow{}, fmt.Errorf("usecase: read csv row %d: %w", s.cursor, err)
	}
	s.cursor++

	field := func(name string) string {
		i := s.index[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}
	return domain.FormRow{
		Name:                   field(columnName),
		Bring:                  field(columnBring),
		ParticipateInHackathon: field(columnParticipate) == "Yes",
		ArrivalTime:            field(columnArrival),
		Comments:               field(columnComments),
	}, nil
}

// Skip discards up to n rows. Reaching the end early is not an error.
func (s *RowSource) Skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := s.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *RowSource) Cursor() int {
	return s.cursor
}

func (s *RowSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
