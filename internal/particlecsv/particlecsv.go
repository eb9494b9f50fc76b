// Package particlecsv reads the siminhale particle state CSV files and
// writes deposition summaries back out as CSV.
package particlecsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/siminhale/siminhale/pkg/deposition"
)

// Required column names. Extra columns are ignored.
const (
	ColX          = "x"
	ColY          = "y"
	ColZ          = "z"
	ColDeposition = "deposition"
	ColEscaped    = "escaped"
	ColError      = "error"
)

var requiredColumns = []string{ColX, ColY, ColZ, ColDeposition, ColEscaped, ColError}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Header maps lower-cased column names to their index.
type Header map[string]int

// ParseHeader indexes a CSV header row.
func ParseHeader(row []string) Header {
	h := make(Header, len(row))
	for i, name := range row {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

// Require returns an error naming the first absent column.
func (h Header) Require(cols ...string) error {
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			return fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}
	return nil
}

// Float parses the named cell. ok is false for a missing, empty or
// non-numeric cell.
func (h Header) Float(row []string, col string) (v float64, ok bool) {
	i, found := h[col]
	if !found || i >= len(row) {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// Read decodes every particle row of r. Rows with unreadable cells are kept
// and flagged through Record.Quality; only structural CSV errors and a
// missing required column abort the read.
func Read(r io.Reader) ([]deposition.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	headerRow, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty particle file: %w", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	header := ParseHeader(headerRow)
	if err := header.Require(requiredColumns...); err != nil {
		return nil, err
	}

	var records []deposition.Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", line, err)
		}
		records = append(records, decode(header, row, line))
	}

	return records, nil
}

func decode(h Header, row []string, line int) deposition.Record {
	rec := deposition.Record{Line: line}

	var okX, okY, okZ bool
	rec.X, okX = h.Float(row, ColX)
	rec.Y, okY = h.Float(row, ColY)
	rec.Z, okZ = h.Float(row, ColZ)
	if !okX || !okY || !okZ || !rec.Point().Finite() {
		rec.Quality |= deposition.QualityBadCoordinate
	}

	var okD, okE, okErr bool
	rec.Deposition, okD = flag(h, row, ColDeposition)
	rec.Escaped, okE = flag(h, row, ColEscaped)
	rec.Error, okErr = flag(h, row, ColError)
	if !okD || !okE || !okErr {
		rec.Quality |= deposition.QualityBadFlags
	}

	return rec
}

func flag(h Header, row []string, col string) (bool, bool) {
	v, ok := h.Float(row, col)
	if !ok || math.IsNaN(v) {
		return false, false
	}
	return v != 0, true
}

// ReadFile reads the particle CSV at path.
func ReadFile(path string) ([]deposition.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening particle file: %w", err)
	}
	defer f.Close()

	records, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// WriteSummary writes the per-segment table as CSV.
func WriteSummary(w io.Writer, s *deposition.Summary) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"segment", "count", "deposition_fraction"}); err != nil {
		return err
	}
	for _, f := range s.Segments {
		record := []string{
			strconv.Itoa(int(f.Segment)),
			strconv.Itoa(f.Count),
			strconv.FormatFloat(f.Fraction, 'f', 6, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
