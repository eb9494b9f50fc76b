package particlecsv

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/siminhale/siminhale/pkg/deposition"
)

func TestRead(t *testing.T) {
	input := `id,X,y,z,deposition,escaped,error
1,0.0,0.0,0.01,1,0,0
2,-0.01,0.0,-0.1,1.0,0,1
3,abc,0.0,-0.1,1,0,0
4,0.0,0.0,-0.1,yes,0,0
5,0.0,0.0
6,NaN,0,0,0,1,0
`

	records, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}

	tests := []struct {
		line       int
		quality    deposition.Quality
		deposition bool
		escaped    bool
		errored    bool
	}{
		{2, 0, true, false, false},
		{3, 0, true, false, true},
		{4, deposition.QualityBadCoordinate, true, false, false},
		{5, deposition.QualityBadFlags, false, false, false},
		{6, deposition.QualityBadCoordinate | deposition.QualityBadFlags, false, false, false},
		{7, deposition.QualityBadCoordinate, false, true, false},
	}

	for i, tt := range tests {
		r := records[i]
		if r.Line != tt.line {
			t.Errorf("record %d: Line = %d, expected %d", i, r.Line, tt.line)
		}
		if r.Quality != tt.quality {
			t.Errorf("line %d: Quality = %b, expected %b", tt.line, r.Quality, tt.quality)
		}
		if r.Deposition != tt.deposition || r.Escaped != tt.escaped || r.Error != tt.errored {
			t.Errorf("line %d: flags = %v/%v/%v, expected %v/%v/%v", tt.line,
				r.Deposition, r.Escaped, r.Error, tt.deposition, tt.escaped, tt.errored)
		}
	}

	if records[1].X != -0.01 || records[1].Z != -0.1 {
		t.Errorf("coordinates not parsed: %+v", records[1])
	}
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("x,y,z,deposition,error\n0,0,0,1,0\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "escaped") {
		t.Errorf("error should name the missing column: %v", err)
	}
}

func TestReadEmpty(t *testing.T) {
	if _, err := Read(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siminhale_0100.csv")
	data := "x,y,z,deposition,escaped,error\n0,0,0,1,0,0\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(records) != 1 || !records[0].Deposition {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestWriteSummary(t *testing.T) {
	s := &deposition.Summary{Segments: []deposition.SegmentFraction{
		{Segment: -1, Count: 1, Fraction: 25},
		{Segment: 3, Count: 3, Fraction: 75},
	}}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, s); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	expected := "segment,count,deposition_fraction\n-1,1,25.000000\n3,3,75.000000\n"
	if buf.String() != expected {
		t.Errorf("got:\n%s\nexpected:\n%s", buf.String(), expected)
	}
}
