package deposition

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/siminhale/siminhale/pkg/geometry"
)

// Positions that fall into known segments of the canonical table.
var (
	inSegment1   = Record{X: 0, Y: 0, Z: 0}
	inSegment2   = Record{X: -0.01, Y: 0, Z: -0.1}
	inSegment13  = Record{X: 0.06, Y: 0, Z: -0.2}
	outsideTable = Record{X: 1, Y: 1, Z: -1}
)

func deposited(r Record) Record {
	r.Deposition = true
	return r
}

func TestSummarizeFractions(t *testing.T) {
	records := []Record{
		deposited(inSegment1),
		deposited(inSegment1),
		deposited(inSegment2),
		deposited(inSegment2),
		deposited(inSegment2),
		deposited(outsideTable),
	}

	s, err := Summarize(records, Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	expected := []struct {
		segment  geometry.Segment
		count    int
		fraction float64
	}{
		{geometry.Unclassified, 1, 16.6667},
		{1, 2, 33.3333},
		{2, 3, 50.0},
	}

	if len(s.Segments) != len(expected) {
		t.Fatalf("expected %d segments, got %d: %+v", len(expected), len(s.Segments), s.Segments)
	}
	for i, e := range expected {
		got := s.Segments[i]
		if got.Segment != e.segment || got.Count != e.count {
			t.Errorf("row %d: got segment %d count %d, expected segment %d count %d",
				i, got.Segment, got.Count, e.segment, e.count)
		}
		if math.Abs(got.Fraction-e.fraction) > 0.001 {
			t.Errorf("row %d: fraction %.4f, expected %.4f", i, got.Fraction, e.fraction)
		}
	}

	fractions := make([]float64, len(s.Segments))
	for i, f := range s.Segments {
		fractions[i] = f.Fraction
	}
	if sum := floats.Sum(fractions); math.Abs(sum-100) > 1e-9 {
		t.Errorf("fractions sum to %v, expected 100", sum)
	}

	if s.Totals.Deposited != 6 {
		t.Errorf("Deposited = %d, expected 6", s.Totals.Deposited)
	}
	if s.Totals.Unclassified != 1 {
		t.Errorf("Unclassified = %d, expected 1", s.Totals.Unclassified)
	}
	if s.GeometryVersion != geometry.CanonicalVersion {
		t.Errorf("GeometryVersion = %q", s.GeometryVersion)
	}
	if s.StagnantRule != StagnantNotDeposited {
		t.Errorf("StagnantRule = %q", s.StagnantRule)
	}
}

func TestSummarizeExcludesEscaped(t *testing.T) {
	escaped := deposited(inSegment13)
	escaped.Escaped = true

	records := []Record{
		deposited(inSegment13),
		escaped,
		inSegment1,
	}

	s, err := Summarize(records, Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(s.Segments) != 1 || s.Segments[0].Segment != 13 || s.Segments[0].Count != 1 {
		t.Fatalf("unexpected segments: %+v", s.Segments)
	}
	if s.Segments[0].Fraction != 100 {
		t.Errorf("Fraction = %v, expected 100", s.Segments[0].Fraction)
	}
	if math.Abs(s.Totals.DepositedPct-100.0/3) > 1e-9 {
		t.Errorf("DepositedPct = %v", s.Totals.DepositedPct)
	}
}

func TestSummarizeGlobalCounts(t *testing.T) {
	records := make([]Record, 10)
	for i := range records {
		records[i] = deposited(inSegment1)
	}
	for i := 0; i < 3; i++ {
		records[i].Escaped = true
	}
	records[5].Error = true
	records[6].Error = true
	records[9].Deposition = false

	s, err := Summarize(records, Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"total", float64(s.Totals.Total), 10},
		{"deposited", float64(s.Totals.Deposited), 6},
		{"deposited pct", s.Totals.DepositedPct, 60},
		{"escaped", float64(s.Totals.Escaped), 3},
		{"escaped pct", s.Totals.EscapedPct, 30},
		{"errored", float64(s.Totals.Errored), 2},
		{"errored pct", s.Totals.ErroredPct, 20},
		{"stagnant", float64(s.Totals.Stagnant), 1},
		{"stagnant pct", s.Totals.StagnantPct, 10},
	}

	for _, tt := range tests {
		if math.Abs(tt.got-tt.expected) > 1e-9 {
			t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.expected)
		}
	}
}

func TestSummarizeStagnantRules(t *testing.T) {
	escapedOnly := inSegment1
	escapedOnly.Escaped = true

	records := []Record{
		deposited(inSegment1),
		deposited(inSegment2),
		inSegment1,
		escapedOnly,
	}

	tests := []struct {
		rule     StagnantRule
		expected int
	}{
		{StagnantNotDeposited, 2},
		{StagnantNotEscaped, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			s, err := Summarize(records, Options{Stagnant: tt.rule})
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if s.Totals.Stagnant != tt.expected {
				t.Errorf("Stagnant = %d, expected %d", s.Totals.Stagnant, tt.expected)
			}
			if s.StagnantRule != tt.rule {
				t.Errorf("StagnantRule = %q, expected %q", s.StagnantRule, tt.rule)
			}
		})
	}
}

func TestSummarizeNoDeposited(t *testing.T) {
	escaped := deposited(inSegment1)
	escaped.Escaped = true

	records := []Record{inSegment1, inSegment2, escaped}

	s, err := Summarize(records, Options{})
	if !errors.Is(err, ErrNoDeposited) {
		t.Fatalf("expected ErrNoDeposited, got %v", err)
	}
	if s == nil {
		t.Fatal("expected totals alongside ErrNoDeposited")
	}
	if s.Segments != nil {
		t.Errorf("expected no segment rows, got %+v", s.Segments)
	}
	if s.Totals.Total != 3 || s.Totals.Escaped != 1 {
		t.Errorf("unexpected totals: %+v", s.Totals)
	}
	for _, v := range []float64{s.Totals.DepositedPct, s.Totals.EscapedPct, s.Totals.StagnantPct} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("non-finite percentage in totals: %+v", s.Totals)
		}
	}
}

func TestSummarizeNoParticles(t *testing.T) {
	s, err := Summarize(nil, Options{})
	if !errors.Is(err, ErrNoParticles) {
		t.Errorf("expected ErrNoParticles, got %v", err)
	}
	if s != nil {
		t.Errorf("expected nil summary, got %+v", s)
	}
}

func TestSummarizeMalformedRows(t *testing.T) {
	badCoord := deposited(Record{X: math.NaN(), Y: 0, Z: 0, Quality: QualityBadCoordinate})
	badFlags := Record{X: 0, Y: 0, Z: 0, Quality: QualityBadFlags}

	records := []Record{
		deposited(inSegment1),
		badCoord,
		badFlags,
	}

	s, err := Summarize(records, Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Totals.Malformed != 2 {
		t.Errorf("Malformed = %d, expected 2", s.Totals.Malformed)
	}
	if s.Totals.Deposited != 2 {
		t.Errorf("Deposited = %d, expected 2", s.Totals.Deposited)
	}
	if s.Totals.Stagnant != 0 {
		t.Errorf("row with unknown flags counted as stagnant: %+v", s.Totals)
	}
	if s.Fraction(geometry.Unclassified) != 50 {
		t.Errorf("unclassified fraction = %v, expected 50", s.Fraction(geometry.Unclassified))
	}
}

func TestSummarizeCustomGeometry(t *testing.T) {
	table := &geometry.Table{
		Version: "single-box",
		Regions: []geometry.Region{
			{Segment: 7, X: geometry.Unbounded, Y: geometry.Unbounded, Z: geometry.Above(-10)},
		},
	}

	s, err := Summarize([]Record{deposited(inSegment2)}, Options{Geometry: table})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.GeometryVersion != "single-box" {
		t.Errorf("GeometryVersion = %q", s.GeometryVersion)
	}
	if s.Fraction(7) != 100 {
		t.Errorf("segment 7 fraction = %v, expected 100", s.Fraction(7))
	}
}

func TestFractions(t *testing.T) {
	s := &Summary{Segments: []SegmentFraction{
		{Segment: geometry.Unclassified, Count: 1, Fraction: 10},
		{Segment: 1, Count: 4, Fraction: 40},
		{Segment: 22, Count: 5, Fraction: 50},
	}}

	got := s.Fractions(geometry.MaxSegment)
	if len(got) != geometry.MaxSegment {
		t.Fatalf("expected %d values, got %d", geometry.MaxSegment, len(got))
	}
	if got[0] != 40 || got[21] != 50 || got[10] != 0 {
		t.Errorf("unexpected dense fractions: %v", got)
	}
}

func TestParseStagnantRule(t *testing.T) {
	tests := []struct {
		in       string
		expected StagnantRule
		wantErr  bool
	}{
		{"", StagnantNotDeposited, false},
		{"not-deposited", StagnantNotDeposited, false},
		{" Not-Escaped ", StagnantNotEscaped, false},
		{"airborne", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStagnantRule(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStagnantRule(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseStagnantRule(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}
