package geometry

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	table := Canonical()

	tests := []struct {
		name     string
		point    Point
		expected Segment
	}{
		{
			name:     "segment 1 ignores x and y",
			point:    Point{X: 100, Y: -100, Z: 0},
			expected: 1,
		},
		{
			name:     "segment 1 lower bound is inclusive",
			point:    Point{X: 0.5, Y: 0.5, Z: -0.06},
			expected: 1,
		},
		{
			name:     "outside every region",
			point:    Point{X: 1, Y: 1, Z: -1},
			expected: Unclassified,
		},
		{
			name:     "segment 2 wins over overlapping segment 3",
			point:    Point{X: -0.01, Y: 0, Z: -0.1},
			expected: 2,
		},
		{
			name:     "segment 3 below segment 2",
			point:    Point{X: -0.01, Y: 0, Z: -0.19},
			expected: 3,
		},
		{
			name:     "segment 6 lower z bound is inclusive",
			point:    Point{X: 0.035, Y: 0, Z: -0.228},
			expected: 6,
		},
		{
			name:     "segment 13 lower z bound is inclusive",
			point:    Point{X: 0.06, Y: 0, Z: -0.21},
			expected: 13,
		},
		{
			name:     "segment 13 just below the upper z bound",
			point:    Point{X: 0.06, Y: 0, Z: -0.1500001},
			expected: 13,
		},
		{
			name:     "segment 13 upper z bound is exclusive",
			point:    Point{X: 0.06, Y: 0, Z: -0.15},
			expected: Unclassified,
		},
		{
			name:     "segment 18 inside y band",
			point:    Point{X: -0.04, Y: 0.1, Z: -0.3},
			expected: 18,
		},
		{
			name:     "segment 18 upper y bound is exclusive",
			point:    Point{X: -0.04, Y: 0.13, Z: -0.3},
			expected: Unclassified,
		},
		{
			name:     "segment 22",
			point:    Point{X: -0.03, Y: 0.15, Z: -0.255},
			expected: 22,
		},
		{
			name:     "NaN x is unclassified even where only z is tested",
			point:    Point{X: math.NaN(), Y: 0, Z: 0},
			expected: Unclassified,
		},
		{
			name:     "NaN z",
			point:    Point{X: 0, Y: 0, Z: math.NaN()},
			expected: Unclassified,
		},
		{
			name:     "infinite z",
			point:    Point{X: 0, Y: 0, Z: math.Inf(1)},
			expected: Unclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Classify(tt.point); got != tt.expected {
				t.Errorf("Classify(%+v) = %d, expected %d", tt.point, got, tt.expected)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	table := Canonical()
	points := []Point{
		{X: 0, Y: 0, Z: 0},
		{X: -0.01, Y: 0, Z: -0.1},
		{X: 0.06, Y: 0, Z: -0.2},
		{X: 1, Y: 1, Z: -1},
		{X: -0.03, Y: 0.15, Z: -0.255},
	}

	first := table.ClassifyAll(points)
	second := table.ClassifyAll(points)
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("point %d: first run %d, second run %d", i, first[i], second[i])
		}
	}
}

func TestCanonicalTable(t *testing.T) {
	table := Canonical()
	if table.Version != CanonicalVersion {
		t.Errorf("Version = %q, expected %q", table.Version, CanonicalVersion)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("canonical table does not validate: %v", err)
	}

	segments := table.Segments()
	if len(segments) != MaxSegment {
		t.Fatalf("expected %d regions, got %d", MaxSegment, len(segments))
	}
	for i, s := range segments {
		if s != Segment(i+1) {
			t.Errorf("region %d has segment %d, expected %d", i, s, i+1)
		}
	}

	// Callers get copies; editing one must not leak into the registry.
	table.Regions[0].Z = Above(10)
	if Canonical().Regions[0].Z.Min != -0.06 {
		t.Errorf("registry table was mutated through a returned copy")
	}
}

func TestLookupUnknownVersion(t *testing.T) {
	if _, err := Lookup("no-such-airway"); err == nil {
		t.Error("expected error for unknown version")
	}
}

func TestOverlaps(t *testing.T) {
	overlaps := Canonical().Overlaps()

	has := func(winner, shadowed Segment) bool {
		for _, o := range overlaps {
			if o.Winner == winner && o.Shadowed == shadowed {
				return true
			}
		}
		return false
	}

	tests := []struct {
		winner, shadowed Segment
		expected         bool
	}{
		{1, 2, true},
		{2, 3, true},
		{6, 7, true},
		{8, 13, false},
		{2, 1, false},
	}

	for _, tt := range tests {
		if got := has(tt.winner, tt.shadowed); got != tt.expected {
			t.Errorf("overlap %d shadows %d: got %v, expected %v", tt.winner, tt.shadowed, got, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{
			name:  "no regions",
			table: Table{Version: "empty"},
		},
		{
			name: "segment out of range",
			table: Table{Version: "bad", Regions: []Region{
				{Segment: 23, X: Unbounded, Y: Unbounded, Z: Unbounded},
			}},
		},
		{
			name: "duplicate segment",
			table: Table{Version: "dup", Regions: []Region{
				{Segment: 1, X: Unbounded, Y: Unbounded, Z: Above(0)},
				{Segment: 1, X: Unbounded, Y: Unbounded, Z: Above(-1)},
			}},
		},
		{
			name: "empty interval",
			table: Table{Version: "inverted", Regions: []Region{
				{Segment: 4, X: Between(0.1, 0.1), Y: Unbounded, Z: Unbounded},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("Validate() = %v, expected ErrInvalidTable", err)
			}
		})
	}
}

func TestParseTable(t *testing.T) {
	data := []byte(`
version: test-airway
regions:
  - segment: 1
    z: {min: -0.06}
  - segment: 2
    z: {min: -0.18}
    x: {min: -0.016, max: 0.002}
`)

	table, err := ParseTable(data)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if table.Version != "test-airway" {
		t.Errorf("Version = %q", table.Version)
	}
	if len(table.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(table.Regions))
	}
	if table.Regions[1].Y != Unbounded {
		t.Errorf("omitted y axis should be unbounded, got %v", table.Regions[1].Y)
	}
	if got := table.Classify(Point{X: -0.01, Y: 5, Z: -0.1}); got != 2 {
		t.Errorf("Classify = %d, expected 2", got)
	}
	if got := table.Classify(Point{X: 0.01, Y: 5, Z: -0.1}); got != Unclassified {
		t.Errorf("Classify = %d, expected unclassified", got)
	}
}

func TestParseTableRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing version", "regions:\n  - segment: 1\n"},
		{"inverted bounds", "version: v\nregions:\n  - segment: 1\n    z: {min: 0.1, max: -0.1}\n"},
		{"not yaml", "version: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTable([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIntervalJSON(t *testing.T) {
	data, err := json.Marshal(Canonical().Regions[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var region Region
	if err := json.Unmarshal(data, &region); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if region.X != Unbounded || region.Y != Unbounded {
		t.Errorf("unbounded axes did not survive encoding: %s", data)
	}
	if region.Z.Min != -0.06 || !math.IsInf(region.Z.Max, 1) {
		t.Errorf("z interval = %v", region.Z)
	}
}
