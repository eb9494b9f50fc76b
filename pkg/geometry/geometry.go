// Package geometry classifies particle positions into the airway segments
// of the siminhale lung geometry.
//
// A Table is an ordered cascade of axis-aligned regions. Classification is
// first-match-wins: regions may overlap, and the earlier region always takes
// the point. Tables must therefore never be re-ordered.
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Segment is an airway segment label. Valid labels are 1..MaxSegment.
type Segment int

const (
	// Unclassified is returned for points outside every region.
	Unclassified Segment = -1

	// MaxSegment is the highest segment label in the airway model.
	MaxSegment = 22
)

// Valid reports whether s is a real segment label.
func (s Segment) Valid() bool {
	return s >= 1 && s <= MaxSegment
}

// Point is a particle position in metres, simulation frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Finite reports whether all three coordinates are finite numbers.
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Interval is a half-open range [Min, Max). Infinite bounds leave the axis
// unconstrained on that side.
type Interval struct {
	Min float64
	Max float64
}

// Unbounded places no constraint on an axis.
var Unbounded = Interval{Min: math.Inf(-1), Max: math.Inf(1)}

// Above returns [min, +Inf).
func Above(min float64) Interval {
	return Interval{Min: min, Max: math.Inf(1)}
}

// Between returns [min, max).
func Between(min, max float64) Interval {
	return Interval{Min: min, Max: max}
}

// Contains reports whether Min <= v < Max.
func (i Interval) Contains(v float64) bool {
	return v >= i.Min && v < i.Max
}

func (i Interval) String() string {
	if i == Unbounded {
		return "*"
	}
	return fmt.Sprintf("[%g, %g)", i.Min, i.Max)
}

type boundsJSON struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// MarshalJSON omits infinite bounds, which JSON cannot represent.
func (i Interval) MarshalJSON() ([]byte, error) {
	var b boundsJSON
	if !math.IsInf(i.Min, 0) {
		b.Min = &i.Min
	}
	if !math.IsInf(i.Max, 0) {
		b.Max = &i.Max
	}
	return json.Marshal(b)
}

// UnmarshalJSON treats a missing bound as unconstrained.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var b boundsJSON
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*i = boundsInterval(b.Min, b.Max)
	return nil
}

func boundsInterval(min, max *float64) Interval {
	iv := Unbounded
	if min != nil {
		iv.Min = *min
	}
	if max != nil {
		iv.Max = *max
	}
	return iv
}

func (i Interval) intersects(o Interval) bool {
	return math.Max(i.Min, o.Min) < math.Min(i.Max, o.Max)
}

// Region is the bounding box of one segment.
type Region struct {
	Segment Segment  `json:"segment"`
	X       Interval `json:"x"`
	Y       Interval `json:"y"`
	Z       Interval `json:"z"`
}

// Contains reports whether p lies inside the region on all three axes.
func (r Region) Contains(p Point) bool {
	return r.Z.Contains(p.Z) && r.X.Contains(p.X) && r.Y.Contains(p.Y)
}

// Table is a named, ordered set of regions.
type Table struct {
	Version string   `json:"version"`
	Regions []Region `json:"regions"`
}

// Classify returns the segment of the first region containing p. Points with
// a NaN or infinite coordinate are always Unclassified.
func (t *Table) Classify(p Point) Segment {
	if !p.Finite() {
		return Unclassified
	}
	for _, r := range t.Regions {
		if r.Contains(p) {
			return r.Segment
		}
	}
	return Unclassified
}

// ClassifyAll classifies each point in order.
func (t *Table) ClassifyAll(points []Point) []Segment {
	out := make([]Segment, len(points))
	for i, p := range points {
		out[i] = t.Classify(p)
	}
	return out
}

// Overlap describes two regions whose boxes intersect. Points in the
// intersection are claimed by Winner, the earlier entry of the table.
type Overlap struct {
	Winner   Segment `json:"winner"`
	Shadowed Segment `json:"shadowed"`
}

// Overlaps lists every intersecting pair of regions in table order.
func (t *Table) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(t.Regions); i++ {
		a := t.Regions[i]
		for j := i + 1; j < len(t.Regions); j++ {
			b := t.Regions[j]
			if a.X.intersects(b.X) && a.Y.intersects(b.Y) && a.Z.intersects(b.Z) {
				out = append(out, Overlap{Winner: a.Segment, Shadowed: b.Segment})
			}
		}
	}
	return out
}

// ErrInvalidTable is wrapped by every Validate failure.
var ErrInvalidTable = errors.New("invalid geometry table")

// Validate checks that the table is usable for classification.
func (t *Table) Validate() error {
	if len(t.Regions) == 0 {
		return fmt.Errorf("%w: %q has no regions", ErrInvalidTable, t.Version)
	}
	seen := make(map[Segment]bool, len(t.Regions))
	for i, r := range t.Regions {
		if !r.Segment.Valid() {
			return fmt.Errorf("%w: region %d has segment %d outside 1..%d", ErrInvalidTable, i, r.Segment, MaxSegment)
		}
		if seen[r.Segment] {
			return fmt.Errorf("%w: segment %d defined twice", ErrInvalidTable, r.Segment)
		}
		seen[r.Segment] = true
		for axis, iv := range [3]Interval{r.X, r.Y, r.Z} {
			if math.IsNaN(iv.Min) || math.IsNaN(iv.Max) || iv.Min >= iv.Max {
				return fmt.Errorf("%w: segment %d has empty %c interval %v", ErrInvalidTable, r.Segment, "xyz"[axis], iv)
			}
		}
	}
	return nil
}

// Segments returns the labels in table order.
func (t *Table) Segments() []Segment {
	out := make([]Segment, len(t.Regions))
	for i, r := range t.Regions {
		out[i] = r.Segment
	}
	return out
}
