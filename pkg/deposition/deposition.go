// Package deposition computes per-segment deposition fractions from the
// final particle states written by the siminhale particle solver.
package deposition

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/siminhale/siminhale/pkg/geometry"
)

var (
	// ErrNoParticles is returned when the input table has no rows.
	ErrNoParticles = errors.New("no particles")

	// ErrNoDeposited is returned when no particle is deposited and
	// non-escaped, so fractions are undefined. The accompanying summary
	// still carries the global totals.
	ErrNoDeposited = errors.New("no deposited particles")
)

// Quality flags record problems found while reading a particle row.
type Quality uint8

const (
	// QualityBadCoordinate marks a missing, non-numeric or non-finite
	// coordinate. The particle is unclassified.
	QualityBadCoordinate Quality = 1 << iota
	// QualityBadFlags marks a missing or non-numeric flag column. The
	// particle is left out of every flag-based count.
	QualityBadFlags
)

// Record is the final state of one particle.
type Record struct {
	X, Y, Z    float64
	Deposition bool
	Escaped    bool
	Error      bool
	Quality    Quality
	Line       int
}

// Point returns the particle position.
func (r Record) Point() geometry.Point {
	return geometry.Point{X: r.X, Y: r.Y, Z: r.Z}
}

// Malformed reports whether any column of the row failed to parse.
func (r Record) Malformed() bool {
	return r.Quality != 0
}

// StagnantRule selects which particles count as stagnant. The solver
// scripts disagree on this, so the rule is always explicit.
type StagnantRule string

const (
	// StagnantNotDeposited counts particles with deposition == 0.
	StagnantNotDeposited StagnantRule = "not-deposited"
	// StagnantNotEscaped counts particles with escaped == 0.
	StagnantNotEscaped StagnantRule = "not-escaped"
)

// ParseStagnantRule accepts the rule names used in configuration files.
// An empty string selects StagnantNotDeposited.
func ParseStagnantRule(s string) (StagnantRule, error) {
	switch StagnantRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", StagnantNotDeposited:
		return StagnantNotDeposited, nil
	case StagnantNotEscaped:
		return StagnantNotEscaped, nil
	default:
		return "", fmt.Errorf("unknown stagnant rule %q: use %q or %q", s, StagnantNotDeposited, StagnantNotEscaped)
	}
}

func (r StagnantRule) matches(rec Record) bool {
	if r == StagnantNotEscaped {
		return !rec.Escaped
	}
	return !rec.Deposition
}

// Options configure Summarize. The zero value uses the canonical geometry
// and StagnantNotDeposited.
type Options struct {
	Geometry *geometry.Table
	Stagnant StagnantRule
}

// SegmentFraction is one row of the per-segment table.
type SegmentFraction struct {
	Segment  geometry.Segment `json:"segment"`
	Count    int              `json:"count"`
	Fraction float64          `json:"fraction"` // percent of deposited particles
}

// Totals are counts over the whole particle table. Percentages use Total
// as the denominator.
type Totals struct {
	Total        int     `json:"total"`
	Deposited    int     `json:"deposited"`
	DepositedPct float64 `json:"deposited_pct"`
	Escaped      int     `json:"escaped"`
	EscapedPct   float64 `json:"escaped_pct"`
	Stagnant     int     `json:"stagnant"`
	StagnantPct  float64 `json:"stagnant_pct"`
	Errored      int     `json:"errored"`
	ErroredPct   float64 `json:"errored_pct"`
	Malformed    int     `json:"malformed"`
	// Unclassified counts deposited particles that matched no region.
	Unclassified int `json:"unclassified"`
}

// Summary is the deposition report for one particle table.
type Summary struct {
	Segments        []SegmentFraction `json:"segments"`
	Totals          Totals            `json:"totals"`
	GeometryVersion string            `json:"geometry_version"`
	StagnantRule    StagnantRule      `json:"stagnant_rule"`
}

// Fraction returns the deposition fraction of seg, or 0 if nothing landed
// there.
func (s *Summary) Fraction(seg geometry.Segment) float64 {
	for _, f := range s.Segments {
		if f.Segment == seg {
			return f.Fraction
		}
	}
	return 0
}

// Fractions returns a dense vector of fractions for segments 1..n.
func (s *Summary) Fractions(n int) []float64 {
	out := make([]float64, n)
	for _, f := range s.Segments {
		if f.Segment >= 1 && int(f.Segment) <= n {
			out[f.Segment-1] = f.Fraction
		}
	}
	return out
}

// Summarize classifies every record and aggregates deposition fractions
// over the particles that are deposited and not escaped.
//
// When that subset is empty the returned error wraps ErrNoDeposited and the
// summary holds only Totals.
func Summarize(records []Record, opts Options) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoParticles
	}

	table := opts.Geometry
	if table == nil {
		table = geometry.Canonical()
	}
	rule := opts.Stagnant
	if rule == "" {
		rule = StagnantNotDeposited
	}

	s := &Summary{
		GeometryVersion: table.Version,
		StagnantRule:    rule,
	}
	t := &s.Totals
	t.Total = len(records)

	counts := make(map[geometry.Segment]int)
	for _, rec := range records {
		seg := geometry.Unclassified
		if rec.Quality&QualityBadCoordinate == 0 {
			seg = table.Classify(rec.Point())
		}

		if rec.Malformed() {
			t.Malformed++
		}
		if rec.Quality&QualityBadFlags != 0 {
			continue
		}

		if rec.Escaped {
			t.Escaped++
		}
		if rec.Error {
			t.Errored++
		}
		if rule.matches(rec) {
			t.Stagnant++
		}
		if rec.Deposition && !rec.Escaped {
			counts[seg]++
			t.Deposited++
		}
	}

	total := float64(t.Total)
	t.DepositedPct = percent(t.Deposited, total)
	t.EscapedPct = percent(t.Escaped, total)
	t.StagnantPct = percent(t.Stagnant, total)
	t.ErroredPct = percent(t.Errored, total)
	t.Unclassified = counts[geometry.Unclassified]

	if t.Deposited == 0 {
		return s, fmt.Errorf("%w: %d particles, %d escaped, %d malformed", ErrNoDeposited, t.Total, t.Escaped, t.Malformed)
	}

	s.Segments = make([]SegmentFraction, 0, len(counts))
	deposited := float64(t.Deposited)
	for seg, n := range counts {
		s.Segments = append(s.Segments, SegmentFraction{
			Segment:  seg,
			Count:    n,
			Fraction: percent(n, deposited),
		})
	}
	sort.Slice(s.Segments, func(i, j int) bool {
		return s.Segments[i].Segment < s.Segments[j].Segment
	})

	return s, nil
}

func percent(n int, of float64) float64 {
	return float64(n) / of * 100
}
