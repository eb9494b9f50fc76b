package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
)

func TestPrintGeometry(t *testing.T) {
	var buf bytes.Buffer
	printGeometry(&buf, geometry.Canonical())
	out := buf.String()

	expected := []string{
		"Geometry " + geometry.CanonicalVersion + ": 22 segments, first match wins",
		"Match order: 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19 20 21 22\n",
		"1 shadows 2",
		"6 shadows 7",
	}
	for _, e := range expected {
		if !strings.Contains(out, e) {
			t.Errorf("output missing %q:\n%s", e, out)
		}
	}
	if strings.Contains(out, "8 shadows 13") {
		t.Errorf("disjoint segments 8 and 13 reported as overlapping:\n%s", out)
	}
}

func TestPrintSummary(t *testing.T) {
	records := []deposition.Record{
		{X: 0, Y: 0, Z: 0.01, Deposition: true},
		{X: 1, Y: 1, Z: -1, Deposition: true},
		{Escaped: true},
	}
	s, err := deposition.Summarize(records, deposition.Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	var buf bytes.Buffer
	printSummary(&buf, s)
	out := buf.String()

	expected := []string{
		"Total particles:        3",
		"Total deposited:        2 (66.67%)",
		"Total escaped:          1 (33.33%)",
		"[not-deposited]",
		"Geometry:               " + geometry.CanonicalVersion,
		"deposition fraction (%)",
	}
	for _, e := range expected {
		if !strings.Contains(out, e) {
			t.Errorf("output missing %q:\n%s", e, out)
		}
	}
	if s.Fraction(geometry.Unclassified) != 50 {
		t.Errorf("unclassified fraction = %v, expected 50", s.Fraction(geometry.Unclassified))
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" png, ,svg,")
	if len(got) != 2 || got[0] != "png" || got[1] != "svg" {
		t.Errorf("splitList = %q", got)
	}
}
