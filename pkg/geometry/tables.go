package geometry

import (
	"fmt"
	"sort"
)

// CanonicalVersion names the airway table used when nothing else is
// configured.
const CanonicalVersion = "siminhale-airway-v1"

// airwayV1 is the hand-tuned segmentation of the siminhale airway mesh,
// z measured from the inlet at 0.02 m. Order is significant.
var airwayV1 = []Region{
	{Segment: 1, X: Unbounded, Y: Unbounded, Z: Above(-0.06)},
	{Segment: 2, X: Between(-0.016, 0.002), Y: Unbounded, Z: Above(-0.180)},
	{Segment: 3, X: Between(-0.018, 0.002), Y: Unbounded, Z: Above(-0.200)},
	{Segment: 4, X: Between(-0.006, 0.030), Y: Unbounded, Z: Above(-0.216)},
	{Segment: 5, X: Between(0.025, 0.037), Y: Unbounded, Z: Above(-0.220)},
	{Segment: 6, X: Between(0.031, 0.042), Y: Unbounded, Z: Between(-0.228, -0.215)},
	{Segment: 7, X: Between(0.033, 0.047), Y: Unbounded, Z: Between(-0.217, -0.207)},
	{Segment: 8, X: Between(-0.026, -0.007), Y: Unbounded, Z: Between(-0.207, -0.187)},
	{Segment: 9, X: Between(-0.037, -0.023), Y: Unbounded, Z: Between(-0.206, -0.190)},
	{Segment: 10, X: Between(-0.034, -0.014), Y: Unbounded, Z: Between(-0.223, -0.205)},
	{Segment: 11, X: Between(-0.049, -0.031), Y: Unbounded, Z: Between(-0.230, -0.221)},
	{Segment: 12, X: Between(-0.042, -0.032), Y: Unbounded, Z: Between(-0.246, -0.226)},
	{Segment: 13, X: Between(0.041, 0.090), Y: Unbounded, Z: Between(-0.210, -0.150)},
	{Segment: 14, X: Between(0.011, 0.046), Y: Unbounded, Z: Between(-0.260, -0.220)},
	{Segment: 15, X: Between(0.033, 0.083), Y: Unbounded, Z: Between(-0.310, -0.230)},
	{Segment: 16, X: Between(0.047, 0.111), Y: Unbounded, Z: Between(-0.245, -0.205)},
	{Segment: 17, X: Between(-0.110, -0.047), Y: Unbounded, Z: Between(-0.260, -0.222)},
	{Segment: 18, X: Between(-0.066, -0.020), Y: Between(0.080, 0.130), Z: Between(-0.310, -0.230)},
	{Segment: 19, X: Between(-0.110, -0.040), Y: Between(0.080, 0.134), Z: Between(-0.200, -0.140)},
	{Segment: 20, X: Between(-0.100, -0.044), Y: Between(0.095, 0.110), Z: Between(-0.245, -0.225)},
	{Segment: 21, X: Between(-0.090, -0.020), Y: Between(0.110, 0.210), Z: Between(-0.230, -0.150)},
	{Segment: 22, X: Between(-0.070, -0.020), Y: Between(0.120, 0.180), Z: Between(-0.260, -0.220)},
}

var registry = map[string][]Region{
	CanonicalVersion: airwayV1,
}

// Canonical returns a fresh copy of the canonical airway table.
func Canonical() *Table {
	t, _ := Lookup(CanonicalVersion)
	return t
}

// Lookup returns a copy of a built-in table by version name.
func Lookup(version string) (*Table, error) {
	regions, ok := registry[version]
	if !ok {
		return nil, fmt.Errorf("unknown geometry version %q (known: %v)", version, Versions())
	}
	return &Table{
		Version: version,
		Regions: append([]Region(nil), regions...),
	}, nil
}

// Versions lists the built-in table names.
func Versions() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
