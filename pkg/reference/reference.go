// Package reference holds published deposition fractions for the airway
// model and scores simulated fractions against them.
package reference

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Dataset is one reference curve: deposition fraction in percent for
// segments 1..22, in segment order.
type Dataset struct {
	Name      string    `json:"name"`
	Method    string    `json:"method"`
	SizeMicro float64   `json:"particle_size_um"`
	Fractions []float64 `json:"fractions"`
}

// Published curves for 4.3 µm particles.
var (
	LES1 = Dataset{Name: "LES1", Method: "LES", SizeMicro: 4.3, Fractions: []float64{
		3.113, 0.454, 0.749, 0.295, 1.695, 1.347, 1.259, 0.972, 1.280, 1.079, 3.840,
		2.167, 0.257, 0.651, 1.829, 1.291, 2.654, 1.686, 4.334, 4.634, 2.537, 4.704,
	}}
	LES2 = Dataset{Name: "LES2", Method: "LES", SizeMicro: 4.3, Fractions: []float64{
		17.977, 5.771, 1.797, 0.849, 1.376, 1.841, 1.507, 1.368, 1.747, 1.660, 3.122,
		2.834, 0.857, 0.733, 7.614, 3.547, 3.960, 6.137, 7.182, 3.707, 4.274, 4.637,
	}}
	RANS1 = Dataset{Name: "RANS1", Method: "RANS", SizeMicro: 4.3, Fractions: []float64{
		20.087, 7.173, 1.506, 1.534, 1.328, 1.765, 0.885, 1.831, 1.409, 1.928, 3.059,
		2.123, 0.548, 0.403, 2.970, 1.285, 2.227, 3.234, 3.293, 2.219, 1.540, 2.630,
	}}
	RANS3 = Dataset{Name: "RANS3", Method: "RANS", SizeMicro: 4.3, Fractions: []float64{
		2.992, 0.503, 0.462, 0.307, 0.878, 0.869, 0.967, 0.722, 1.146, 1.117, 1.646,
		1.030, 0.186, 0.397, 1.670, 1.425, 1.452, 1.133, 2.054, 2.123, 1.866, 1.845,
	}}
)

// All returns the built-in datasets in plotting order.
func All() []Dataset {
	return []Dataset{LES1, LES2, RANS1, RANS3}
}

// Select returns the named datasets, case-insensitively. An empty list
// selects all of them.
func Select(names []string) ([]Dataset, error) {
	if len(names) == 0 {
		return All(), nil
	}
	var out []Dataset
	for _, name := range names {
		found := false
		for _, d := range All() {
			if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
				out = append(out, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown reference dataset %q", name)
		}
	}
	return out, nil
}

// Comparison scores a simulated curve against one dataset. RMSE and MAE
// are in percentage points.
type Comparison struct {
	Dataset     string  `json:"dataset"`
	RMSE        float64 `json:"rmse"`
	MAE         float64 `json:"mae"`
	Correlation float64 `json:"correlation"`
	// LogRMSE is the RMSE of log10 fractions over segments where both
	// curves are positive; LogPoints is the number of such segments.
	LogRMSE   float64 `json:"log_rmse"`
	LogPoints int     `json:"log_points"`
}

// Compare scores sim, a dense fraction vector in segment order, against ref.
func Compare(sim []float64, ref Dataset) (Comparison, error) {
	if len(sim) != len(ref.Fractions) {
		return Comparison{}, fmt.Errorf("simulation has %d segments, %s has %d", len(sim), ref.Name, len(ref.Fractions))
	}
	if len(sim) == 0 {
		return Comparison{}, fmt.Errorf("nothing to compare against %s", ref.Name)
	}

	n := float64(len(sim))
	diff := make([]float64, len(sim))
	floats.SubTo(diff, sim, ref.Fractions)

	c := Comparison{Dataset: ref.Name}
	c.RMSE = floats.Norm(diff, 2) / math.Sqrt(n)
	c.MAE = floats.Norm(diff, 1) / n
	c.Correlation = stat.Correlation(sim, ref.Fractions, nil)

	var logDiff []float64
	for i := range sim {
		if sim[i] > 0 && ref.Fractions[i] > 0 {
			logDiff = append(logDiff, math.Log10(sim[i])-math.Log10(ref.Fractions[i]))
		}
	}
	c.LogPoints = len(logDiff)
	if c.LogPoints > 0 {
		c.LogRMSE = floats.Norm(logDiff, 2) / math.Sqrt(float64(c.LogPoints))
	}

	return c, nil
}

// CompareAll scores sim against every dataset in refs.
func CompareAll(sim []float64, refs []Dataset) ([]Comparison, error) {
	out := make([]Comparison, 0, len(refs))
	for _, ref := range refs {
		c, err := Compare(sim, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
