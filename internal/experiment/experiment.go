// Package experiment runs and records fluid and particle simulations.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/siminhale/siminhale/internal/particlecsv"
	"github.com/siminhale/siminhale/internal/plot"
	"github.com/siminhale/siminhale/internal/solver"
	"github.com/siminhale/siminhale/internal/tracking"
	"github.com/siminhale/siminhale/pkg/datfile"
	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
	"github.com/siminhale/siminhale/pkg/reference"
	"go.uber.org/zap"
)

// Kind selects the simulation workflow.
type Kind string

const (
	KindFluid    Kind = "fluid"
	KindParticle Kind = "particle"
)

// ParseKind validates an experiment type given on the command line.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFluid, KindParticle:
		return k, nil
	default:
		return "", fmt.Errorf("invalid experiment type %q: expected fluid or particle", s)
	}
}

// ExperimentName is the tracking experiment runs of this kind are filed under.
func (k Kind) ExperimentName() string {
	switch k {
	case KindFluid:
		return "Fluid Simulation"
	case KindParticle:
		return "Particle Simulation"
	}
	return "Simulation"
}

// Artifact directories inside a run.
const (
	ArtifactInput     = "Input"
	ArtifactOutput    = "Output"
	ArtifactSolutions = "Output/Solutions"
	ArtifactPlots     = "Output/Plots"
)

var trackedMetrics = []string{"TIMESTEPLENGTH", "RE_NR"}

// PlotSettings controls the deposition plot of particle runs.
type PlotSettings struct {
	Formats    []string
	References []reference.Dataset
	WidthIn    float64
	HeightIn   float64
}

// Simulation is one tracked solver run.
type Simulation struct {
	Kind      Kind
	OutputDir string
	DatFile   string
	RunShell  bool
	Command   string
	// Args are passed to the solver. Args[0] is the dat file; particle runs
	// expect the particle count and fluid solution directory next.
	Args    []string
	RunName string

	Store    tracking.Store
	Analysis deposition.Options
	Plot     PlotSettings

	// Prompt and Out are used to confirm solver runs.
	Prompt io.Reader
	Out    io.Writer

	Logger *zap.SugaredLogger

	params datfile.Params
	runID  string
}

// Run records the simulation, running the solver first when RunShell is
// set. The run ends FINISHED on success and FAILED otherwise.
func (s *Simulation) Run(ctx context.Context) (err error) {
	if s.Store == nil {
		return errors.New("no tracking store configured")
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop().Sugar()
	}

	experiment := s.Kind.ExperimentName()
	start := time.Now()
	s.Logger.Infof("%s started: %s", experiment, start.Format("15:04:05"))

	name := s.RunName
	if name == "" {
		name = "Run " + start.Format("2006-01-02 (15:04)")
	}

	run, err := s.Store.CreateRun(ctx, experiment, name)
	if err != nil {
		return fmt.Errorf("error creating run: %w", err)
	}
	s.runID = run.ID

	defer func() {
		status := tracking.StatusFinished
		if err != nil {
			status = tracking.StatusFailed
		}
		if endErr := s.Store.EndRun(context.WithoutCancel(ctx), s.runID, status); endErr != nil && err == nil {
			err = fmt.Errorf("error ending run: %w", endErr)
		}

		end := time.Now()
		s.Logger.Infow("run ended",
			"run_id", s.runID,
			"status", status,
			"ended", end.Format("15:04:05"),
			"duration", end.Sub(start).Truncate(time.Second).String())
	}()

	if s.params, err = datfile.ParseFile(s.DatFile); err != nil {
		return err
	}

	if s.RunShell {
		if err := s.runSolver(ctx); err != nil {
			return err
		}
	} else {
		s.Logger.Info("Skipping the run command options")
	}

	if err := s.logArgs(ctx); err != nil {
		return err
	}
	if err := s.logParameters(ctx); err != nil {
		return err
	}
	if err := s.logMetrics(ctx); err != nil {
		return err
	}
	return s.logArtifacts(ctx)
}

func (s *Simulation) runSolver(ctx context.Context) error {
	r := &solver.Runner{
		Executable: s.Command,
		Args:       s.Args,
		WorkDir:    s.OutputDir,
		Prompt:     s.Prompt,
		Out:        s.Out,
		Logger:     s.Logger,
	}
	if err := r.Confirm(); err != nil {
		if errors.Is(err, solver.ErrNotConfirmed) {
			s.Logger.Warn("Solver run declined, recording existing output only")
			return nil
		}
		return err
	}

	stdoutPath := filepath.Join(s.OutputDir, solver.StdoutFile)
	if _, err := r.RunToFile(ctx, stdoutPath); err != nil {
		return err
	}
	return s.Store.LogArtifact(ctx, s.runID, stdoutPath, ArtifactOutput)
}

func (s *Simulation) logArgs(ctx context.Context) error {
	extraFrom := 1
	if s.Kind == KindParticle {
		if len(s.Args) < 3 {
			return fmt.Errorf("particle runs need the number of particles and the fluid solution directory, got %d arguments", len(s.Args))
		}
		if err := s.Store.SetTag(ctx, s.runID, "numberOfParticles", s.Args[1]); err != nil {
			return err
		}
		if err := s.Store.SetTag(ctx, s.runID, "inputFluidSolutions", s.Args[2]); err != nil {
			return err
		}
		extraFrom = 3
	}

	if len(s.Args) > extraFrom {
		return s.Store.LogParam(ctx, s.runID, "Extra Args", strings.Join(s.Args[extraFrom:], ","))
	}
	return nil
}

func (s *Simulation) logParameters(ctx context.Context) error {
	s.Logger.Infof("Logging %d parameters", len(s.params))
	s.Logger.Debugw("parameters", "keys", s.params.Keys())
	return s.Store.LogParams(ctx, s.runID, s.params)
}

func (s *Simulation) logMetrics(ctx context.Context) error {
	for _, key := range trackedMetrics {
		v, err := s.params.Float(key)
		if err != nil {
			s.Logger.Warnw("metric not logged", "metric", key, "error", err)
			continue
		}
		if err := s.Store.LogMetric(ctx, s.runID, key, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) logArtifacts(ctx context.Context) error {
	meshType, err := s.params.Int("MESH_TYPE")
	if err != nil {
		return err
	}
	meshKey := "BNDFILE"
	if meshType == 1 {
		meshKey = "GEOFILE"
	}
	meshFile, err := s.params.String(meshKey)
	if err != nil {
		return err
	}
	s.Logger.Info("Logging artifacts: mesh file")
	if err := s.Store.LogArtifact(ctx, s.runID, filepath.Join(s.OutputDir, meshFile), ArtifactInput); err != nil {
		return err
	}

	outFile, err := s.params.String("OUTFILE")
	if err != nil {
		return err
	}
	s.Logger.Info("Logging artifacts: output file")
	if err := s.Store.LogArtifact(ctx, s.runID, filepath.Join(s.OutputDir, outFile), ArtifactOutput); err != nil {
		return err
	}

	if vtk, err := s.params.Int("WRITE_VTK"); err == nil && vtk == 1 {
		if err := s.logVTK(ctx); err != nil {
			return err
		}
	}

	switch s.Kind {
	case KindFluid:
		return s.logFluidSolutions(ctx)
	case KindParticle:
		return s.logParticleSolutions(ctx)
	}
	return nil
}

func (s *Simulation) logVTK(ctx context.Context) error {
	vtkDir, err := s.params.String("OUTPUTDIR")
	if err != nil {
		return err
	}
	files, err := listFiles(filepath.Join(s.OutputDir, vtkDir), func(string) bool { return true })
	if err != nil {
		return err
	}

	s.Logger.Infof("Logging artifacts: %d VTK files", len(files))
	dest := ArtifactOutput + "/" + filepath.ToSlash(filepath.Clean(vtkDir))
	for _, f := range files {
		if err := s.Store.LogArtifact(ctx, s.runID, filepath.Join(s.OutputDir, vtkDir, f), dest); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) logFluidSolutions(ctx context.Context) error {
	files, err := listFiles(s.OutputDir, func(name string) bool {
		return strings.HasPrefix(name, "Solution_") && strings.HasSuffix(name, ".bin")
	})
	if err != nil {
		return err
	}

	s.Logger.Infof("Logging artifacts: %d solution files", len(files))
	for _, f := range files {
		dest := ArtifactSolutions + "/" + SolutionType(f)
		if err := s.Store.LogArtifact(ctx, s.runID, filepath.Join(s.OutputDir, f), dest); err != nil {
			return err
		}
	}
	return nil
}

// SolutionType is the upper-cased second '_' field of a fluid solution file
// name, e.g. "Solution_velocity_0001.bin" is a VELOCITY solution.
func SolutionType(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToUpper(strings.TrimSuffix(parts[1], ".bin"))
}

func (s *Simulation) logParticleSolutions(ctx context.Context) error {
	files, err := listFiles(s.OutputDir, func(name string) bool {
		return strings.HasPrefix(name, "siminhale_") && strings.HasSuffix(name, ".csv")
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no particle files in %s", s.OutputDir)
	}

	s.Logger.Infof("Logging artifacts: %d particle files", len(files))
	for _, f := range files {
		if err := s.Store.LogArtifact(ctx, s.runID, filepath.Join(s.OutputDir, f), ArtifactSolutions); err != nil {
			return err
		}
	}

	last := filepath.Join(s.OutputDir, files[len(files)-1])
	return s.logDeposition(ctx, last)
}

func (s *Simulation) logDeposition(ctx context.Context, csvPath string) error {
	records, err := particlecsv.ReadFile(csvPath)
	if err != nil {
		return err
	}

	summary, err := deposition.Summarize(records, s.Analysis)
	noDeposited := errors.Is(err, deposition.ErrNoDeposited)
	if err != nil && !noDeposited {
		return err
	}

	t := summary.Totals
	tags := []struct {
		key   string
		value int
	}{
		{"Total Particles", t.Total},
		{"Deposited Particles", t.Deposited},
		{"Escaped Particles", t.Escaped},
		{"Stagnant Particles", t.Stagnant},
		{"Errored Particles", t.Errored},
	}
	for _, tag := range tags {
		if err := s.Store.SetTag(ctx, s.runID, tag.key, strconv.Itoa(tag.value)); err != nil {
			return err
		}
	}
	if err := s.Store.SetTag(ctx, s.runID, "Stagnant Rule", string(summary.StagnantRule)); err != nil {
		return err
	}

	if noDeposited {
		s.Logger.Warnf("No deposited particles in %s, skipping deposition plot", filepath.Base(csvPath))
		return nil
	}
	if t.Unclassified > 0 {
		s.Logger.Warnf("%d deposited particles (%.2f%%) fall outside every segment",
			t.Unclassified, summary.Fraction(geometry.Unclassified))
	}

	for _, f := range summary.Segments {
		if f.Segment < 1 {
			continue
		}
		if err := s.Store.LogMetric(ctx, s.runID, fmt.Sprintf("segment_%02d_fraction", f.Segment), f.Fraction); err != nil {
			return err
		}
	}

	fig, err := plot.Render(summary, s.Plot.References, plot.Options{WidthIn: s.Plot.WidthIn, HeightIn: s.Plot.HeightIn})
	if err != nil {
		return err
	}
	written, saveErr := plot.Save(fig, filepath.Join(s.OutputDir, plot.DefaultBaseName), s.Plot.Formats)
	if saveErr != nil {
		s.Logger.Warnw("some plot formats were not written", "error", saveErr)
	}

	s.Logger.Infof("Logging artifacts: %d deposition fraction plots", len(written))
	for _, path := range written {
		if err := s.Store.LogArtifact(ctx, s.runID, path, ArtifactPlots); err != nil {
			return err
		}
	}
	return nil
}

// listFiles returns the names of regular files in dir accepted by keep, in
// lexical order.
func listFiles(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && keep(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
