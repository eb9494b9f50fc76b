package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/siminhale/siminhale/internal/experiment"
	"github.com/siminhale/siminhale/internal/log"
	"github.com/siminhale/siminhale/internal/tracking"
	"github.com/siminhale/siminhale/pkg/config"
	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
	"github.com/siminhale/siminhale/pkg/reference"
)

func main() {
	var (
		cfgFile    = flag.String("config", "siminhale.yaml", "Path to the YAML configuration (optional unless set explicitly)")
		runShell   = flag.Bool("run-shell", false, "Run the solver before recording the run")
		executable = flag.String("executable", "", "Solver executable inside the output directory (default: solver.executable)")
		args       = flag.String("args", "", "Comma separated solver arguments after the dat file")
		runName    = flag.String("name", "", "Run name (default: the start time)")
		debug      = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <fluid|particle> <output directory> <dat file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}

	cfgExplicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			cfgExplicit = true
		}
	})
	cfg, err := config.Load(*cfgFile, cfgExplicit)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(log.Options{Debug: *debug || cfg.Logging.Debug, File: cfg.Logging.File}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	kind, err := experiment.ParseKind(flag.Arg(0))
	if err != nil {
		log.Errorf("Failed to parse experiment type: %v", err)
		os.Exit(1)
	}
	outDir := flag.Arg(1)
	datFile := datPath(outDir, flag.Arg(2))

	exe := cfg.Solver.Executable
	if *executable != "" {
		exe = *executable
	}
	solverArgs := []string{datFile}
	for _, a := range strings.Split(*args, ",") {
		if a = strings.TrimSpace(a); a != "" {
			solverArgs = append(solverArgs, a)
		}
	}

	table, err := geometry.Resolve(cfg.Geometry.Version, cfg.Geometry.File)
	if err != nil {
		log.Errorf("Failed to load geometry: %v", err)
		os.Exit(1)
	}
	rule, err := deposition.ParseStagnantRule(cfg.Analysis.StagnantRule)
	if err != nil {
		log.Errorf("Failed to parse stagnant rule: %v", err)
		os.Exit(1)
	}
	refs, err := reference.Select(cfg.Plot.References)
	if err != nil {
		log.Errorf("Failed to select reference datasets: %v", err)
		os.Exit(1)
	}

	store, err := tracking.Open(cfg.Tracking, log.Named("tracking"))
	if err != nil {
		log.Errorf("Failed to open run tracking store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := &experiment.Simulation{
		Kind:      kind,
		OutputDir: outDir,
		DatFile:   datFile,
		RunShell:  *runShell,
		Command:   filepath.Join(outDir, exe),
		Args:      solverArgs,
		RunName:   *runName,
		Store:     store,
		Analysis:  deposition.Options{Geometry: table, Stagnant: rule},
		Plot: experiment.PlotSettings{
			Formats:    cfg.Plot.Formats,
			References: refs,
			WidthIn:    cfg.Plot.WidthIn,
			HeightIn:   cfg.Plot.HeightIn,
		},
		Prompt: os.Stdin,
		Out:    os.Stdout,
		Logger: log.Named(string(kind)),
	}
	if err := sim.Run(ctx); err != nil {
		log.Errorf("Failed to track %s simulation: %v", kind, err)
		os.Exit(1)
	}
}

// datPath resolves the dat file against the output directory unless it is
// already absolute.
func datPath(outDir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(outDir, name)
}
