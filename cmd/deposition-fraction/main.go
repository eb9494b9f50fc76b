package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/siminhale/siminhale/internal/log"
	"github.com/siminhale/siminhale/internal/particlecsv"
	"github.com/siminhale/siminhale/internal/plot"
	"github.com/siminhale/siminhale/pkg/config"
	"github.com/siminhale/siminhale/pkg/deposition"
	"github.com/siminhale/siminhale/pkg/geometry"
	"github.com/siminhale/siminhale/pkg/reference"
)

func main() {
	var (
		cfgFile       = flag.String("config", "siminhale.yaml", "Path to the YAML configuration (optional unless set explicitly)")
		geomVersion   = flag.String("geometry", "", "Built-in segment table version (default: configured or "+geometry.CanonicalVersion+")")
		geomFile      = flag.String("geometry-file", "", "YAML segment table to use instead of a built-in one")
		stagnant      = flag.String("stagnant", "", "Stagnant rule: not-deposited or not-escaped (default: configured or not-deposited)")
		save          = flag.Bool("save", false, "Save the deposition plot instead of only printing the report")
		out           = flag.String("out", plot.DefaultBaseName, "Plot output path without extension")
		formats       = flag.String("formats", "", "Comma separated plot formats (default: configured formats)")
		references    = flag.String("references", "", "Comma separated reference datasets to compare and plot (default: all)")
		jsonOut       = flag.Bool("json", false, "Print the summary as JSON")
		csvOut        = flag.String("csv", "", "Optional CSV output file for the per-segment table")
		checkGeometry = flag.Bool("check-geometry", false, "Print the segment table and the segments it shadows, then exit")
		listGeometry  = flag.Bool("list-geometries", false, "List built-in segment tables and exit")
		debug         = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <particle csv>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := log.Init(log.Options{Debug: *debug}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *listGeometry {
		for _, v := range geometry.Versions() {
			fmt.Println(v)
		}
		return
	}

	cfg, err := config.Load(*cfgFile, flagSet("config"))
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if *geomVersion != "" || *geomFile != "" {
		cfg.Geometry.Version, cfg.Geometry.File = *geomVersion, *geomFile
	}
	if *stagnant != "" {
		cfg.Analysis.StagnantRule = *stagnant
	}
	if *formats != "" {
		cfg.Plot.Formats = splitList(*formats)
	}
	if *references != "" {
		cfg.Plot.References = splitList(*references)
	}

	table, err := geometry.Resolve(cfg.Geometry.Version, cfg.Geometry.File)
	if err != nil {
		log.Errorf("Failed to load geometry: %v", err)
		os.Exit(1)
	}

	if *checkGeometry {
		printGeometry(os.Stdout, table)
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
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

	records, err := particlecsv.ReadFile(flag.Arg(0))
	if err != nil {
		log.Errorf("Failed to read particles: %v", err)
		os.Exit(1)
	}

	summary, err := deposition.Summarize(records, deposition.Options{Geometry: table, Stagnant: rule})
	noDeposited := errors.Is(err, deposition.ErrNoDeposited)
	if err != nil && !noDeposited {
		log.Errorf("Failed to summarise particles: %v", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Errorf("Failed to encode summary: %v", err)
			os.Exit(1)
		}
	} else {
		printSummary(os.Stdout, summary)
	}

	if summary.Totals.Malformed > 0 {
		log.Warnf("%d malformed rows were skipped or left unclassified", summary.Totals.Malformed)
	}
	if noDeposited {
		log.Errorf("Failed to compute deposition fractions: %v", err)
		os.Exit(1)
	}
	if summary.Totals.Unclassified > 0 {
		log.Warnf("%d deposited particles (%.2f%%) fall outside every segment (segment -1)",
			summary.Totals.Unclassified, summary.Fraction(geometry.Unclassified))
	}

	if !*jsonOut {
		comparisons, err := reference.CompareAll(summary.Fractions(geometry.MaxSegment), refs)
		if err != nil {
			log.Warnf("Failed to compare against references: %v", err)
		} else {
			printComparisons(os.Stdout, comparisons)
		}
	}

	if *csvOut != "" {
		if err := writeCSV(*csvOut, summary); err != nil {
			log.Errorf("Failed to write CSV: %v", err)
			os.Exit(1)
		}
		log.Infof("Segment table written to %s", *csvOut)
	}

	if *save {
		fig, err := plot.Render(summary, refs, plot.Options{WidthIn: cfg.Plot.WidthIn, HeightIn: cfg.Plot.HeightIn})
		if err != nil {
			log.Errorf("Failed to render plot: %v", err)
			os.Exit(1)
		}
		written, err := plot.Save(fig, *out, cfg.Plot.Formats)
		for _, path := range written {
			log.Infof("Plot written to %s", path)
		}
		if err != nil {
			log.Errorf("Failed to save plot: %v", err)
			os.Exit(1)
		}
	}
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printSummary(w io.Writer, s *deposition.Summary) {
	t := s.Totals
	fmt.Fprintf(w, "Total particles:        %d\n", t.Total)
	fmt.Fprintf(w, "Total deposited:        %d (%.2f%%)\n", t.Deposited, t.DepositedPct)
	fmt.Fprintf(w, "Total escaped:          %d (%.2f%%)\n", t.Escaped, t.EscapedPct)
	fmt.Fprintf(w, "Total stagnant:         %d (%.2f%%) [%s]\n", t.Stagnant, t.StagnantPct, s.StagnantRule)
	fmt.Fprintf(w, "Total error:            %d (%.2f%%)\n", t.Errored, t.ErroredPct)
	fmt.Fprintf(w, "Geometry:               %s\n", s.GeometryVersion)

	if len(s.Segments) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "segment\tcount\tdeposition fraction (%)\t")
	for _, f := range s.Segments {
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t\n", f.Segment, f.Count, f.Fraction)
	}
	tw.Flush()
}

func printComparisons(w io.Writer, comparisons []reference.Comparison) {
	if len(comparisons) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "reference\tRMSE\tMAE\tcorrelation\tlog RMSE\t")
	for _, c := range comparisons {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t\n", c.Dataset, c.RMSE, c.MAE, c.Correlation, c.LogRMSE)
	}
	tw.Flush()
}

func printGeometry(w io.Writer, table *geometry.Table) {
	order := make([]string, 0, len(table.Regions))
	for _, seg := range table.Segments() {
		order = append(order, strconv.Itoa(int(seg)))
	}
	fmt.Fprintf(w, "Geometry %s: %d segments, first match wins\n", table.Version, len(table.Regions))
	fmt.Fprintf(w, "Match order: %s\n\n", strings.Join(order, " "))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "segment\tx\ty\tz")
	for _, r := range table.Regions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Segment, r.X, r.Y, r.Z)
	}
	tw.Flush()

	overlaps := table.Overlaps()
	if len(overlaps) == 0 {
		fmt.Fprintln(w, "\nNo overlapping segments.")
		return
	}
	fmt.Fprintf(w, "\n%d overlapping pairs (earlier segment wins):\n", len(overlaps))
	for _, o := range overlaps {
		fmt.Fprintf(w, "  %d shadows %d\n", o.Winner, o.Shadowed)
	}
}

func writeCSV(path string, s *deposition.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := particlecsv.WriteSummary(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
