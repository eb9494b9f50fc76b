package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/siminhale/siminhale/internal/log"
	"github.com/siminhale/siminhale/internal/split"
)

func main() {
	workers := flag.Int("workers", 0, "Files split concurrently (default: one per CPU)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [directory]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := log.Init(log.Options{Debug: *debug}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	splitter := split.New(log.Named("split"))
	if *workers > 0 {
		splitter.Workers = *workers
	}

	result, err := splitter.Run(ctx, dir)
	if err != nil {
		log.Errorf("Failed to split particle files: %v", err)
		os.Exit(1)
	}

	for _, f := range result.Files {
		fmt.Printf("%s: %d deposited, %d not deposited\n", f.Input, f.Deposited, f.NotDeposited)
	}
	fmt.Printf("Split %d files: %d deposited, %d not deposited\n", len(result.Files), result.Deposited, result.NotDeposited)
}
