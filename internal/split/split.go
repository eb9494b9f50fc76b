// Package split separates siminhale particle files into deposited and
// not-deposited halves.
package split

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/siminhale/siminhale/internal/particlecsv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	InputPattern     = "siminhale_*.csv"
	DepositedDir     = "deposited"
	NotDepositedDir  = "not_deposited"
	depositedName    = "siminhale_deposited_%s.csv"
	notDepositedName = "siminhale_not_deposited_%s.csv"
)

// FileResult describes one split input file.
type FileResult struct {
	Input        string `json:"input"`
	Index        string `json:"index"`
	Deposited    int    `json:"deposited"`
	NotDeposited int    `json:"not_deposited"`
}

// Result aggregates a whole directory.
type Result struct {
	Files        []FileResult `json:"files"`
	Deposited    int          `json:"deposited"`
	NotDeposited int          `json:"not_deposited"`
}

// Splitter splits every particle file of a directory.
type Splitter struct {
	Workers int
	Logger  *zap.SugaredLogger
}

// New returns a Splitter using one worker per CPU.
func New(logger *zap.SugaredLogger) *Splitter {
	return &Splitter{Workers: runtime.NumCPU(), Logger: logger}
}

// Index extracts the file index: the text between the first '_' and the
// first '.' after it.
func Index(name string) (string, error) {
	base := filepath.Base(name)
	_, rest, ok := strings.Cut(base, "_")
	if !ok {
		return "", fmt.Errorf("no '_' in file name %q", base)
	}
	idx, _, ok := strings.Cut(rest, ".")
	if !ok {
		return "", fmt.Errorf("no '.' after '_' in file name %q", base)
	}
	return idx, nil
}

// Run splits every siminhale_*.csv file in dir. The first failure cancels
// the remaining files.
func (s *Splitter) Run(ctx context.Context, dir string) (*Result, error) {
	inputs, err := filepath.Glob(filepath.Join(dir, InputPattern))
	if err != nil {
		return nil, fmt.Errorf("error listing particle files: %w", err)
	}
	sort.Strings(inputs)

	for _, sub := range []string{DepositedDir, NotDepositedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("error creating %s directory: %w", sub, err)
		}
	}

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]FileResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fr, err := splitFile(dir, input)
			if err != nil {
				return err
			}
			results[i] = fr
			if s.Logger != nil {
				s.Logger.Debugw("split particle file",
					"file", filepath.Base(input),
					"deposited", fr.Deposited,
					"not_deposited", fr.NotDeposited)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Files: results}
	for _, fr := range results {
		res.Deposited += fr.Deposited
		res.NotDeposited += fr.NotDeposited
	}

	if s.Logger != nil {
		s.Logger.Infof("Split %d particle files: %d deposited, %d not deposited rows",
			len(results), res.Deposited, res.NotDeposited)
	}

	return res, nil
}

func splitFile(dir, input string) (FileResult, error) {
	fr := FileResult{Input: filepath.Base(input)}

	idx, err := Index(input)
	if err != nil {
		return fr, err
	}
	fr.Index = idx

	in, err := os.Open(input)
	if err != nil {
		return fr, fmt.Errorf("error opening %s: %w", fr.Input, err)
	}
	defer in.Close()

	dep, err := os.Create(filepath.Join(dir, DepositedDir, fmt.Sprintf(depositedName, idx)))
	if err != nil {
		return fr, err
	}
	defer dep.Close()

	notDep, err := os.Create(filepath.Join(dir, NotDepositedDir, fmt.Sprintf(notDepositedName, idx)))
	if err != nil {
		return fr, err
	}
	defer notDep.Close()

	fr.Deposited, fr.NotDeposited, err = Split(in, dep, notDep)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", fr.Input, err)
	}

	if err := dep.Close(); err != nil {
		return fr, err
	}
	return fr, notDep.Close()
}

// Split routes rows of r whose deposition column equals 1 to deposited and
// every other row to notDeposited. Both outputs receive the header.
func Split(r io.Reader, deposited, notDeposited io.Writer) (nDep, nNotDep int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("error reading header: %w", err)
	}
	h := particlecsv.ParseHeader(header)
	if err := h.Require(particlecsv.ColDeposition); err != nil {
		return 0, 0, err
	}

	depW := csv.NewWriter(deposited)
	notDepW := csv.NewWriter(notDeposited)
	if err := depW.Write(header); err != nil {
		return 0, 0, err
	}
	if err := notDepW.Write(header); err != nil {
		return 0, 0, err
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nDep, nNotDep, err
		}

		if v, ok := h.Float(row, particlecsv.ColDeposition); ok && v == 1 {
			err = depW.Write(row)
			nDep++
		} else {
			err = notDepW.Write(row)
			nNotDep++
		}
		if err != nil {
			return nDep, nNotDep, err
		}
	}

	depW.Flush()
	notDepW.Flush()
	if err := depW.Error(); err != nil {
		return nDep, nNotDep, err
	}
	return nDep, nNotDep, notDepW.Error()
}
