// Package solver launches the external flow and particle solver.
package solver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// StdoutFile is the conventional name of the captured solver output.
const StdoutFile = "stdout.txt"

// ErrNotConfirmed is returned when the operator declines to run the solver.
var ErrNotConfirmed = errors.New("solver run not confirmed")

// Runner runs one solver invocation.
type Runner struct {
	Executable string
	Args       []string
	WorkDir    string

	// Prompt and Out are used by Confirm. They default to stdin and stdout.
	Prompt io.Reader
	Out    io.Writer

	Logger *zap.SugaredLogger
}

// CommandLine renders the command as it is shown to the operator.
func (r *Runner) CommandLine() string {
	return strings.TrimSpace(r.Executable + " " + strings.Join(r.Args, " "))
}

// Confirm asks the operator before running. Only the answer "y" confirms.
func (r *Runner) Confirm() error {
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	in := r.Prompt
	if in == nil {
		in = os.Stdin
	}

	fmt.Fprintf(out, "Are you sure you want to run the command \"%s\"? (y/n) ", r.CommandLine())

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && answer != "") {
		return fmt.Errorf("error reading confirmation: %w", err)
	}
	if strings.TrimSpace(answer) != "y" {
		return ErrNotConfirmed
	}
	return nil
}

// Run executes the solver and returns its standard output.
func (r *Runner) Run(ctx context.Context) ([]byte, error) {
	if r.Executable == "" {
		return nil, errors.New("no solver executable configured")
	}

	cmd := exec.CommandContext(ctx, r.Executable, r.Args...)
	cmd.Dir = r.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if r.Logger != nil {
		r.Logger.Infof("Running solver: %s", r.CommandLine())
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("solver failed: %w: %s", err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("solver failed: %w", err)
	}

	if r.Logger != nil {
		r.Logger.Debugw("solver finished", "stdout_bytes", stdout.Len())
	}
	return stdout.Bytes(), nil
}

// RunToFile runs the solver and writes its standard output to path.
func (r *Runner) RunToFile(ctx context.Context, path string) ([]byte, error) {
	out, err := r.Run(ctx)
	if err != nil {
		return out, err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return out, fmt.Errorf("error writing solver output: %w", err)
	}
	return out, nil
}
