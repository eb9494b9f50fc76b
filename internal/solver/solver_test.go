package solver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		answer  string
		wantErr error
	}{
		{"y\n", nil},
		{"y", nil},
		{"  y  \n", nil},
		{"yes\n", ErrNotConfirmed},
		{"Y\n", ErrNotConfirmed},
		{"n\n", ErrNotConfirmed},
		{"\n", ErrNotConfirmed},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			var out bytes.Buffer
			r := &Runner{
				Executable: "solver.exe",
				Args:       []string{"case.dat"},
				Prompt:     strings.NewReader(tt.answer),
				Out:        &out,
			}
			err := r.Confirm()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Confirm() = %v, expected %v", err, tt.wantErr)
			}
			expected := `Are you sure you want to run the command "solver.exe case.dat"? (y/n) `
			if out.String() != expected {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestConfirmEmptyInput(t *testing.T) {
	r := &Runner{Executable: "solver.exe", Prompt: strings.NewReader(""), Out: &bytes.Buffer{}}
	if err := r.Confirm(); err == nil {
		t.Error("expected error when no answer is given")
	}
}

func TestRunToFile(t *testing.T) {
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}

	path := filepath.Join(t.TempDir(), StdoutFile)
	r := &Runner{Executable: echo, Args: []string{"hello", "solver"}}

	out, err := r.RunToFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunToFile: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello solver" {
		t.Errorf("stdout = %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, out) {
		t.Errorf("file content %q differs from stdout %q", data, out)
	}
}

func TestRunFailure(t *testing.T) {
	r := &Runner{Executable: filepath.Join(t.TempDir(), "missing-solver")}
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error for missing executable")
	}
	if _, err := (&Runner{}).Run(context.Background()); err == nil {
		t.Error("expected error for empty executable")
	}
}
