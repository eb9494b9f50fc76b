package datfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `# ParMooN 3D particle run
======================
GEOFILE: siminhale.GEO
BNDFILE:   siminhale.PRM
MESH_TYPE: 1
OUTFILE: particle.out
OUTPUTDIR: VTK
WRITE_VTK: 0
TIMESTEPLENGTH: 0.0005
RE_NR: 1500
  indented lines are ignored
-- and so are separators
`

func TestParse(t *testing.T) {
	params, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"GEOFILE", "siminhale.GEO"},
		{"BNDFILE", "siminhale.PRM"},
		{"MESH_TYPE", "1"},
		{"OUTPUTDIR", "VTK"},
		{"RE_NR", "1500"},
	}

	for _, tt := range tests {
		got, err := params.String(tt.key)
		if err != nil {
			t.Errorf("String(%s): %v", tt.key, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("String(%s) = %q, expected %q", tt.key, got, tt.expected)
		}
	}

	if len(params) != 8 {
		t.Errorf("expected 8 parameters, got %d: %v", len(params), params.Keys())
	}
}

func TestTypedAccessors(t *testing.T) {
	params, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if n, err := params.Int("MESH_TYPE"); err != nil || n != 1 {
		t.Errorf("Int(MESH_TYPE) = %d, %v", n, err)
	}
	if f, err := params.Float("TIMESTEPLENGTH"); err != nil || f != 0.0005 {
		t.Errorf("Float(TIMESTEPLENGTH) = %v, %v", f, err)
	}
	if _, err := params.Int("GEOFILE"); err == nil {
		t.Error("expected error converting GEOFILE to int")
	}
	if _, err := params.String("MISSING"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestParseRejectsLineWithoutColon(t *testing.T) {
	_, err := Parse(strings.NewReader("GEOFILE: a\nBROKEN LINE\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tnse3d.dat")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	params, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if params["OUTFILE"] != "particle.out" {
		t.Errorf("OUTFILE = %q", params["OUTFILE"])
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.dat")); err == nil {
		t.Error("expected error for missing file")
	}
}
