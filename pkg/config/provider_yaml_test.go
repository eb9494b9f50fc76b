package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseYAML(t *testing.T) {
	data := []byte(`
geometry:
  version: siminhale-airway-v1
analysis:
  stagnant_rule: not-escaped
plot:
  formats: [png, svg]
  references: [LES1, RANS3]
tracking:
  backend: postgres
  postgres_dsn: host=localhost dbname=runs
server:
  port: 9090
`)

	cfg, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	if cfg.Geometry.Version != "siminhale-airway-v1" {
		t.Errorf("Geometry.Version = %q", cfg.Geometry.Version)
	}
	if cfg.Analysis.StagnantRule != "not-escaped" {
		t.Errorf("Analysis.StagnantRule = %q", cfg.Analysis.StagnantRule)
	}
	if len(cfg.Plot.Formats) != 2 || cfg.Plot.Formats[1] != "svg" {
		t.Errorf("Plot.Formats = %v", cfg.Plot.Formats)
	}
	if cfg.Tracking.Backend != "postgres" || cfg.Tracking.PostgresDSN == "" {
		t.Errorf("Tracking = %+v", cfg.Tracking)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}

	// Defaults fill the gaps.
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("Server.ListenAddr = %q, expected default", cfg.Server.ListenAddr)
	}
	if cfg.Solver.Executable != DefaultExecutable {
		t.Errorf("Solver.Executable = %q, expected default", cfg.Solver.Executable)
	}
	if cfg.Plot.WidthIn != DefaultPlotWidthIn {
		t.Errorf("Plot.WidthIn = %v, expected default", cfg.Plot.WidthIn)
	}
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseYAML([]byte("geometry:\n  verison: typo\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := NewYAMLProvider(missing).LoadConfig(); err == nil {
		t.Error("required provider should fail on a missing file")
	}

	cfg, err := NewOptionalYAMLProvider(missing).LoadConfig()
	if err != nil {
		t.Fatalf("optional provider: %v", err)
	}
	if cfg.Tracking.Backend != DefaultTrackingBackend {
		t.Errorf("Tracking.Backend = %q, expected default", cfg.Tracking.Backend)
	}
	if len(cfg.Plot.Formats) != len(DefaultPlotFormats) {
		t.Errorf("Plot.Formats = %v", cfg.Plot.Formats)
	}
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siminhale.yaml")
	if err := os.WriteFile(path, []byte("solver:\n  executable: solver.bin\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	provider := NewYAMLProvider(path)
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Solver.Executable != "solver.bin" {
		t.Errorf("Solver.Executable = %q", cfg.Solver.Executable)
	}
	if !provider.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}
