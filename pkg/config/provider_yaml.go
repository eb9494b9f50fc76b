package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	optional bool
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// NewOptionalYAMLProvider returns a provider that falls back to defaults
// when the file does not exist.
func NewOptionalYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
		optional: true,
	}
}

// yamlConfig mirrors ConfigData with YAML tags
type yamlConfig struct {
	Geometry struct {
		Version string `yaml:"version,omitempty"`
		File    string `yaml:"file,omitempty"`
	} `yaml:"geometry,omitempty"`
	Analysis struct {
		StagnantRule string `yaml:"stagnant_rule,omitempty"`
	} `yaml:"analysis,omitempty"`
	Plot struct {
		Formats    []string `yaml:"formats,omitempty"`
		WidthIn    float64  `yaml:"width_in,omitempty"`
		HeightIn   float64  `yaml:"height_in,omitempty"`
		References []string `yaml:"references,omitempty"`
	} `yaml:"plot,omitempty"`
	Tracking struct {
		Backend      string `yaml:"backend,omitempty"`
		SQLitePath   string `yaml:"sqlite_path,omitempty"`
		PostgresDSN  string `yaml:"postgres_dsn,omitempty"`
		ArtifactRoot string `yaml:"artifact_root,omitempty"`
	} `yaml:"tracking,omitempty"`
	Solver struct {
		Executable string `yaml:"executable,omitempty"`
	} `yaml:"solver,omitempty"`
	Server struct {
		ListenAddr string `yaml:"listen_addr,omitempty"`
		Port       int    `yaml:"port,omitempty"`
	} `yaml:"server,omitempty"`
	Logging struct {
		Debug bool   `yaml:"debug,omitempty"`
		File  string `yaml:"file,omitempty"`
	} `yaml:"logging,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		if y.optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	return ParseYAML(cfgFile)
}

// ParseYAML decodes a YAML document into ConfigData with defaults applied.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yc yamlConfig
	if err := yaml.UnmarshalStrict(data, &yc); err != nil {
		return nil, fmt.Errorf("error parsing YAML config: %w", err)
	}

	config := &ConfigData{
		Geometry: GeometryData{
			Version: yc.Geometry.Version,
			File:    yc.Geometry.File,
		},
		Analysis: AnalysisData{
			StagnantRule: yc.Analysis.StagnantRule,
		},
		Plot: PlotData{
			Formats:    yc.Plot.Formats,
			WidthIn:    yc.Plot.WidthIn,
			HeightIn:   yc.Plot.HeightIn,
			References: yc.Plot.References,
		},
		Tracking: TrackingData{
			Backend:      yc.Tracking.Backend,
			SQLitePath:   yc.Tracking.SQLitePath,
			PostgresDSN:  yc.Tracking.PostgresDSN,
			ArtifactRoot: yc.Tracking.ArtifactRoot,
		},
		Solver: SolverData{
			Executable: yc.Solver.Executable,
		},
		Server: ServerData{
			ListenAddr: yc.Server.ListenAddr,
			Port:       yc.Server.Port,
		},
		Logging: LoggingData{
			Debug: yc.Logging.Debug,
			File:  yc.Logging.File,
		},
	}
	config.ApplyDefaults()

	return config, nil
}

// IsReadOnly returns true as YAML files are treated as read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// Load reads the YAML configuration at filename. When required is false a
// missing file yields the defaults.
func Load(filename string, required bool) (*ConfigData, error) {
	var provider ConfigProvider
	if required {
		provider = NewYAMLProvider(filename)
	} else {
		provider = NewOptionalYAMLProvider(filename)
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}
