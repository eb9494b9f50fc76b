package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Geometry GeometryData `json:"geometry"`
	Analysis AnalysisData `json:"analysis"`
	Plot     PlotData     `json:"plot"`
	Tracking TrackingData `json:"tracking"`
	Solver   SolverData   `json:"solver"`
	Server   ServerData   `json:"server"`
	Logging  LoggingData  `json:"logging"`
}

// GeometryData selects the segment table. File takes precedence over
// Version.
type GeometryData struct {
	Version string `json:"version,omitempty"`
	File    string `json:"file,omitempty"`
}

// AnalysisData holds aggregation settings
type AnalysisData struct {
	StagnantRule string `json:"stagnant_rule,omitempty"`
}

// PlotData holds deposition plot settings
type PlotData struct {
	Formats    []string `json:"formats,omitempty"`
	WidthIn    float64  `json:"width_in,omitempty"`
	HeightIn   float64  `json:"height_in,omitempty"`
	References []string `json:"references,omitempty"`
}

// TrackingData holds the run-tracking store configuration
type TrackingData struct {
	Backend      string `json:"backend,omitempty"` // "sqlite" or "postgres"
	SQLitePath   string `json:"sqlite_path,omitempty"`
	PostgresDSN  string `json:"postgres_dsn,omitempty"`
	ArtifactRoot string `json:"artifact_root,omitempty"`
}

// SolverData holds the external solver settings
type SolverData struct {
	Executable string `json:"executable,omitempty"`
}

// ServerData holds the HTTP API settings
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// LoggingData holds logger settings
type LoggingData struct {
	Debug bool   `json:"debug,omitempty"`
	File  string `json:"file,omitempty"`
}

// Defaults used when a configuration value is left empty.
const (
	DefaultTrackingBackend = "sqlite"
	DefaultSQLitePath      = "siminhale-runs.db"
	DefaultArtifactRoot    = "artifacts"
	DefaultExecutable      = "parmoon_3D_SEQUENTIAL.exe"
	DefaultListenAddr      = "0.0.0.0"
	DefaultPort            = 8080
	DefaultPlotWidthIn     = 8
	DefaultPlotHeightIn    = 5
)

// DefaultPlotFormats are written when no formats are configured.
var DefaultPlotFormats = []string{"png", "pdf", "eps", "svg"}

// ApplyDefaults fills in unset values.
func (c *ConfigData) ApplyDefaults() {
	if len(c.Plot.Formats) == 0 {
		c.Plot.Formats = append([]string(nil), DefaultPlotFormats...)
	}
	if c.Plot.WidthIn == 0 {
		c.Plot.WidthIn = DefaultPlotWidthIn
	}
	if c.Plot.HeightIn == 0 {
		c.Plot.HeightIn = DefaultPlotHeightIn
	}
	if c.Tracking.Backend == "" {
		c.Tracking.Backend = DefaultTrackingBackend
	}
	if c.Tracking.SQLitePath == "" {
		c.Tracking.SQLitePath = DefaultSQLitePath
	}
	if c.Tracking.ArtifactRoot == "" {
		c.Tracking.ArtifactRoot = DefaultArtifactRoot
	}
	if c.Solver.Executable == "" {
		c.Solver.Executable = DefaultExecutable
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
}

// Default returns a configuration with every default applied.
func Default() *ConfigData {
	c := &ConfigData{}
	c.ApplyDefaults()
	return c
}
