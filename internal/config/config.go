package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/hashsync/internal/errors"
	"github.com/vango-dev/hashsync/pkg/mapping"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "hashsync.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// used when no JSON file exists.
	YAMLConfigFileName = "hashsync.yaml"

	// DefaultAddr is the default server listen address.
	DefaultAddr = "localhost:8787"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "hashsync"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "hashsync"
)

// Format kinds.
const (
	FormatPath     = "path"
	FormatQuery    = "query"
	FormatTile     = "tile"
	FormatTemplate = "template"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreS3     = "s3"
)

// Config represents a hashsync.json or hashsync.yaml file.
type Config struct {
	// Server configures the sync server.
	Server ServerConfig `json:"server" yaml:"server"`

	// Format selects how data is written to the hash.
	Format FormatConfig `json:"format" yaml:"format"`

	// Defaults is written to the hash when it does not parse. When unset,
	// unparseable hashes are ignored.
	Defaults *mapping.Mapping `json:"defaults,omitempty" yaml:"defaults,omitempty"`

	// Store configures snapshot persistence.
	Store StoreConfig `json:"store" yaml:"store"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Tracing configures OpenTelemetry spans.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// ReadTimeout bounds reading a request.
	ReadTimeout Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`

	// WriteTimeout bounds writing a response.
	WriteTimeout Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// MaxMessageBytes is the largest accepted websocket frame.
	MaxMessageBytes int64 `json:"maxMessageBytes,omitempty" yaml:"maxMessageBytes,omitempty"`

	// EventsPerSecond limits hash reports per connection (0 = unlimited).
	EventsPerSecond float64 `json:"eventsPerSecond,omitempty" yaml:"eventsPerSecond,omitempty"`

	// Burst is the rate limiter bucket size.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`

	// AllowedOrigins lists origins allowed to open websockets. Empty allows
	// same-origin requests only; "*" allows any.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// FormatConfig selects and configures the hash format.
type FormatConfig struct {
	// Kind is one of "path", "query", "tile" or "template".
	Kind string `json:"kind" yaml:"kind"`

	// Template is the template text for the "template" kind.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// Query selects the query-string keys for templates and tiles.
	Query QuerySetting `json:"query,omitempty" yaml:"query,omitempty"`

	// Precision fixes the number of tile decimals. Unset means
	// zoom-dependent precision.
	Precision *int `json:"precision,omitempty" yaml:"precision,omitempty"`

	// Separator replaces "&" between query parameters.
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// StoreConfig configures snapshot persistence.
type StoreConfig struct {
	// Kind is one of "memory", "file" or "s3".
	Kind string `json:"kind" yaml:"kind"`

	// Dir is the snapshot directory for the "file" kind, relative to the
	// config file.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the "s3" kind.
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// UsePathStyle addresses buckets by path, as S3-compatible servers
	// such as MinIO expect.
	UsePathStyle bool `json:"usePathStyle,omitempty" yaml:"usePathStyle,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	cfg := &Config{
		Format:  FormatConfig{Kind: FormatPath},
		Store:   StoreConfig{Kind: StoreMemory},
		Metrics: MetricsConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// Load loads hashsync.json, or hashsync.yaml when there is no JSON file,
// from dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if yamlPath := filepath.Join(dir, YAMLConfigFileName); fileExists(yamlPath) {
			path = yamlPath
		}
	}
	return LoadFile(path)
}

// LoadFile loads a configuration file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("H200").
				WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'hashsync init' to create one")
		}
		return nil, errors.New("H200").Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("H200").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("H200").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path, as YAML or JSON depending on the
// extension.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		// Add newline at end of file
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("H200").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("H200").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Seconds(15)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Seconds(15)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Seconds(10)
	}
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = 8 << 10
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 40
	}
	if c.Format.Kind == "" {
		c.Format.Kind = FormatPath
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
	if c.Store.Kind == StoreFile && c.Store.Dir == "" {
		c.Store.Dir = ".hashsync"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	invalid := func(detail string) *errors.Error {
		return errors.New("H201").WithDetail(detail)
	}

	switch c.Format.Kind {
	case FormatPath, FormatQuery:
	case FormatTile:
		if p := c.Format.Precision; p != nil && (*p < 0 || *p > 100) {
			return invalid("format.precision must be between 0 and 100")
		}
	case FormatTemplate:
		if c.Format.Template == "" {
			return invalid("format.template is required when format.kind is \"template\"").
				WithSuggestion("Set a template such as \"{section}/{id}\"")
		}
	default:
		return invalid("format.kind must be one of path, query, tile, template; got \"" + c.Format.Kind + "\"")
	}
	if _, err := c.BuildFormat(); err != nil {
		return err
	}

	switch c.Store.Kind {
	case StoreMemory, StoreFile:
	case StoreS3:
		if c.Store.Bucket == "" {
			return invalid("store.bucket is required when store.kind is \"s3\"")
		}
	default:
		return invalid("store.kind must be one of memory, file, s3; got \"" + c.Store.Kind + "\"")
	}

	if c.Server.EventsPerSecond < 0 {
		return invalid("server.eventsPerSecond must not be negative")
	}
	if c.Server.MaxMessageBytes < 0 {
		return invalid("server.maxMessageBytes must not be negative")
	}
	return nil
}

// StoreDir returns the absolute snapshot directory for the file store.
func (c *Config) StoreDir() string {
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(c.Dir(), c.Store.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	return fileExists(filepath.Join(dir, ConfigFileName)) ||
		fileExists(filepath.Join(dir, YAMLConfigFileName))
}

// FindProjectRoot walks up directories to find the directory holding a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("H200").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'hashsync init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent that has one.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
