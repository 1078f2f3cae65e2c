package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fcapolini/markout/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "markout.json"

	// YAMLConfigFileName is read when ConfigFileName is absent.
	YAMLConfigFileName = "markout.yaml"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultDocroot is the default page directory.
	DefaultDocroot = "pages"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MARKOUT_"
)

// Page store kinds.
const (
	StoreFS = "fs"
	StoreS3 = "s3"
)

// Config is the site configuration.
type Config struct {
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Docroot is the page directory of the fs store, relative to the
	// configuration file.
	Docroot string `json:"docroot,omitempty" yaml:"docroot,omitempty"`

	// Store selects the page store: "fs" or "s3".
	Store string `json:"store,omitempty" yaml:"store,omitempty"`

	S3 S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`

	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`

	Live LiveConfig `json:"live,omitempty" yaml:"live,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	configPath string
}

// S3Config locates pages in a bucket.
type S3Config struct {
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// TracingConfig controls OpenTelemetry request tracing.
type TracingConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// LiveConfig controls live WebSocket sessions.
type LiveConfig struct {
	// Enabled is a pointer so that an explicit false survives defaults.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Heartbeat is the ping interval (e.g., "30s").
	Heartbeat string `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"`

	// MaxMessageSize caps incoming messages, in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty" yaml:"maxMessageSize,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load loads the environment files and the configuration of dir. A missing
// configuration file is not an error.
func Load(dir string) (*Config, error) {
	if err := loadEnvFiles(dir); err != nil {
		return nil, err
	}
	c := &Config{}
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		path := filepath.Join(dir, name)
		loaded, err := LoadFile(path)
		if stderrors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c = loaded
		break
	}
	if c.configPath == "" {
		c.configPath = filepath.Join(dir, ConfigFileName)
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, c.Validate()
}

// LoadFile decodes a JSON or YAML configuration file, by extension. It
// applies neither the environment nor defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, errors.New("E101").Wrap(err)
	}
	c := &Config{configPath: path}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		me := errors.New("E101").Wrap(err)
		if line, ok := errors.LineOf(err); ok {
			me.WithLocation(path, line)
		}
		return nil, me
	}
	return c, nil
}

// loadEnvFiles loads .env.local then .env. godotenv never overrides a
// variable that is already set, so the first file wins.
func loadEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.New("E103").Wrap(fmt.Errorf("%s: %w", path, err))
		}
	}
	return nil
}

// ApplyEnv overrides fields from MARKOUT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("E102").Wrap(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		}
		*dst = b
		return nil
	}

	if v, ok := lookup(EnvPrefix + "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("E102").Wrap(fmt.Errorf("%sPORT: %w", EnvPrefix, err))
		}
		c.Port = port
	}
	str("HOST", &c.Host)
	str("DOCROOT", &c.Docroot)
	str("STORE", &c.Store)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("LOG_LEVEL", &c.LogLevel)
	if err := flag("METRICS", &c.Metrics.Enabled); err != nil {
		return err
	}
	if err := flag("TRACING", &c.Tracing.Enabled); err != nil {
		return err
	}
	if _, ok := lookup(EnvPrefix + "LIVE"); ok {
		var live bool
		if err := flag("LIVE", &live); err != nil {
			return err
		}
		c.Live.Enabled = &live
	}
	return nil
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Docroot == "" {
		c.Docroot = DefaultDocroot
	}
	if c.Store == "" {
		c.Store = StoreFS
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "markout"
	}
	if c.Live.Enabled == nil {
		on := true
		c.Live.Enabled = &on
	}
	if c.Live.Heartbeat == "" {
		c.Live.Heartbeat = "30s"
	}
	if c.Live.MaxMessageSize == 0 {
		c.Live.MaxMessageSize = 64 * 1024
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "10s"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("E102").WithDetail(fmt.Sprintf(format, args...))
	}
	if c.Port < 0 || c.Port > 65535 {
		return invalid("Port must be between 0 and 65535, got %d.", c.Port)
	}
	switch c.Store {
	case StoreFS:
	case StoreS3:
		if c.S3.Bucket == "" {
			return invalid("The s3 store needs s3.bucket.")
		}
	default:
		return invalid("Store must be %q or %q, got %q.", StoreFS, StoreS3, c.Store)
	}
	for name, d := range map[string]string{"live.heartbeat": c.Live.Heartbeat, "shutdownTimeout": c.ShutdownTimeout} {
		if v, err := time.ParseDuration(d); err != nil || v <= 0 {
			return invalid("%s must be a positive duration, got %q.", name, d)
		}
	}
	if c.Live.MaxMessageSize < 0 {
		return invalid("live.maxMessageSize must not be negative.")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logLevel must be debug, info, warn or error, got %q.", c.LogLevel)
	}
	return nil
}

// Path returns the path of the configuration file, loaded or not.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the configuration file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DocrootPath returns the page directory, resolved against Dir.
func (c *Config) DocrootPath() string {
	if filepath.IsAbs(c.Docroot) || c.Dir() == "" {
		return c.Docroot
	}
	return filepath.Join(c.Dir(), c.Docroot)
}

// LiveEnabled reports whether live sessions are served.
func (c *Config) LiveEnabled() bool {
	return c.Live.Enabled == nil || *c.Live.Enabled
}

// HeartbeatInterval returns the parsed live heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	d, _ := time.ParseDuration(c.Live.Heartbeat)
	return d
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}
