// Package config loads and validates the service configuration. Files may be
// JSON or YAML, selected by extension; environment variables override the
// server-facing fields.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vemonet/curies/converter"
	"github.com/vemonet/curies/errors"
)

// EnvPrefix is prepended to environment override names, e.g. CURIES_SERVER_ADDR
const EnvPrefix = "CURIES"

// Config is the complete service configuration
type Config struct {
	Server     ServerConfig       `json:"server"     yaml:"server"`
	Metrics    MetricsConfig      `json:"metrics"    yaml:"metrics"`
	Federation FederationConfig   `json:"federation" yaml:"federation"`
	Logging    LoggingConfig      `json:"logging"    yaml:"logging"`
	Records    []converter.Record `json:"records"    yaml:"records"`

	// RecordsFile points at a separate JSON or YAML file holding the record
	// list, for registries too large to inline
	RecordsFile string `json:"records_file,omitempty" yaml:"records_file,omitempty"`
}

// ServerConfig holds the SPARQL endpoint settings
type ServerConfig struct {
	Addr            string   `json:"addr"             yaml:"addr"`
	ReadTimeout     Duration `json:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"    yaml:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxQueryBytes   int64    `json:"max_query_bytes"  yaml:"max_query_bytes"`
	CORSOrigins     []string `json:"cors_origins"     yaml:"cors_origins"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr"    yaml:"addr"`
}

// FederationConfig controls outbound SERVICE delegation
type FederationConfig struct {
	Enabled      bool     `json:"enabled"       yaml:"enabled"`
	Timeout      Duration `json:"timeout"       yaml:"timeout"`
	ProbeTimeout Duration `json:"probe_timeout" yaml:"probe_timeout"`

	// Endpoints restricts which remote endpoints SERVICE clauses may name
	// and seeds the federation health checker. Empty means any endpoint is
	// allowed.
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `json:"level"  yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxQueryBytes:   1 << 20,
			CORSOrigins:     []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Federation: FederationConfig{
			Enabled:      true,
			Timeout:      Duration(30 * time.Second),
			ProbeTimeout: Duration(5 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration file at path, merges environment overrides,
// resolves an external records file if one is named, and validates the
// result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if cfg.RecordsFile != "" {
		records, err := LoadRecords(cfg.RecordsFile)
		if err != nil {
			return nil, err
		}
		cfg.Records = append(cfg.Records, records...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRecords reads a standalone record list from a JSON or YAML file
func LoadRecords(path string) ([]converter.Record, error) {
	var records []converter.Record
	if err := decodeFile(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeFile unmarshals a JSON or YAML file into out, picking the decoder
// from the file extension
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapFatal(err, "config", "Load", fmt.Sprintf("read %s", path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	case ".json":
		err = json.Unmarshal(data, out)
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Load",
			fmt.Sprintf("unsupported config extension %q", filepath.Ext(path)))
	}
	if err != nil {
		return errors.WrapInvalid(err, "config", "Load", fmt.Sprintf("parse %s", path))
	}
	return nil
}

// Validate checks the configuration, including that the record list builds a
// converter. Ambiguous registrations surface here so a bad registry stops the
// service at startup instead of answering queries inconsistently.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"server.addr is required")
	}
	if c.Server.MaxQueryBytes <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"server.max_query_bytes must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"metrics.addr is required when metrics are enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}

	if len(c.Records) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"at least one record is required")
	}
	if _, err := converter.New(c.Records); err != nil {
		return errors.Wrap(err, "Config", "Validate", "record registry")
	}
	return nil
}

// Converter builds the prefix converter from the configured records
func (c *Config) Converter() (*converter.Converter, error) {
	return converter.New(c.Records)
}

// applyEnvOverrides replaces server-facing fields from the environment
func applyEnvOverrides(cfg *Config) {
	if v := getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := getenv("METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if v := getenv("FEDERATION_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Federation.Enabled = enabled
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := getenv("RECORDS_FILE"); v != "" {
		cfg.RecordsFile = v
	}
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + "_" + name)
}
