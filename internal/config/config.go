// Package config loads the optional eisnet YAML configuration. Values come
// from the file, then EISNET_* environment variables; command-line flags are
// applied last by the caller.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

// Config holds the settings shared by all subcommands.
type Config struct {
	LogLevel string       `json:"logLevel"          yaml:"logLevel"`
	LogFile  string       `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	OutDir   string       `json:"outDir"            yaml:"outDir"`
	Export   ExportConfig `json:"export"            yaml:"export"`
	Plot     PlotConfig   `json:"plot"              yaml:"plot"`
}

// ExportConfig holds defaults for the export subcommand. Zero values leave the
// metadata of the network in charge.
type ExportConfig struct {
	Purpose       string  `json:"purpose,omitempty"       yaml:"purpose,omitempty"`
	InputName     string  `json:"inputName,omitempty"     yaml:"inputName,omitempty"`
	OutputPrepend string  `json:"outputPrepend,omitempty" yaml:"outputPrepend,omitempty"`
	Version       string  `json:"version,omitempty"       yaml:"version,omitempty"`
	Train         bool    `json:"train,omitempty"         yaml:"train,omitempty"`
	Tolerance     float64 `json:"tolerance,omitempty"     yaml:"tolerance,omitempty"`
}

// PlotConfig holds defaults for the plot subcommand.
type PlotConfig struct {
	Debounce time.Duration `json:"debounce,omitempty" yaml:"debounce,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{LogLevel: "info", OutDir: "."}
}

// DefaultPath returns <user config dir>/eisnet/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "eisnet", "config.yaml")
	}
	return filepath.Join(dir, "eisnet", "config.yaml")
}

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://github.com/born-ml/eisnet/config.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Load reads the config file at path, falling back to $EISNET_CONFIG and then
// DefaultPath. Only an explicitly named file has to exist. Environment
// overrides are applied to the result.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path, explicit = DefaultPath(), false
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// Parse validates YAML data against the config schema and decodes it over
// the defaults.
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		return Default(), nil
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into Config struct: %w", err)
	}
	return cfg, nil
}

// validate runs the schema on the JSON form of raw so numbers reach the
// validator as json.Number.
func validate(raw any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if v := getenv(EnvOutDir); v != "" {
		c.OutDir = v
	}
}
