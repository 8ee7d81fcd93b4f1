// Package config loads the project's anchor configuration file.
//
// The file is YAML, validated against the embedded CUE definition in
// schema.cue before it is decoded, so typos in key names are reported
// instead of silently ignored:
//
//	auto_anchor:
//	  - "*.py"
//	  - "*.md"
//	  - "!__pycache__/**"
//	author: "Jane Doe"
//	timestamp:
//	  command: ots-anchor
//	  timeout: 30s
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// FileName is the config file name inside the state directory.
const FileName = "config.yml"

// DefaultTimeout bounds each call to the timestamp helper.
const DefaultTimeout = 30 * time.Second

// DefaultPatterns are written into a new project's config.
var DefaultPatterns = []string{"*.py", "*.md", "!__pycache__/**"}

// Config is the parsed configuration file.
type Config struct {
	// AutoAnchor selects files for "stamp --all".
	AutoAnchor []string `yaml:"auto_anchor"`

	// Author identifies who anchors in this project.
	Author string `yaml:"author"`

	// Timestamp configures the timestamp helper.
	Timestamp TimestampConfig `yaml:"timestamp,omitempty"`
}

// TimestampConfig configures the external timestamp helper.
type TimestampConfig struct {
	// Command is the helper binary. Empty means timestamp.DefaultCommand.
	Command string `yaml:"command,omitempty"`

	// Args are passed before the subcommand.
	Args []string `yaml:"args,omitempty"`

	// Timeout is a Go duration string; empty means DefaultTimeout.
	Timeout string `yaml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to DefaultTimeout.
func (t TimestampConfig) TimeoutDuration() (time.Duration, error) {
	if t.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timestamp.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timestamp.timeout: must be positive, got %s", t.Timeout)
	}
	return d, nil
}

// Default returns the configuration written by project initialization.
func Default(author string) *Config {
	return &Config{
		AutoAnchor: append([]string(nil), DefaultPatterns...),
		Author:     author,
		Timestamp: TimestampConfig{
			Timeout: DefaultTimeout.String(),
		},
	}
}

// FilePath returns the config file location inside the state directory.
func FilePath(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and validates the config file in the state directory dir.
// A missing file yields Default("").
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(FilePath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(""), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes config file content.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if _, err := cfg.Timestamp.TimeoutDuration(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := NewMatcher(cfg.AutoAnchor); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validate unifies the decoded YAML with #Config.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// Marshal renders cfg as YAML with two-space indentation.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Patterns select files for `anchor stamp --all`; prefix with ! to exclude.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Write stores cfg in the state directory dir. It refuses to replace an
// existing file.
func Write(dir string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(FilePath(dir), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
