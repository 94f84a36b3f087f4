package runner

import (
	"errors"
	"fmt"
	"os"

	"github.com/signalsfoundry/grid-scenario-engine/internal/store"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid runner config")

// Config describes one batch run as loaded from a YAML file.
type Config struct {
	// BasePath is the directory of the base case and its solver
	// companion files.
	BasePath string `yaml:"base_path"`

	// OutPath holds the action files and receives one scenario
	// directory per file.
	OutPath string `yaml:"out_path"`

	// Files lists the action file names under OutPath, in run order.
	Files []string `yaml:"files"`

	Format string `yaml:"format"`

	// SaveAux and InvokeSolver default to true when omitted.
	SaveAux      *bool `yaml:"save_aux"`
	InvokeSolver *bool `yaml:"invoke_solver"`

	// SolverBinary overrides the load-flow program name.
	SolverBinary string `yaml:"solver_binary"`

	// Seed fixes the shared random source for reproducible batches.
	Seed *uint64 `yaml:"seed"`
}

// LoadConfig reads and validates a YAML batch configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Format == "" {
		cfg.Format = store.FormatOn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("%w: base_path is required", ErrInvalidConfig)
	}
	if c.OutPath == "" {
		return fmt.Errorf("%w: out_path is required", ErrInvalidConfig)
	}
	if len(c.Files) == 0 {
		return fmt.Errorf("%w: files must name at least one action file", ErrInvalidConfig)
	}
	if c.Format != store.FormatOn && c.Format != store.FormatOff {
		return fmt.Errorf("%w: format must be %q or %q, got %q", ErrInvalidConfig, store.FormatOn, store.FormatOff, c.Format)
	}
	return nil
}

// Options converts the config into per-batch run options.
func (c *Config) Options() RunOptions {
	return RunOptions{
		Format:       c.Format,
		SaveAux:      boolOr(c.SaveAux, true),
		InvokeSolver: boolOr(c.InvokeSolver, true),
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
