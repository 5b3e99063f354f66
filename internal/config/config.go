// Package config resolves the checker's run settings: built-in defaults,
// then an optional .kernelchk.yaml file, then explicit CLI flags, each
// layer overriding the one beneath it.
package config

import (
	"fmt"
	"os"

	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked for in the working directory when no config
// path is given explicitly.
const DefaultFileName = ".kernelchk.yaml"

// Config is the resolved run configuration.
type Config struct {
	// Threads is the checker worker count; 0 or 1 forces serial execution.
	Threads int `yaml:"threads"`
	// Print enables pretty-printing of checked definitions on success.
	Print bool `yaml:"print"`
	// PrintOnly names the declarations Print prints; with an empty list
	// nothing is printed.
	PrintOnly []string `yaml:"print_only"`
	// Verbosity is the log level passed to diagnostics.Configure.
	Verbosity int `yaml:"verbosity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{Threads: 4, Verbosity: -1}
}

// Load reads a YAML config file over base. Keys are normalized to
// snake_case first, so `printOnly`, `PrintOnly`, and `print_only` all
// address the same field.
func Load(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	return parse(raw, base)
}

// LoadIfPresent is Load, treating a missing default file as no-op.
func LoadIfPresent(path string, base Config) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	return Load(path, base)
}

func parse(raw []byte, base Config) (Config, error) {
	var loose map[string]interface{}
	if err := yaml.Unmarshal(raw, &loose); err != nil {
		return base, fmt.Errorf("malformed config: %w", err)
	}

	normalized := make(map[string]interface{}, len(loose))
	for k, v := range loose {
		normalized[strcase.ToSnake(k)] = v
	}
	renormalized, err := yaml.Marshal(normalized)
	if err != nil {
		return base, err
	}

	cfg := base
	if err := yaml.Unmarshal(renormalized, &cfg); err != nil {
		return base, fmt.Errorf("malformed config: %w", err)
	}
	return cfg, nil
}
