package gitbug

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Config holds the environment configuration of the harness.
type Config struct {
	// The directory holding the dataset: bugs/<pid>.json files plus the
	// per-bug environment diffs
	DataDir string `env:"GITBUG_JAVA_DATA" envDefault:"data"`

	// Comma-separated GitHub access tokens used to lift API rate limits
	Tokens string `env:"GITHUB_ACCESS_TOKEN"`

	// The act binary to invoke
	ActBinary string `env:"GITBUG_JAVA_ACT" envDefault:"act"`
}

// LoadConfig reads the harness configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Join(fmt.Errorf("couldn't parse environment configuration"), err)
	}
	return &cfg, nil
}

type runConfigYaml struct {
	// Timeout in minutes
	Timeout int `yaml:"timeout" default:"10"`

	MemoryLimit string `yaml:"memoryLimit" default:"7g"`

	ActCacheDir string `yaml:"actCacheDir"`
}

// RunConfig controls a single reproduction run.
type RunConfig struct {
	Timeout time.Duration // How long a single workflow may run

	MemoryLimit string // The memory cap for workflow containers

	ActCacheDir string // An explicit act cache dir, or empty to use a managed one
}

// GetRunConfigFromConfig reads a run config in yaml format from a reader and
// initializes the corresponding RunConfig struct.
func GetRunConfigFromConfig(r io.Reader) (*RunConfig, error) {
	var config runConfigYaml

	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil && err != io.EOF {
		return nil, err
	}
	if err := defaults.Set(&config); err != nil {
		return nil, err
	}

	return &RunConfig{
		Timeout: time.Duration(config.Timeout) * time.Minute,

		MemoryLimit: config.MemoryLimit,

		ActCacheDir: config.ActCacheDir,
	}, nil
}

// DefaultRunConfig returns the run config used when no config file is present.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Timeout:     10 * time.Minute,
		MemoryLimit: "7g",
	}
}
