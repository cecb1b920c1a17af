package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/mediatab/internal/api"
	"github.com/hbomb79/mediatab/internal/database"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const DefaultConfigPath = "~/.config/mediatab/config.yaml"

// Config is the struct used to contain the
// various user config supplied by file, environment
// or command line flags.
type Config struct {
	Profile               string   `yaml:"profile" env:"PROFILE" env-default:"framerate" validate:"oneof=framerate attributes"`
	Extensions            []string `yaml:"extensions" env:"EXTENSIONS" env-separator:","`
	Concurrency           int      `yaml:"concurrency" env:"CONCURRENCY" env-default:"0" validate:"min=0"`
	InspectTimeoutSeconds int      `yaml:"inspect_timeout_seconds" env:"INSPECT_TIMEOUT_SECONDS" env-default:"120" validate:"min=1"`
	LogLevel              string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=verbose debug info warning error"`
	LogFile               string   `yaml:"log_file" env:"LOG_FILE"`

	Output   sink.Config             `yaml:"output"`
	Probe    probe.Config            `yaml:"probe"`
	Watch    ingest.Config           `yaml:"watch"`
	Database database.DatabaseConfig `yaml:"database"`
	Api      api.RestConfig          `yaml:"api"`
}

// LoadConfig reads the configuration from the YAML file at the path provided,
// with environment variables taking precedence over values in the file. If no
// path is provided, the default path is used if a file exists there; otherwise
// configuration is sourced only from the environment.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	path, explicit := configPath, configPath != ""
	if !explicit {
		path = DefaultConfigPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path %s: %w", path, err)
	}

	if _, err := os.Stat(expanded); err == nil {
		log.Emit(logger.DEBUG, "Loading configuration from %s\n", expanded)
		if err := cleanenv.ReadConfig(expanded, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", expanded, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", expanded, err)
	} else {
		log.Emit(logger.DEBUG, "No configuration file found at %s, reading from environment\n", expanded)
		if err := cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
		}
	}

	if err := config.expandPaths(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the config against the constraints declared on it's
// fields (and the fields of the nested configs).
func (config *Config) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// ParsedProfile returns the extraction profile named by the config.
func (config *Config) ParsedProfile() (media.Profile, error) {
	return media.ParseProfile(config.Profile)
}

// ExtensionFilter returns the filter for the configured extensions, falling
// back to the default extensions of the profile when none are configured.
func (config *Config) ExtensionFilter(profile media.Profile) ingest.ExtensionFilter {
	if len(config.Extensions) > 0 {
		return ingest.NewExtensionFilter(config.Extensions...)
	}

	return ingest.NewExtensionFilter(profile.DefaultExtensions()...)
}

func (config *Config) InspectTimeout() time.Duration {
	return time.Duration(config.InspectTimeoutSeconds) * time.Second
}

// expandPaths expands a leading '~' in each of the user provided paths.
func (config *Config) expandPaths() error {
	for _, p := range []*string{&config.Output.Path, &config.Output.SkipReportPath, &config.LogFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}

		*p = expanded
	}

	return nil
}
