package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidFormat      = errors.New("invalid output format")
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidMaxFileSize = errors.New("invalid max file size")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
)

// Formats lists the accepted report formats.
var Formats = []string{"json", "yaml", "table", "text"}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Config holds all configuration for a funcscan run.
type Config struct {
	IncludePaths []string        `mapstructure:"include_paths"`
	IncludeFile  string          `mapstructure:"include_file"`
	IncludeRoot  string          `mapstructure:"include_root"`
	Syscalls     string          `mapstructure:"syscalls"`
	Format       string          `mapstructure:"format"`
	MaxFileSize  string          `mapstructure:"max_file_size"`
	Cache        CacheConfig     `mapstructure:"cache"`
	Logging      LoggingConfig   `mapstructure:"logging"`
	Telemetry    TelemetryConfig `mapstructure:"telemetry"`
	Workers      int             `mapstructure:"workers"`
	SkipVendor   bool            `mapstructure:"skip_vendor"`
	Methods      bool            `mapstructure:"methods"`
}

// CacheConfig holds the persistent parse cache settings.
type CacheConfig struct {
	// Path of the bbolt database. Empty disables caching.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// MaxFileSizeBytes returns MaxFileSize parsed as a human-readable size.
// Zero means unlimited.
func (c *Config) MaxFileSizeBytes() (uint64, error) {
	trimmed := strings.TrimSpace(c.MaxFileSize)
	if trimmed == "" || trimmed == "0" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, c.MaxFileSize, err)
	}

	return size, nil
}

// New returns a viper instance preloaded with defaults and environment
// bindings. Commands bind their flags onto it before calling Load.
func New() *viper.Viper {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	return viperCfg
}

// Load reads the configuration file (explicit path, or .funcscan.yaml in the
// working directory or home directory), then unmarshals and validates.
// A missing default config file is not an error; a missing explicit one is.
func Load(viperCfg *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(DefaultConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// LoadConfig is the flagless entry point: defaults, file, environment.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("include_paths", []string{})
	viperCfg.SetDefault("include_file", "")
	viperCfg.SetDefault("include_root", "")
	viperCfg.SetDefault("syscalls", "")
	viperCfg.SetDefault("format", DefaultFormat)
	viperCfg.SetDefault("workers", DefaultWorkers)
	viperCfg.SetDefault("max_file_size", DefaultMaxFileSize)
	viperCfg.SetDefault("skip_vendor", DefaultSkipVendor)
	viperCfg.SetDefault("methods", DefaultMethods)

	viperCfg.SetDefault("cache.path", "")

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
}

func validateConfig(config *Config) error {
	if !slices.Contains(Formats, config.Format) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, config.Format, strings.Join(Formats, ", "))
	}

	if config.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Workers)
	}

	_, sizeErr := config.MaxFileSizeBytes()
	if sizeErr != nil {
		return sizeErr
	}

	if !slices.Contains(logLevels, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	if !slices.Contains(logFormats, strings.ToLower(config.Logging.Format)) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	return nil
}
