// Package config provides configuration loading for crater.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CRATER_EXPORT_BASE_DIR.
const EnvPrefix = "CRATER"

// Config is the complete crater configuration.
type Config struct {
	// Schema is the mapping file; empty selects the built-in schema.
	Schema  string        `yaml:"schema" mapstructure:"schema"`
	Facts   FactsConfig   `yaml:"facts" mapstructure:"facts"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// FactsConfig locates the fact store.
type FactsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// Format is "auto", "sqlite" or "json".
	Format string `yaml:"format" mapstructure:"format"`
	// Selector is the JSONPath of value records in a JSON export.
	Selector string `yaml:"selector" mapstructure:"selector"`
}

// ExportConfig controls where crates are written.
type ExportConfig struct {
	// BaseDir holds the per-export working directories.
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"`
	// OutputDir receives the manifest named after the project title.
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	// SetPath is the attribute enumerating datasets.
	SetPath string `yaml:"set_path" mapstructure:"set_path"`
	// Title overrides the project title.
	Title string `yaml:"title" mapstructure:"title"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures the textfile dump.
type MetricsConfig struct {
	TextFile string `yaml:"textfile" mapstructure:"textfile"`
}

// DefaultConfig returns a Config with defaults filled in.
func DefaultConfig() *Config {
	return &Config{
		Facts: FactsConfig{
			Format:   "auto",
			Selector: "$.values[*]",
		},
		Export: ExportConfig{
			BaseDir: os.TempDir(),
			SetPath: "project/dataset/id",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Facts.Path == "" {
		return errors.New("facts.path is required")
	}
	switch c.Facts.Format {
	case "auto", "sqlite", "json":
	default:
		return fmt.Errorf("facts.format must be auto, sqlite or json, got %q", c.Facts.Format)
	}
	if c.Export.BaseDir == "" {
		return errors.New("export.base_dir is required")
	}
	if c.Export.SetPath == "" {
		return errors.New("export.set_path is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// NewViper returns a viper instance seeded with the defaults, reading
// CRATER_* environment variables and, if present, a config file. An empty
// cfgFile looks for crater.yaml in the working directory and tolerates its
// absence; an explicit cfgFile must exist.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName("crater")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("schema", d.Schema)
	v.SetDefault("facts.path", d.Facts.Path)
	v.SetDefault("facts.format", d.Facts.Format)
	v.SetDefault("facts.selector", d.Facts.Selector)
	v.SetDefault("export.base_dir", d.Export.BaseDir)
	v.SetDefault("export.output_dir", d.Export.OutputDir)
	v.SetDefault("export.set_path", d.Export.SetPath)
	v.SetDefault("export.title", d.Export.Title)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.textfile", d.Metrics.TextFile)
}

// FromViper decodes v into a Config. It does not validate.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
