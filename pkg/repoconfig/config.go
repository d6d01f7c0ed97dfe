// Package repoconfig loads the on-disk configuration for an ostreesync
// repository: which ObjectStore backend to open, the ambient logging and
// telemetry settings, and the repo's own `remote "<name>"` sections.
// Layering follows viper + mapstructure decode hooks + go-playground
// validator, with precedence CLI flags > environment variables > config
// file > built-in defaults.
package repoconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/ostreesync/pkg/objectstore/badger"
	"github.com/marmos91/ostreesync/pkg/objectstore/postgres"
	"github.com/marmos91/ostreesync/pkg/objectstore/s3content"
)

// Config is the top-level ostreesync repository configuration: which
// backend stores this repo's objects, where its parent (if any) lives for
// the config parent-inherit walk, and the repo's own remotes.
//
// Precedence (highest to lowest): CLI flags (applied by the caller after
// Load returns), environment variables (OSTREESYNC_*), the config file,
// built-in defaults.
type Config struct {
	// Logging controls log output (level/format/output), consumed by
	// internal/logger.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing, consumed by
	// internal/telemetry and pkg/pulltrace.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls the optional Prometheus /metrics endpoint exposed
	// by the serve command, which serves the default registry. When
	// enabled, the pull command also feeds a pkg/pullmetrics Sink, but on a
	// private registry that no endpoint serves.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Store selects and configures the ObjectStore backend this repo
	// uses to persist objects, refs, and remote sections.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// ParentRepoPath, if set, names a second on-disk repo (same backend
	// family) whose config participates in the parent-inherit walk: a
	// remote's unresolved keys/groups at this repo fall through to the
	// parent's own `remote "<name>"` section.
	ParentRepoPath string `mapstructure:"parent_repo_path" yaml:"parent_repo_path,omitempty"`

	// Remotes are this repo's own `remote "<name>"` sections, validated
	// and then pushed into the opened Store via SetRemoteSection so the
	// engine's ConfigSource/RemoteSection lookups see them.
	Remotes map[string]RemoteSpec `mapstructure:"remotes" validate:"dive" yaml:"remotes"`
}

// LoggingConfig controls internal/logger's behavior.
type LoggingConfig struct {
	// Level is the minimum log level. Valid values: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log rendering. Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool              `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string            `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool              `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64           `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig   `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling of the serve
// command's long-running process.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StoreConfig selects one ObjectStore backend and carries its
// backend-specific settings. Exactly one of Badger/Postgres should be
// populated for the selected Backend; Content is optional and, when set,
// composes an s3content.Tier on top of the metadata backend.
type StoreConfig struct {
	// Backend selects the metadata/ref backend. Valid values: memory, badger, postgres.
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger postgres" yaml:"backend"`

	Badger   badger.Config     `mapstructure:"badger" yaml:"badger,omitempty"`
	Postgres postgres.Config   `mapstructure:"postgres" yaml:"postgres,omitempty"`
	Content  *ContentConfig    `mapstructure:"content" yaml:"content,omitempty"`
}

// ContentConfig wraps s3content.Config with the Enabled switch that
// decides whether File objects are routed to S3-compatible storage
// instead of the metadata backend's own object table.
type ContentConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	s3content.Config `mapstructure:",squash" yaml:",inline"`
}

// RemoteSpec is one `remote "<name>"` section as read from the config
// file, before it is flattened into the string-keyed section map that
// objectstore.ConfigSource/RemoteSection deal in.
type RemoteSpec struct {
	URL           string   `mapstructure:"url" validate:"required,url" yaml:"url"`
	GPGVerify     *bool    `mapstructure:"gpg_verify" yaml:"gpg_verify,omitempty"`
	TLSPermissive bool     `mapstructure:"tls_permissive" yaml:"tls_permissive,omitempty"`
	Branches      []string `mapstructure:"branches" yaml:"branches,omitempty"`
}

// Section renders a RemoteSpec into the map[string]string shape that
// objectstore.ConfigSource.RemoteSection and ResolveRemoteConfig expect,
// mirroring the on-disk `remote "<name>"` key names.
func (r RemoteSpec) Section() map[string]string {
	section := map[string]string{"url": r.URL}
	if r.GPGVerify != nil {
		section["gpg-verify"] = fmt.Sprintf("%t", *r.GPGVerify)
	}
	if r.TLSPermissive {
		section["tls-permissive"] = "true"
	}
	if len(r.Branches) > 0 {
		section["branches"] = strings.Join(r.Branches, ",")
	}
	return section
}

// Load reads configuration from configPath (or the default location when
// empty), applies defaults, validates, and returns the result. Mirrors
// the standard precedence: env vars override the file, which overrides
// defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := DefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning an actionable error (pointing
// at `ostreesync remote add`-style guidance) when no config file exists
// at the default location and none was given explicitly.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"initialize one first, e.g.:\n"+
				"  ostreesync remote add origin https://example.com/repo\n\n"+
				"or point at an existing file:\n"+
				"  ostreesync <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path in YAML, creating parent directories as
// needed. Config files may embed credentials (Postgres password, S3
// secret key), so the file is written 0600.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("OSTREESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files spell durations as "30s"/"5m"
// instead of raw nanosecond integers.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ostreesync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ostreesync")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
