package repoconfig

import "strings"

// ApplyDefaults fills in zero-valued fields with sensible defaults after
// a config file has been decoded, the same "zero value means unset"
// strategy used throughout this package's defaults.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStoreDefaults(&cfg.Store)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9091
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "badger"
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = "./ostreesync-repo"
	}
	cfg.Postgres.ApplyDefaults()
}

// DefaultConfig returns the built-in configuration used when no config
// file is found: an embedded Badger store under the working directory,
// text logging at INFO, telemetry and metrics both disabled, no remotes.
func DefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Backend: "badger",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
