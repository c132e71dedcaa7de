// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "SIM_"
	configEnvVar = "CONFIG_PATH"
)

// Loader loads configuration from defaults, an optional file, and the
// environment, in that order of increasing priority.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader creates a loader with the default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/container-sim/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths overrides the config file search paths.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.configPaths = paths }
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// Load resolves configuration with priority:
// 1. defaults (lowest)
// 2. config file (yaml)
// 3. environment variables (highest)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if err := l.loadSpecEnvAliases(); err != nil {
		return nil, fmt.Errorf("failed to load spec env aliases: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"app.name":        "container-sim",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "container_sim",
		"metrics.subsystem": "",

		"tracing.enabled":     false,
		"tracing.endpoint":    "localhost:4317",
		"tracing.sample_rate": 0.1,

		"database.driver":           "postgres",
		"database.host":             "localhost",
		"database.port":             5432,
		"database.database":         "zim_geofence",
		"database.username":         "postgres",
		"database.password":        "",
		"database.ssl_mode":         "disable",
		"database.min_conns":        10,
		"database.max_conns":        50,
		"database.connect_timeout":  5 * time.Second,
		"database.statement_timeout": 5 * time.Minute,
		"database.auto_migrate":     true,

		"cache.enabled":     false,
		"cache.addr":        "localhost:6379",
		"cache.password":    "",
		"cache.db":          0,
		"cache.pool_size":   10,
		"cache.default_ttl": 5 * time.Minute,

		"sim.num_containers":           100000,
		"sim.stagger_slots":            900,
		"sim.simulation_speed":         60.0,
		"sim.event_interval_seconds":   900,
		"sim.loop_interval":            time.Second,
		"sim.door_event_probability":   0.30,
		"sim.rail_routing_probability": 0.30,
		"sim.rail_enabled_countries":   []string{"US", "CA", "GB"},
		"sim.status_interval_seconds":  10,

		"persistence.queue_capacity":       1000,
		"persistence.retry_backoff":        100 * time.Millisecond,
		"persistence.timeseries_retention": 90 * 24 * time.Hour,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, l.envPrefix)),
			"_", ".",
		)
	}), nil)
}

// specEnvAliases maps the flat environment variable names of spec.md §6
// onto their nested koanf keys. These are the operator-facing names and
// take precedence over the generic SIM_-prefixed nested form above.
var specEnvAliases = map[string]string{
	"DB_NAME":                   "database.database",
	"NUM_CONTAINERS":            "sim.num_containers",
	"STAGGER_SLOTS":             "sim.stagger_slots",
	"SIMULATION_SPEED":          "sim.simulation_speed",
	"EVENT_INTERVAL_SECONDS":    "sim.event_interval_seconds",
	"DOOR_EVENT_PROBABILITY":    "sim.door_event_probability",
	"RAIL_ROUTING_PROBABILITY":  "sim.rail_routing_probability",
	"RAIL_ENABLED_COUNTRIES":    "sim.rail_enabled_countries",
}

func (l *Loader) loadSpecEnvAliases() error {
	flat := map[string]any{}
	for envName, key := range specEnvAliases {
		val, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		if envName == "RAIL_ENABLED_COUNTRIES" {
			flat[key] = strings.Split(val, ",")
		} else {
			flat[key] = val
		}
	}
	if len(flat) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(flat, "."), nil)
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load is a convenience function using default options.
func Load() (*Config, error) {
	return NewLoader().Load()
}
