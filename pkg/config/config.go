// Package config defines the simulator's configuration schema.
package config

import (
	"fmt"
	"time"
)

// Config is the immutable, fully-resolved configuration for a simulator
// run. It is built once at startup and passed by reference to every
// component — no component reads the environment directly.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Sim       SimConfig       `koanf:"sim"`
	Persistence PersistenceConfig `koanf:"persistence"`
}

// AppConfig carries general application identity.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Output     string `koanf:"output"`
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	SampleRate float64 `koanf:"sample_rate"`
}

// DatabaseConfig configures the Postgres connection pool (spec §4.5).
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MinConns        int           `koanf:"min_conns"`
	MaxConns        int           `koanf:"max_conns"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// CacheConfig configures the Redis geofence cache.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Addr       string        `koanf:"addr"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	PoolSize   int           `koanf:"pool_size"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// SimConfig holds the simulation-specific knobs of spec.md §6.
type SimConfig struct {
	NumContainers         int           `koanf:"num_containers"`
	StaggerSlots          int           `koanf:"stagger_slots"`
	SimulationSpeed       float64       `koanf:"simulation_speed"`
	EventIntervalSeconds  int           `koanf:"event_interval_seconds"`
	LoopInterval          time.Duration `koanf:"loop_interval"`
	DoorEventProbability  float64       `koanf:"door_event_probability"`
	RailRoutingProbability float64      `koanf:"rail_routing_probability"`
	RailEnabledCountries  []string      `koanf:"rail_enabled_countries"`
	StatusIntervalSeconds int           `koanf:"status_interval_seconds"`
}

// PersistenceConfig configures the dual-sink batch writer (spec §4.5/§5).
type PersistenceConfig struct {
	QueueCapacity      int           `koanf:"queue_capacity"`
	RetryBackoff       time.Duration `koanf:"retry_backoff"`
	TimeSeriesRetention time.Duration `koanf:"timeseries_retention"`
}

// Validate checks invariants that would make the simulator unable to start.
func (c *Config) Validate() error {
	if c.Sim.StaggerSlots <= 0 {
		return fmt.Errorf("sim.stagger_slots must be positive, got %d", c.Sim.StaggerSlots)
	}
	if c.Sim.NumContainers < 0 {
		return fmt.Errorf("sim.num_containers must not be negative, got %d", c.Sim.NumContainers)
	}
	if c.Sim.SimulationSpeed <= 0 {
		return fmt.Errorf("sim.simulation_speed must be positive, got %f", c.Sim.SimulationSpeed)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}
