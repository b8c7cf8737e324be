package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "MOFRAC"

// newViper builds a pre-configured Viper instance with the engine's standard
// settings: YAML file type, MOFRAC_ env prefix, automatic env binding, and a
// key replacer that maps "." → "_" so that nested keys like "database.host"
// resolve to "MOFRAC_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper already knows about, so every settable
	// key is bound up front; otherwise env-only overrides would be dropped.
	for _, key := range settableKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// settableKeys lists every configuration key, matching the mapstructure tags
// of the Config tree.
var settableKeys = []string{
	"featurization.depth", "featurization.wiggle_room", "featurization.max_atom_count",
	"featurization.graph_provided", "featurization.emit_bond_info",
	"featurization.emit_surrounded_sbu", "featurization.detect_rod",
	"output.path", "output.xyz_path",
	"database.enabled", "database.host", "database.port", "database.user",
	"database.password", "database.db_name", "database.ssl_mode",
	"database.max_conns", "database.min_conns", "database.conn_max_lifetime",
	"database.conn_max_idle_time", "database.migration_path",
	"redis.enabled", "redis.addr", "redis.password", "redis.db",
	"redis.pool_size", "redis.min_idle_conns", "redis.dial_timeout",
	"redis.read_timeout", "redis.write_timeout", "redis.default_ttl", "redis.key_prefix",
	"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.auto_offset_reset",
	"kafka.timeout_ms", "kafka.producer_retries", "kafka.batch_size",
	"kafka.auto_create_topics", "kafka.replication_factor", "kafka.num_partitions",
	"milvus.enabled", "milvus.addr", "milvus.db_name", "milvus.index_type",
	"milvus.hnsw_m", "milvus.hnsw_ef_construction", "milvus.default_top_k",
	"milvus.collection_prefix",
	"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key",
	"minio.bucket", "minio.use_ssl", "minio.presign_expiry",
	"worker.concurrency", "worker.max_retries", "worker.retry_backoff_ms",
	"log.level", "log.format", "log.output", "log.enable_caller", "log.enable_stacktrace",
	"metrics.enabled", "metrics.addr", "metrics.path",
}

// Load reads the YAML file at configPath, merges any MOFRAC_* environment
// variable overrides, applies engine defaults for unset fields, and validates
// the result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MOFRAC_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised (12-factor) deployments.
//
// Environment variable naming convention:
//
//	MOFRAC_<SECTION>_<FIELD>   e.g.  MOFRAC_FEATURIZATION_DEPTH, MOFRAC_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level; callers are
// responsible for applying only the safe subset of changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read — errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// An invalid on-disk config must not reach the application.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
