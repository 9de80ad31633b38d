package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0-beta.1"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentWorkerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Worker WorkerConfig
}

// CommonConfig contains configuration shared between the server and workers.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Feed       Feed       `koanf:"feed"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Startup delay in milliseconds.
	StartupDelay int `koanf:"startup_delay"`
	// Batch sizes for worker operations.
	BatchSizes BatchSizes `koanf:"batch_sizes"`
	// Intervals between worker passes.
	Intervals Intervals `koanf:"intervals"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Feed contains feed distribution configuration.
type Feed struct {
	// Follower count at which post fan-out moves from inline to the queue.
	FanOutThreshold int `koanf:"fan_out_threshold"`
	// Days a feed entry stays in the index before eviction.
	RetentionDays int `koanf:"retention_days"`
}

// BatchSizes configures how many items to process in each batch.
type BatchSizes struct {
	// Number of queued feed tasks to claim in one batch.
	QueueTasks int `koanf:"queue_tasks"`
}

// Intervals configures how long workers pause between passes.
type Intervals struct {
	// Seconds the feed worker waits when the queues are empty.
	QueuePoll int `koanf:"queue_poll"`
	// Minutes between maintenance passes.
	Maintenance int `koanf:"maintenance"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".plume",
		homeDir + "/.plume/config",
		"/etc/plume/config",
		"/app/config",
		"config",
		".",
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "worker"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/plumeworks/plume/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
