package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	rdErrors "thoreinstein.com/repodash/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Git       GitConfig       `mapstructure:"git"`
	Server    ServerConfig    `mapstructure:"server"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Log       LogConfig       `mapstructure:"log"`
}

// DiscoveryConfig holds repository discovery configuration
type DiscoveryConfig struct {
	Roots          []string      `mapstructure:"roots" validate:"min=1,dive,required"` // Directories to scan for repositories
	MaxDepth       int           `mapstructure:"max_depth" validate:"gte=0"`           // Max depth below a root, 0 for unlimited
	Exclusions     []string      `mapstructure:"exclusions"`                           // Directory names never descended into
	FollowSymlinks bool          `mapstructure:"follow_symlinks"`                      // Descend into symlinked directories
	ProgressMode   string        `mapstructure:"progress_mode" validate:"oneof=adaptive precount"`
	CachePath      string        `mapstructure:"cache_path" validate:"required"` // SQLite snapshot of the last scan
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`     // Age after which list rescans
}

// ProbeConfig holds per-repository status probe configuration
type ProbeConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" validate:"gt=0"`     // Bound on each git query
	Concurrency      int           `mapstructure:"concurrency" validate:"gt=0"` // Probes running at once
	IncludeUntracked bool          `mapstructure:"include_untracked"`           // Count untracked files as changes
}

// GitConfig selects the git backend
type GitConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=exec gogit"` // "exec" runs the git binary, "gogit" is in-process
	Binary  string `mapstructure:"binary" validate:"required"`          // git executable for the exec backend
}

// ServerConfig holds configuration for `repodash serve`
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required,hostname_port"`
	RescanInterval time.Duration `mapstructure:"rescan_interval" validate:"gte=0"` // 0 disables periodic rescans
}

// WatchConfig holds filesystem watch configuration
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Set defaults
	setDefaults()

	// Unmarshal the config
	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Expand paths
	if err := expandPaths(config); err != nil {
		return nil, errors.Wrap(err, "failed to expand paths")
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration and returns the first problem as a
// ConfigError naming the offending key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return rdErrors.NewConfigErrorWithCause("", "invalid configuration", err)
	}

	fe := fieldErrs[0]
	return rdErrors.NewConfigErrorWithCause(keyFor(fe.StructNamespace()), describe(fe), err)
}

// keyFor maps a struct namespace like "Config.Probe.Timeout" to the
// configuration key "probe.timeout".
func keyFor(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		if idx := strings.IndexByte(p, '['); idx >= 0 {
			p = p[:idx]
		}
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "min":
		return "must have at least " + fe.Param() + " entry"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be negative"
	case "hostname_port":
		return "must be host:port"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fall back to current directory if home dir can't be determined
		homeDir = "."
	}

	// Discovery defaults
	viper.SetDefault("discovery.roots", []string{homeDir})
	viper.SetDefault("discovery.max_depth", 0)
	viper.SetDefault("discovery.exclusions", []string{"node_modules", "vendor", ".terraform", ".git", ".idea", ".vscode", ".cache"})
	viper.SetDefault("discovery.follow_symlinks", false)
	viper.SetDefault("discovery.progress_mode", "adaptive")
	viper.SetDefault("discovery.cache_path", filepath.Join(homeDir, ".cache", "repodash", "records.db"))
	viper.SetDefault("discovery.cache_ttl", 24*time.Hour)

	// Probe defaults
	viper.SetDefault("probe.timeout", 10*time.Second)
	viper.SetDefault("probe.concurrency", runtime.NumCPU()*2)
	viper.SetDefault("probe.include_untracked", true)

	// Git defaults
	viper.SetDefault("git.backend", "exec")
	viper.SetDefault("git.binary", "git")

	// Server defaults
	viper.SetDefault("server.addr", "127.0.0.1:7420")
	viper.SetDefault("server.rescan_interval", 15*time.Minute)

	// Watch defaults
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	// Log defaults
	viper.SetDefault("log.format", "text")
}

// expandPaths expands ~ in paths
func expandPaths(config *Config) error {
	var err error

	for i, path := range config.Discovery.Roots {
		config.Discovery.Roots[i], err = ExpandPath(path)
		if err != nil {
			return err
		}
	}

	config.Discovery.CachePath, err = ExpandPath(config.Discovery.CachePath)
	if err != nil {
		return err
	}

	return nil
}

// ExpandPath expands a leading ~ to the home directory
func ExpandPath(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, path[1:]), nil
}
