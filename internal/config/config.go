// Package config provides YAML configuration loading with validation and
// environment variable substitution for the tripwatch daemon.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server" json:"server"`
	Metrics MetricsConfig  `yaml:"metrics" json:"metrics"`
	Logging LoggingConfig  `yaml:"logging" json:"logging"`
	Probes  ProbesConfig   `yaml:"probes" json:"probes"`
	Admin   AdminConfig    `yaml:"admin" json:"admin"`
	Targets []TargetConfig `yaml:"targets" json:"targets"`

	// Warnings holds non-fatal config issues detected during loading.
	// Stored on the Config itself (not a package-level var) so it is
	// safe to call Load concurrently from the hot-reload goroutine.
	Warnings []string `yaml:"-" json:"-"`
}

// ServerConfig holds settings for the HTTP listener serving the health,
// metrics, and admin endpoints.
type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls" json:"tls"`
}

// TLSConfig holds TLS settings for the HTTP listener.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	CertFile   string `yaml:"cert_file" json:"cert_file"`
	KeyFile    string `yaml:"key_file" json:"key_file"`
	MinVersion string `yaml:"min_version" json:"min_version"` // "1.2" or "1.3"; default: "1.2"
}

// MetricsConfig holds Prometheus metrics endpoint settings.
// Enabled defaults to true; set to false to disable metrics.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// IsEnabled returns whether metrics are enabled (defaults to true).
func (m MetricsConfig) IsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Output     string `yaml:"output" json:"output"`           // "stdout", "stderr", or file path; default: "stdout"
	Level      string `yaml:"level" json:"level"`             // "debug", "info", "warn", "error"; default: "info"
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"` // max log file size before rotation; default: 100
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // number of rotated files to keep; default: 3
}

// ValidLogLevels are the accepted logging.level strings.
var ValidLogLevels = map[string]bool{
	"":      true, // empty means default ("info")
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ProbesConfig holds the global probe pacing settings. All targets share a
// single token bucket so a reload or many aligned tickers cannot stampede
// the monitored dependencies.
type ProbesConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int     `yaml:"burst" json:"burst"`
}

// AdminConfig holds admin API settings.
type AdminConfig struct {
	Enabled     bool            `yaml:"enabled" json:"enabled"`           // default: false
	IPAllowlist []string        `yaml:"ip_allowlist" json:"ip_allowlist"` // CIDR notation
	Auth        AdminAuthConfig `yaml:"auth" json:"auth"`
}

// AdminAuthConfig holds JWT Bearer token settings for the admin API.
type AdminAuthConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	JWTSecret string   `yaml:"jwt_secret" json:"jwt_secret"`
	Issuer    string   `yaml:"issuer" json:"issuer"`
	Audience  string   `yaml:"audience" json:"audience"`
	Scopes    []string `yaml:"scopes" json:"scopes"`
}

// Trip actions.
const (
	ActionLog      = "log"      // log the trip and keep monitoring
	ActionShutdown = "shutdown" // report the trip to main, which terminates the process
)

// Probe types.
const (
	ProbeTCP  = "tcp"
	ProbeHTTP = "http"
)

// TargetConfig defines a single monitored dependency.
type TargetConfig struct {
	Name     string        `yaml:"name" json:"name"`
	Probe    string        `yaml:"probe" json:"probe"`     // "tcp" or "http"
	Address  string        `yaml:"address" json:"address"` // host:port for tcp, URL for http
	Interval time.Duration `yaml:"interval" json:"interval"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// WindowSize is the number of recent probe outcomes retained; the trip
	// decision only ever looks at these.
	WindowSize int `yaml:"window_size" json:"window_size"`

	// TripThreshold is the failure count within the window that trips the
	// target. Zero is legal (trips immediately); a value above window_size
	// is legal and means the target can never trip. Defaults to window_size
	// when omitted.
	TripThreshold *int `yaml:"trip_threshold" json:"trip_threshold"`

	OnTrip string `yaml:"on_trip" json:"on_trip"` // "log" or "shutdown"; default: "log"
}

// Threshold returns the effective trip threshold, defaulting to the full
// window when unset.
func (t TargetConfig) Threshold() int {
	if t.TripThreshold == nil {
		return t.WindowSize
	}
	return *t.TripThreshold
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the corresponding
// environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, sets defaults, and validates the result.
// Warnings are stored on cfg.Warnings (goroutine-safe, no package-level state).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes. Useful for testing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.Warnings = collectWarnings(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9320
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.TLS.Enabled && cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = "1.2"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}

	// Probe pacing defaults
	if cfg.Probes.RatePerSecond == 0 {
		cfg.Probes.RatePerSecond = 50
	}
	if cfg.Probes.Burst == 0 {
		cfg.Probes.Burst = 10
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if t.Interval == 0 {
			t.Interval = 10 * time.Second
		}
		if t.Timeout == 0 {
			t.Timeout = 3 * time.Second
		}
		if t.WindowSize == 0 {
			t.WindowSize = 10
		}
		if t.OnTrip == "" {
			t.OnTrip = ActionLog
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	// TLS validation
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
		if cfg.Server.TLS.MinVersion != "1.2" && cfg.Server.TLS.MinVersion != "1.3" {
			return fmt.Errorf("server.tls.min_version must be \"1.2\" or \"1.3\", got %q", cfg.Server.TLS.MinVersion)
		}
	}

	// Logging validation
	if !ValidLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.Output != "stderr" {
		if cfg.Logging.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be positive when output is a file path")
		}
	}

	if cfg.Probes.RatePerSecond <= 0 {
		return fmt.Errorf("probes.rate_per_second must be positive")
	}
	if cfg.Probes.Burst <= 0 {
		return fmt.Errorf("probes.burst must be positive")
	}

	// Admin validation
	if cfg.Admin.Enabled {
		if len(cfg.Admin.IPAllowlist) == 0 {
			return fmt.Errorf("admin.ip_allowlist is required when admin is enabled")
		}
		for i, cidr := range cfg.Admin.IPAllowlist {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return fmt.Errorf("admin.ip_allowlist[%d]: invalid CIDR %q: %w", i, cidr, err)
			}
		}
		if cfg.Admin.Auth.Enabled {
			if cfg.Admin.Auth.JWTSecret == "" {
				return fmt.Errorf("admin.auth.jwt_secret is required when admin auth is enabled")
			}
			if cfg.Admin.Auth.Issuer == "" {
				return fmt.Errorf("admin.auth.issuer is required when admin auth is enabled")
			}
			if cfg.Admin.Auth.Audience == "" {
				return fmt.Errorf("admin.auth.audience is required when admin auth is enabled")
			}
		}
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target must be configured")
	}

	seen := make(map[string]bool)
	for i, t := range cfg.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d].name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name: %s", t.Name)
		}
		seen[t.Name] = true

		switch t.Probe {
		case ProbeTCP:
			if _, _, err := net.SplitHostPort(t.Address); err != nil {
				return fmt.Errorf("targets[%d].address: tcp probe requires host:port, got %q: %w", i, t.Address, err)
			}
		case ProbeHTTP:
			u, err := url.Parse(t.Address)
			if err != nil {
				return fmt.Errorf("targets[%d].address: invalid URL: %w", i, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("targets[%d].address: scheme must be http or https, got %q", i, u.Scheme)
			}
			if u.Host == "" {
				return fmt.Errorf("targets[%d].address: host is required", i)
			}
		default:
			return fmt.Errorf("targets[%d].probe must be %q or %q, got %q", i, ProbeTCP, ProbeHTTP, t.Probe)
		}

		if t.Interval <= 0 {
			return fmt.Errorf("targets[%d].interval must be positive", i)
		}
		if t.Timeout <= 0 {
			return fmt.Errorf("targets[%d].timeout must be positive", i)
		}
		if t.WindowSize < 1 {
			return fmt.Errorf("targets[%d].window_size must be at least 1", i)
		}
		if t.TripThreshold != nil && *t.TripThreshold < 0 {
			return fmt.Errorf("targets[%d].trip_threshold must be non-negative", i)
		}
		if t.OnTrip != ActionLog && t.OnTrip != ActionShutdown {
			return fmt.Errorf("targets[%d].on_trip must be %q or %q, got %q", i, ActionLog, ActionShutdown, t.OnTrip)
		}
	}

	return nil
}

func collectWarnings(cfg *Config) []string {
	var warnings []string
	for _, t := range cfg.Targets {
		if t.Threshold() > t.WindowSize {
			warnings = append(warnings, fmt.Sprintf(
				"target %q: trip_threshold %d exceeds window_size %d, target can never trip",
				t.Name, t.Threshold(), t.WindowSize))
		}
		if t.TripThreshold != nil && *t.TripThreshold == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"target %q: trip_threshold 0 trips immediately, before any probe runs", t.Name))
		}
		if t.Timeout >= t.Interval {
			warnings = append(warnings, fmt.Sprintf(
				"target %q: timeout %s is not shorter than interval %s, probes may overlap their tick",
				t.Name, t.Timeout, t.Interval))
		}
	}
	if cfg.Admin.Enabled && cfg.Admin.Auth.Enabled && envVarRe.MatchString(cfg.Admin.Auth.JWTSecret) {
		warnings = append(warnings, "admin.auth.jwt_secret contains unresolved environment variable")
	}
	return warnings
}
