package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v2"

	"github.com/vik-s/pymeasure/internal/property"
	"github.com/vik-s/pymeasure/internal/transport"
)

// Config is the complete configuration.
type Config struct {
	Log         LogConfig            `yaml:"log"`
	Instruments []InstrumentConfig   `yaml:"instruments"`
	GPIB        transport.GPIBConfig `yaml:"gpib"`
	API         APIConfig            `yaml:"api"`
	Auth        AuthConfig           `yaml:"auth"`
	Audit       AuditConfig          `yaml:"audit"`
	Simulator   SimulatorConfig      `yaml:"simulator"`
	Telemetry   TelemetryConfig      `yaml:"telemetry"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// InstrumentConfig declares one instrument on the bench.
type InstrumentConfig struct {
	Name     string         `yaml:"name"`
	Model    string         `yaml:"model"`
	Resource string         `yaml:"resource"`
	Units    property.Units `yaml:"units"`
	Timeout  time.Duration  `yaml:"timeout"`
	Pacing   time.Duration  `yaml:"pacing"`
}

// APIConfig holds HTTP service settings.
type APIConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	CommandTimeout  time.Duration `yaml:"commandTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Algorithm     string `yaml:"algorithm"`
	Secret        string `yaml:"secret"`
	PublicKeyPath string `yaml:"publicKeyPath"`
}

// AuditConfig holds the transaction audit trail settings.
type AuditConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// SimulatorConfig holds scpisim settings.
type SimulatorConfig struct {
	Listen         string        `yaml:"listen"`
	Model          string        `yaml:"model"`
	AllowedCIDRs   []string      `yaml:"allowedCidrs"`
	Latency        time.Duration `yaml:"latency"`
	MaxConnections int           `yaml:"maxConnections"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
}

// TelemetryConfig controls the event stream.
type TelemetryConfig struct {
	BufferSize        int           `yaml:"bufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		GPIB: transport.DefaultGPIBConfig(),
		API: APIConfig{
			Listen:          "127.0.0.1:8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			CommandTimeout:  10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			Algorithm: "HS256",
		},
		Audit: AuditConfig{
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 90,
		},
		Simulator: SimulatorConfig{
			Listen:         "127.0.0.1:5025",
			Model:          "rs-fsq",
			AllowedCIDRs:   []string{"127.0.0.0/8", "::1/128"},
			MaxConnections: 10,
			IdleTimeout:    5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			BufferSize:        256,
			HeartbeatInterval: 15 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PYMEASURE_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyUnitDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PYMEASURE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PYMEASURE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("PYMEASURE_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PYMEASURE_LOG_JSON: %w", err)
		}
		cfg.Log.JSON = b
	}
	if v := os.Getenv("PYMEASURE_API_LISTEN"); v != "" {
		cfg.API.Listen = v
	}
	if v := os.Getenv("PYMEASURE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("PYMEASURE_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	if v := os.Getenv("PYMEASURE_GPIB_PORT"); v != "" {
		cfg.GPIB.Port = v
	}
	if v := os.Getenv("PYMEASURE_SIM_LISTEN"); v != "" {
		cfg.Simulator.Listen = v
	}
	return nil
}

// applyUnitDefaults fills unit fields an instrument entry left empty.
func applyUnitDefaults(cfg *Config) {
	def := property.DefaultUnits()
	for i := range cfg.Instruments {
		u := &cfg.Instruments[i].Units
		if u.Frequency == "" {
			u.Frequency = def.Frequency
		}
		if u.Power == "" {
			u.Power = def.Power
		}
	}
}

// Validate checks a merged configuration.
func Validate(cfg *Config) error {
	var errs []error

	if hclog.LevelFromString(cfg.Log.Level) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("invalid log level %q", cfg.Log.Level))
	}

	seen := make(map[string]bool)
	for i, inst := range cfg.Instruments {
		switch {
		case inst.Name == "":
			errs = append(errs, fmt.Errorf("instruments[%d]: name is required", i))
		case seen[inst.Name]:
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate name %q", i, inst.Name))
		}
		seen[inst.Name] = true
		if inst.Model == "" {
			errs = append(errs, fmt.Errorf("instruments[%d]: model is required", i))
		}
		if _, err := transport.ParseResource(inst.Resource); err != nil {
			errs = append(errs, fmt.Errorf("instruments[%d]: %w", i, err))
		}
		if inst.Timeout < 0 || inst.Pacing < 0 {
			errs = append(errs, fmt.Errorf("instruments[%d]: negative duration", i))
		}
	}

	if cfg.API.CommandTimeout <= 0 || cfg.API.CommandTimeout > 10*time.Minute {
		errs = append(errs, fmt.Errorf("api command timeout %v is outside (0, 10m]", cfg.API.CommandTimeout))
	}

	if cfg.Auth.Enabled {
		switch strings.ToUpper(cfg.Auth.Algorithm) {
		case "HS256":
			if cfg.Auth.Secret == "" {
				errs = append(errs, errors.New("auth: HS256 needs a secret"))
			}
		case "RS256":
			if cfg.Auth.PublicKeyPath == "" {
				errs = append(errs, errors.New("auth: RS256 needs publicKeyPath"))
			}
		default:
			errs = append(errs, fmt.Errorf("auth: unsupported algorithm %q", cfg.Auth.Algorithm))
		}
	}

	if cfg.Telemetry.BufferSize < 0 || cfg.Telemetry.HeartbeatInterval < 0 {
		errs = append(errs, errors.New("telemetry: negative buffer size or heartbeat interval"))
	}

	for _, cidr := range cfg.Simulator.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("simulator: %w", err))
		}
	}

	return errors.Join(errs...)
}
