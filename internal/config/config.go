package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all halflife configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Decay    DecayConfig    `yaml:"decay"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Limits   LimitsConfig   `yaml:"limits"`
	Report   ReportConfig   `yaml:"report"`
	Lock     LockConfig     `yaml:"lock"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind        string   `yaml:"bind"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"` // empty: no CORS headers
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // empty: ~/.halflife/halflife.db
}

type DecayConfig struct {
	HalfLifeHours float64 `yaml:"half_life_hours"`
	HorizonHours  int     `yaml:"horizon_hours"`
}

type LedgerConfig struct {
	Clamp string `yaml:"clamp"` // "read" or "write"
}

type LimitsConfig struct {
	DailyLimitMg     float64 `yaml:"daily_limit_mg"`
	SleepSensitiveMg float64 `yaml:"sleep_sensitive_mg"`
	MinorImpactMg    float64 `yaml:"minor_impact_mg"`
}

type ReportConfig struct {
	WindowRadiusHours int    `yaml:"window_radius_hours"`
	Timezone          string `yaml:"timezone"` // IANA name; buckets and dates are local to it
}

type LockConfig struct {
	Backend   string        `yaml:"backend"` // "local" or "redis"
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

type EventsConfig struct {
	NATSURL string `yaml:"nats_url"` // empty disables publishing
	Prefix  string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Decay: DecayConfig{
			HalfLifeHours: 5,
			HorizonHours:  24,
		},
		Ledger: LedgerConfig{
			Clamp: "read",
		},
		Limits: LimitsConfig{
			DailyLimitMg:     400,
			SleepSensitiveMg: 100,
			MinorImpactMg:    50,
		},
		Report: ReportConfig{
			WindowRadiusHours: 17,
			Timezone:          "UTC",
		},
		Lock: LockConfig{
			Backend: "local",
			TTL:     10 * time.Second,
		},
		Events: EventsConfig{
			Prefix: "halflife",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env if present, then the YAML file at path (skipped when path
// is empty), then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config on top of the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := getenv("HALFLIFE_DB"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("HALFLIFE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HALFLIFE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("HALFLIFE_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if v := getenv("HALFLIFE_HALF_LIFE_HOURS"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HALFLIFE_HALF_LIFE_HOURS: %w", err)
		}
		c.Decay.HalfLifeHours = h
	}
	if v := getenv("HALFLIFE_TIMEZONE"); v != "" {
		c.Report.Timezone = v
	}
	if v := getenv("HALFLIFE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("REDIS_ADDRESS"); v != "" {
		c.Lock.Backend = "redis"
		c.Lock.RedisAddr = v
	}
	if v := getenv("NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Decay.HalfLifeHours <= 0 {
		return fmt.Errorf("decay.half_life_hours must be positive")
	}
	if c.Decay.HorizonHours < 1 {
		return fmt.Errorf("decay.horizon_hours must be at least 1")
	}
	switch c.Ledger.Clamp {
	case "", "read", "write":
	default:
		return fmt.Errorf("ledger.clamp must be read or write, got %q", c.Ledger.Clamp)
	}
	if c.Limits.DailyLimitMg <= 0 {
		return fmt.Errorf("limits.daily_limit_mg must be positive")
	}
	if c.Limits.MinorImpactMg > c.Limits.SleepSensitiveMg {
		return fmt.Errorf("limits.minor_impact_mg must not exceed limits.sleep_sensitive_mg")
	}
	if c.Report.WindowRadiusHours < 0 {
		return fmt.Errorf("report.window_radius_hours must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Lock.Backend {
	case "", "local":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("lock.redis_addr is required for the redis backend")
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("lock.ttl must be positive")
		}
	default:
		return fmt.Errorf("lock.backend must be local or redis, got %q", c.Lock.Backend)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Location loads the report timezone.
func (c *Config) Location() (*time.Location, error) {
	name := c.Report.Timezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("report.timezone: %w", err)
	}
	return loc, nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
