package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey      string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer          string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience        string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RegenerationTimeout time.Duration `mapstructure:"REGENERATION_TIMEOUT"`
	OptimizerCommand    string        `mapstructure:"OPTIMIZER_COMMAND"`
	OptimizerArgs       []string      `mapstructure:"OPTIMIZER_ARGS"`
	OptimizerTimeout    time.Duration `mapstructure:"OPTIMIZER_TIMEOUT"`
	HolidaysFile        string        `mapstructure:"HOLIDAYS_FILE"`
	ClinicTimezone      string        `mapstructure:"CLINIC_TIMEZONE"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"REQUEST_TIMEOUT", "REGENERATION_TIMEOUT",
	"OPTIMIZER_COMMAND", "OPTIMIZER_ARGS", "OPTIMIZER_TIMEOUT", "HOLIDAYS_FILE", "CLINIC_TIMEZONE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("REGENERATION_TIMEOUT", "2m")
	v.SetDefault("OPTIMIZER_TIMEOUT", "5m")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.OptimizerArgs = splitList(cfg.OptimizerArgs, v.GetString("OPTIMIZER_ARGS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in development mode; requests without a token get the admin role")
	}

	return cfg, nil
}

// splitList re-reads a comma separated env value so entries come out trimmed.
func splitList(current []string, raw string) []string {
	if raw == "" {
		return current
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves ClinicTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.RegenerationTimeout <= 0 {
		return fmt.Errorf("REGENERATION_TIMEOUT must be positive, got %s", c.RegenerationTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.OptimizerCommand != "" && c.OptimizerTimeout <= 0 {
		return fmt.Errorf("OPTIMIZER_TIMEOUT must be positive when OPTIMIZER_COMMAND is set")
	}
	return nil
}
