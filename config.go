package bizengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Auth0     Auth0Config     `mapstructure:"auth0"`
	ImgBB     ImgBBConfig     `mapstructure:"imgbb"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"` // canonical site URL for feed/sitemap links
	Name    string `mapstructure:"name"`     // site display name
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CORSConfig holds allowed origins for browser clients.
type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

// RateLimitConfig holds the global per-IP request limit and the stricter
// contact-form submission limit.
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	ContactMax        int           `mapstructure:"contact_max"`
	ContactWindow     time.Duration `mapstructure:"contact_window"`
}

// SMTPConfig holds mail transport configuration.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Pass     string `mapstructure:"pass"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	To       string `mapstructure:"to"` // operator address receiving contact notifications
}

// Auth0Config holds the tenant the JWT middleware verifies against and the
// machine-to-machine credentials for the Management API.
type Auth0Config struct {
	Domain       string `mapstructure:"domain"`
	Audience     string `mapstructure:"audience"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RolesClaim   string `mapstructure:"roles_claim"` // namespaced custom claim carrying roles
}

// ImgBBConfig holds the image host credentials.
type ImgBBConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from an optional YAML file plus
// BIZENGINE_* environment overrides (e.g. BIZENGINE_SMTP_PASS).
func LoadConfig(file string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.name", "Site")
	v.SetDefault("database.path", "data/site.db")
	v.SetDefault("cors.origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 30)
	v.SetDefault("rate_limit.contact_max", 5)
	v.SetDefault("rate_limit.contact_window", time.Hour)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("auth0.roles_claim", "https://bizengine/roles")
	v.SetDefault("imgbb.endpoint", "https://api.imgbb.com/1")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("BIZENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settings required at startup are present.
func (c Config) Validate() error {
	if c.SMTP.From == "" || c.SMTP.To == "" {
		return fmt.Errorf("smtp.from and smtp.to are required")
	}
	if c.Auth0.Domain == "" || c.Auth0.Audience == "" {
		return fmt.Errorf("auth0.domain and auth0.audience are required")
	}
	return nil
}
