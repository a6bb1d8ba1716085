package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL    = "https://pokeapi.co/api/v2/pokemon"
	DefaultTimeout    = 10 * time.Second
	DefaultCollectLog = "pokemon.log"
	DefaultLoadLog    = "pokemon_sql.log"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
)

// Config holds settings shared by the collect and load commands
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	LogFile  string         `yaml:"log_file"`

	MetricsAddr  string `yaml:"metrics_addr"`
	ProgressAddr string `yaml:"progress_addr"`
	WebhookURL   string `yaml:"webhook_url"`
}

// APIConfig configures the PokeAPI fetcher
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the relational loader.
// Password is never read from the YAML file; it comes from the
// environment or an interactive prompt.
type DatabaseConfig struct {
	Driver    string `yaml:"driver"`
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
	Password  string `yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			URL:    "postgres://postgres@localhost:5432/postgres?sslmode=disable",
		},
	}
}

// LoadDotEnv loads the first .env file found in the usual locations.
// Returns the path that was loaded, or "" if none was found.
func LoadDotEnv() string {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds a Config from defaults, an optional YAML file and the environment,
// in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := getEnv("POKEAPI_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := getEnv("POKEAPI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POKEAPI_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if v := getEnv("LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := getEnv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getEnv("DATABASE_AUTH_TOKEN"); v != "" {
		c.Database.AuthToken = v
	}
	if v := getEnv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := getEnv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := getEnv("PROGRESS_ADDR"); v != "" {
		c.ProgressAddr = v
	}
	if v := getEnv("DISCORD_WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
	return nil
}

// Validate checks the fields every command relies on
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %s", c.API.Timeout)
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverLibSQL:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// getEnv reads an environment variable, trimming quotes left over from .env parsing
func getEnv(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"")
}
