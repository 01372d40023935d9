// Package config loads gateway settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every gateway setting.
type Config struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	NodeServer string `yaml:"node_server" env:"NODE_SERVER"`
	SS58Prefix uint16 `yaml:"ss58_prefix" env:"SS58_PREFIX"`

	FinalityTimeout time.Duration `yaml:"finality_timeout" env:"FINALITY_TIMEOUT"`
	MetadataRefresh string        `yaml:"metadata_refresh" env:"METADATA_REFRESH"`
	HealthCheck     string        `yaml:"health_check" env:"HEALTH_CHECK"`

	Keycloak Keycloak `yaml:"keycloak"`

	AllowInlineSeed bool   `yaml:"allow_inline_seed" env:"ALLOW_INLINE_SEED"`
	CORSOrigins     string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS    int    `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int    `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`

	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Keycloak holds identity-provider settings.
type Keycloak struct {
	Host         string `yaml:"host" env:"KEYCLOAK_HOST"`
	Realm        string `yaml:"realm" env:"KEYCLOAK_REALM"`
	ClientID     string `yaml:"client_id" env:"KEYCLOAK_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"KEYCLOAK_CLIENT_SECRET"`
	Username     string `yaml:"username" env:"KEYCLOAK_USERNAME"`
	Password     string `yaml:"password" env:"KEYCLOAK_USER_PASSWORD"`
	PublicKey    string `yaml:"public_key" env:"KEYCLOAK_PUBLIC_KEY"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ListenAddr:      "127.0.0.1:4000",
		NodeServer:      "ws://127.0.0.1:9944",
		SS58Prefix:      42,
		FinalityTimeout: 2 * time.Minute,
		MetadataRefresh: "@every 10m",
		HealthCheck:     "@every 30s",
		CORSOrigins:     "http://localhost:3000,http://localhost:8080",
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds the configuration. envFile may be empty; a missing .env file is
// not an error. CONFIG_FILE names an optional YAML file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.Keycloak.PublicKey = strings.ReplaceAll(cfg.Keycloak.PublicKey, `\n`, "\n")
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var missing []string
	if c.ListenAddr == "" {
		missing = append(missing, "LISTEN_ADDR")
	}
	if c.NodeServer == "" {
		missing = append(missing, "NODE_SERVER")
	}
	k := c.Keycloak
	for name, v := range map[string]string{
		"KEYCLOAK_HOST":          k.Host,
		"KEYCLOAK_REALM":         k.Realm,
		"KEYCLOAK_CLIENT_ID":     k.ClientID,
		"KEYCLOAK_USERNAME":      k.Username,
		"KEYCLOAK_USER_PASSWORD": k.Password,
		"KEYCLOAK_PUBLIC_KEY":    k.PublicKey,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.SS58Prefix > 16383 {
		return fmt.Errorf("SS58_PREFIX %d out of range", c.SS58Prefix)
	}
	if c.FinalityTimeout < 0 {
		return fmt.Errorf("FINALITY_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	return nil
}

// AllowedOrigins splits CORSOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
