// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the polishgw service.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Free   FreeTier     `koanf:"free"`
	Redis  RedisConfig  `koanf:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// FreeTier holds the server-side settings for the built-in free provider:
// the upstream endpoint, the model, the shared API key, and the per-device
// usage limit. The key is a server secret — it never comes from, or goes
// to, the client.
type FreeTier struct {
	APIURL     string `koanf:"api_url"`
	Model      string `koanf:"model"`
	APIKey     string `koanf:"api_key"`
	UsageLimit int64  `koanf:"usage_limit"`
}

// RedisConfig holds the connection settings for the usage counter store.
// An empty Addr means "no Redis" — main.go falls back to the in-memory
// store, which is fine for local development but not durable.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Defaults for the free tier. These mirror the product's built-in provider;
// everything except the API key works out of the box.
const (
	defaultFreeAPIURL     = "https://api.siliconflow.cn/v1/chat/completions"
	defaultFreeModel      = "Qwen/Qwen2.5-7B-Instruct"
	defaultFreeUsageLimit = 50
)

// Load reads configuration from a YAML file, layers environment variable
// overrides on top, and returns a fully populated Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	// This is the equivalent of require('dotenv').config() in Node.
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "server.port").
	k := koanf.New(".")

	// Load the YAML config file. file.Provider reads the file,
	// yaml.Parser() decodes the YAML format into koanf's internal map.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "POLISHGW_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   POLISHGW_SERVER_PORT -> server.port
	if err := k.Load(env.Provider("POLISHGW_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "POLISHGW_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal the loaded key-value pairs into our Config struct.
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR_NAME} placeholders in the secret-bearing fields.
	// koanf doesn't do this automatically, so we handle it ourselves
	// using os.Getenv to look up the actual environment variable value.
	cfg.Free.APIKey = expandEnv(cfg.Free.APIKey)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)

	// Fill in defaults for anything the file left unset. The free tier
	// has well-known constants; only the API key has no sane default.
	if cfg.Free.APIURL == "" {
		cfg.Free.APIURL = defaultFreeAPIURL
	}
	if cfg.Free.Model == "" {
		cfg.Free.Model = defaultFreeModel
	}
	if cfg.Free.UsageLimit <= 0 {
		cfg.Free.UsageLimit = defaultFreeUsageLimit
	}

	return &cfg, nil
}

// expandEnv resolves a ${VAR_NAME} placeholder to the value of the named
// environment variable. Values that aren't placeholders pass through
// unchanged, so literal keys in local config files still work.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1]) // strip ${ and }
	}
	return s
}
