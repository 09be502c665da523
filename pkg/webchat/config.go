package webchat

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config collects everything the server needs to start. Values layer as
// defaults < config file < environment < flags.
type Config struct {
	Addr        string `yaml:"addr"`
	DBPath      string `yaml:"db_path"`
	AccessCodes string `yaml:"access_codes"`

	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	MaxTurns         int    `yaml:"max_turns"`
	EvictIdleSec     int    `yaml:"evict_idle_sec"`
	EvictIntervalSec int    `yaml:"evict_interval_sec"`
	RateLimitPerMin  int    `yaml:"rate_limit_per_min"`
	PromptFile       string `yaml:"prompt_file"`
}

// EvictIdle returns the configured idle threshold as a duration.
func (c Config) EvictIdle() time.Duration { return time.Duration(c.EvictIdleSec) * time.Second }

// EvictInterval returns the configured sweep interval as a duration.
func (c Config) EvictInterval() time.Duration { return time.Duration(c.EvictIntervalSec) * time.Second }

func DefaultConfig() Config {
	return Config{
		Addr:            ":3000",
		AccessCodes:     "LUMINA2024",
		MaxTokens:       1024,
		MaxTurns:         DefaultMaxTurns,
		EvictIdleSec:     int(time.Hour / time.Second),
		EvictIntervalSec: int(time.Hour / time.Second),
		RateLimitPerMin:  60,
	}
}

// LoadConfigFile overlays values from a YAML file onto cfg.
func LoadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return errors.Wrap(err, "parse config file")
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("ACCESS_CODES"); v != "" {
		c.AccessCodes = v
	}
	if v := os.Getenv("LUMINA_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("LUMINA_API_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("LUMINA_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("LUMINA_DB_PATH"); v != "" {
		c.DBPath = v
	}
}
