package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the app reads.
const EnvPrefix = "APCUPS_HASS_"

// Load builds a Config from defaults, then the YAML file at path (if not
// empty), then a .env file in the working directory (if present), then the
// APCUPS_HASS_* environment. Flags are applied on top by main.
func Load(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.NISHost = getEnv("NIS_HOST", cfg.NISHost)
	cfg.MQTTUrl = getEnv("MQTT_URL", cfg.MQTTUrl)
	cfg.DiscoveryPrefix = getEnv("DISCOVERY_PREFIX", cfg.DiscoveryPrefix)
	cfg.DeviceID = getEnv("DEVICE_ID", cfg.DeviceID)
	cfg.HookCommand = getEnv("HOOK_COMMAND", cfg.HookCommand)

	var err error
	if cfg.NISPort, err = getEnvAsInt("NIS_PORT", cfg.NISPort); err != nil {
		return err
	}
	if cfg.Verbose, err = getEnvAsBool("VERBOSE", cfg.Verbose); err != nil {
		return err
	}
	if cfg.LegacyFraming, err = getEnvAsBool("LEGACY_FRAMING", cfg.LegacyFraming); err != nil {
		return err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"POLL_INTERVAL", &cfg.PollInterval},
		{"CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"READ_TIMEOUT", &cfg.ReadTimeout},
		{"MQTT_INTERVAL", &cfg.MQTTInterval},
		{"FORCE_UPDATE_INTERVAL", &cfg.ForceUpdateInterval},
		{"STALE_AFTER", &cfg.StaleAfter},
		{"HOOK_TIMEOUT", &cfg.HookTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvAsDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, def bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return d, nil
}

// ParseDuration parses "10s"-style durations and falls back to whole seconds.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(n) * time.Second, nil
}
