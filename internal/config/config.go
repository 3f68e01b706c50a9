package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration options for the apcups-hass application
type Config struct {
	// apcupsd NIS server
	NISHost        string        `json:"nis_host" yaml:"nis_host"`               // Host running apcupsd
	NISPort        int           `json:"nis_port" yaml:"nis_port"`               // apcupsd NISPORT
	PollInterval   time.Duration `json:"poll_interval" yaml:"poll_interval"`     // Time between status fetches
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"` // Per-address connect timeout
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`       // Per-frame receive timeout
	LegacyFraming  bool          `json:"legacy_framing" yaml:"legacy_framing"`   // Decode frame lengths like the wmapcups dockapp

	// MQTT Configuration
	MQTTUrl             string        `json:"mqtt_url" yaml:"mqtt_url"`                           // MQTT URL (supports both WebSocket and standard MQTT)
	DiscoveryPrefix     string        `json:"discovery_prefix" yaml:"discovery_prefix"`           // Home Assistant discovery prefix
	MQTTInterval        time.Duration `json:"mqtt_interval" yaml:"mqtt_interval"`                 // Minimum time between state publishes
	ForceUpdateInterval time.Duration `json:"force_update_interval" yaml:"force_update_interval"` // Publish even when unchanged (0 = disabled)
	StaleAfter          time.Duration `json:"stale_after" yaml:"stale_after"`                     // Report offline when no good data for this long

	// Device Configuration
	DeviceID string `json:"device_id" yaml:"device_id"` // Unique device identifier

	// Power event hook
	HookCommand string        `json:"hook_command" yaml:"hook_command"` // Run on on-battery / on-line transitions
	HookTimeout time.Duration `json:"hook_timeout" yaml:"hook_timeout"`

	// Application Configuration
	Verbose bool `json:"verbose" yaml:"verbose"` // Enable verbose logging
}

// GetDefaultConfig returns a configuration with sensible defaults
func GetDefaultConfig() *Config {
	return &Config{
		NISHost:         DefaultNISHost,
		NISPort:         DefaultNISPort,
		PollInterval:    DefaultPollInterval,
		ConnectTimeout:  DefaultConnTimeout,
		ReadTimeout:     DefaultReadTimeout,
		DiscoveryPrefix: DefaultDiscoveryPref,
		MQTTInterval:    DefaultMQTTInterval,
		StaleAfter:      DefaultStaleAfter,
		DeviceID:        DefaultDeviceID,
		HookTimeout:     DefaultHookTimeout,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NISHost) == "" {
		return fmt.Errorf("NIS host is required")
	}
	if c.NISPort <= 0 || c.NISPort > 65535 {
		return fmt.Errorf("NIS port %d out of range", c.NISPort)
	}
	if c.PollInterval < MinPollInterval {
		return fmt.Errorf("poll interval %s is below the %s minimum", c.PollInterval, MinPollInterval)
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device ID is required")
	}

	// MQTT validation - support both WebSocket and standard MQTT protocols
	if c.MQTTUrl != "" {
		if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
			!strings.HasPrefix(c.MQTTUrl, "wss://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
			return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
		}
	}

	// Set defaults for invalid values
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MQTTInterval <= 0 {
		c.MQTTInterval = DefaultMQTTInterval
	}
	if c.HookTimeout <= 0 {
		c.HookTimeout = DefaultHookTimeout
	}
	if c.ForceUpdateInterval < 0 {
		c.ForceUpdateInterval = 0
	}

	return nil
}

// HasMQTT returns true if MQTT is configured
func (c *Config) HasMQTT() bool {
	return c.MQTTUrl != ""
}

// HasHook returns true if a power event hook is configured
func (c *Config) HasHook() bool {
	return strings.TrimSpace(c.HookCommand) != ""
}
