package config

import "time"

// Central place for all application-wide timing constants and other defaults.
// Changing a value here immediately affects all components that import
// github.com/jkaberg/apcups-hass/internal/config.

const (
	DefaultNISHost = "localhost"
	DefaultNISPort = 3551 // apcupsd NISPORT

	// Polling / transmission intervals
	DefaultPollInterval  = 10 * time.Second // Ask apcupsd for status
	MinPollInterval      = time.Second
	DefaultMQTTInterval  = 60 * time.Second // Publish data to MQTT
	DefaultStaleAfter    = 5 * time.Minute  // Mark the UPS unavailable after this long without data
	DefaultHookTimeout   = 10 * time.Second // On-battery / on-line hook command
	DefaultConnTimeout   = 3 * time.Second  // TCP connect to apcupsd
	DefaultReadTimeout   = time.Second      // Per-frame receive on the NIS socket
	DefaultDiscoveryPref = "homeassistant"
	DefaultDeviceID      = "apc_ups"
)
