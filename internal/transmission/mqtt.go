package transmission

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jkaberg/apcups-hass/internal/mqtt"
	"github.com/jkaberg/apcups-hass/internal/nis"
	"github.com/sirupsen/logrus"
)

// MQTTTransmitter publishes UPS snapshots to MQTT with Home Assistant discovery
type MQTTTransmitter struct {
	client          Publisher
	deviceID        string
	discoveryPrefix string
	version         string
	logger          *logrus.Logger
	discovered      map[string]bool // Tracks published discovery configs
}

// HADiscoveryConfig represents Home Assistant MQTT discovery configuration
type HADiscoveryConfig struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Device            HADevice `json:"device"`
	AvailabilityTopic string   `json:"availability_topic"`
	Icon              string   `json:"icon,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
}

// HADevice represents the device information for Home Assistant
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// entity describes one Home Assistant entity backed by a snapshot field.
type entity struct {
	Field       nis.StatusField
	Name        string
	Type        string // "sensor" / "binary_sensor"
	DeviceClass string
	Unit        string
	Icon        string
}

var entities = []entity{
	{Field: nis.LineVoltage, Name: "Line Voltage", Type: "sensor", DeviceClass: "voltage", Unit: "V"},
	{Field: nis.BatteryCharge, Name: "Battery Charge", Type: "sensor", DeviceClass: "battery", Unit: "%"},
	{Field: nis.LoadPercent, Name: "Load", Type: "sensor", Unit: "%", Icon: "mdi:gauge"},
	{Field: nis.TimeLeft, Name: "Time Left", Type: "sensor", DeviceClass: "duration", Unit: "min"},
	{Field: nis.Online, Name: "Line Power", Type: "binary_sensor", DeviceClass: "power"},
	{Field: nis.Charging, Name: "Charging", Type: "binary_sensor", DeviceClass: "battery_charging"},
}

// NewMQTTTransmitter creates a new MQTT transmitter
func NewMQTTTransmitter(client Publisher, deviceID, discoveryPrefix, version string, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:          client,
		deviceID:        deviceID,
		discoveryPrefix: discoveryPrefix,
		version:         version,
		logger:          logger,
		discovered:      make(map[string]bool),
	}
}

func (t *MQTTTransmitter) device() HADevice {
	return HADevice{
		Identifiers:  []string{fmt.Sprintf("%s_%s", mqtt.TopicRoot, t.deviceID)},
		Name:         "APC UPS",
		Model:        "apcupsd NIS",
		Manufacturer: "APC",
		SWVersion:    t.version,
	}
}

func (t *MQTTTransmitter) discoveryConfig(e entity) HADiscoveryConfig {
	key := e.Field.String()
	cfg := HADiscoveryConfig{
		Name:              e.Name,
		UniqueID:          fmt.Sprintf("%s_%s", t.deviceID, key),
		StateTopic:        mqtt.StateTopic(t.deviceID),
		DeviceClass:       e.DeviceClass,
		UnitOfMeasurement: e.Unit,
		Icon:              e.Icon,
		Device:            t.device(),
		AvailabilityTopic: mqtt.AvailabilityTopic(t.deviceID),
	}
	if e.Type == "binary_sensor" {
		cfg.ValueTemplate = fmt.Sprintf("{{ 'ON' if value_json.%s else 'OFF' }}", key)
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"
	} else {
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", key)
		cfg.StateClass = "measurement"
	}
	return cfg
}

// publishDiscoveryConfigs publishes every entity config not yet accepted by the broker.
func (t *MQTTTransmitter) publishDiscoveryConfigs() {
	for _, e := range entities {
		key := e.Field.String()
		if t.discovered[key] {
			continue
		}
		topic := mqtt.DiscoveryTopic(t.discoveryPrefix, e.Type, t.deviceID, key)
		payload, err := json.Marshal(t.discoveryConfig(e))
		if err != nil {
			t.logger.WithError(err).WithField("entity", key).Error("Failed to marshal discovery config")
			continue
		}
		if err := t.client.Publish(topic, payload, true); err != nil {
			t.logger.WithError(err).WithField("entity", key).Error("Failed to publish discovery config")
			continue
		}
		t.logger.WithFields(logrus.Fields{
			"entity": key,
			"topic":  topic,
		}).Info("Published discovery config")
		t.discovered[key] = true
	}
}

// statePayload is the JSON document published on the state topic.
type statePayload struct {
	LineVoltage   int       `json:"line_voltage"`
	BatteryCharge int       `json:"battery_charge"`
	LoadPercent   int       `json:"load_percent"`
	TimeLeft      int       `json:"time_left"`
	Online        bool      `json:"online"`
	Charging      bool      `json:"charging"`
	CapturedAt    time.Time `json:"captured_at"`
}

func buildStatePayload(snap nis.Snapshot) ([]byte, error) {
	return json.Marshal(statePayload{
		LineVoltage:   snap.Value(nis.LineVoltage),
		BatteryCharge: snap.Value(nis.BatteryCharge),
		LoadPercent:   snap.Value(nis.LoadPercent),
		TimeLeft:      snap.Value(nis.TimeLeft),
		Online:        snap.Online(),
		Charging:      snap.Charging(),
		CapturedAt:    snap.CapturedAt.UTC(),
	})
}

// Transmit publishes discovery (once), state and availability for snap.
func (t *MQTTTransmitter) Transmit(snap nis.Snapshot) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if !snap.Usable() {
		return fmt.Errorf("refusing to publish incomplete snapshot %s", snap.Present)
	}

	t.publishDiscoveryConfigs()

	payload, err := buildStatePayload(snap)
	if err != nil {
		return fmt.Errorf("failed to build state payload: %w", err)
	}
	topic := mqtt.StateTopic(t.deviceID)
	if err := t.client.Publish(topic, payload, true); err != nil {
		return fmt.Errorf("failed to publish state to %s: %w", topic, err)
	}
	t.logger.WithFields(logrus.Fields{
		"topic":   topic,
		"payload": string(payload),
	}).Info("Published UPS state")

	return t.PublishAvailability(true)
}

// PublishAvailability publishes the availability status
func (t *MQTTTransmitter) PublishAvailability(online bool) error {
	payload := "online"
	if !online {
		payload = "offline"
	}
	topic := mqtt.AvailabilityTopic(t.deviceID)
	if err := t.client.Publish(topic, []byte(payload), true); err != nil {
		return fmt.Errorf("failed to publish availability to %s: %w", topic, err)
	}
	return nil
}

// IsConnected checks if the MQTT client is connected
func (t *MQTTTransmitter) IsConnected() bool {
	return t.client.IsConnected()
}
