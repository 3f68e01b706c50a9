package transmission

import "github.com/jkaberg/apcups-hass/internal/nis"

// Transmitter defines the interface for transmitting UPS snapshots
type Transmitter interface {
	Transmit(snap nis.Snapshot) error
	PublishAvailability(online bool) error
	IsConnected() bool
}

var _ Transmitter = (*MQTTTransmitter)(nil)

// Publisher is the subset of the MQTT client the transmitter uses.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	IsConnected() bool
}
