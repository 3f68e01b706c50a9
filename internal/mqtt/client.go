package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// TopicRoot is the first level of every state and availability topic.
const TopicRoot = "apc_ups"

const (
	publishTimeout = 5 * time.Second
	connectTimeout = 5 * time.Second
)

// Client wraps the paho client with the topic layout used by apcups-hass.
type Client struct {
	client   mqtt.Client
	deviceID string
	logger   *logrus.Logger
}

// NewClient connects to the broker at mqttURL. ws, wss, mqtt and mqtts
// schemes are accepted; credentials may be embedded in the URL. A retained
// "offline" will is registered on the availability topic.
func NewClient(mqttURL, deviceID string, logger *logrus.Logger) (*Client, error) {
	opts, err := clientOptions(mqttURL, deviceID, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{deviceID: deviceID, logger: logger}

	firstConnect := true
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if firstConnect {
			logger.Debug("MQTT connected")
			firstConnect = false
		} else {
			logger.Info("MQTT reconnected")
		}
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		logger.Debug("MQTT reconnecting...")
	})

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker timed out after %s", connectTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.WithFields(logrus.Fields{
		"broker":    cleanURL(mqttURL),
		"client_id": clientID(deviceID),
	}).Info("MQTT client connected")

	return c, nil
}

// clientOptions translates the URL into paho options without connecting.
func clientOptions(mqttURL, deviceID string, logger *logrus.Logger) (*mqtt.ClientOptions, error) {
	parsedURL, err := url.Parse(mqttURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}

	opts := mqtt.NewClientOptions()

	var brokerURL string
	switch parsedURL.Scheme {
	case "ws", "wss":
		brokerURL = mqttURL
	case "mqtt":
		brokerURL = strings.Replace(mqttURL, "mqtt://", "tcp://", 1)
	case "mqtts":
		brokerURL = strings.Replace(mqttURL, "mqtts://", "ssl://", 1)
	default:
		return nil, fmt.Errorf("unsupported protocol scheme: %s (supported: ws, wss, mqtt, mqtts)", parsedURL.Scheme)
	}
	if parsedURL.Scheme == "wss" || parsedURL.Scheme == "mqtts" {
		// Home brokers commonly run with self-signed certificates.
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12})
	}
	logger.WithField("protocol", parsedURL.Scheme).Debug("Using MQTT transport")

	// Credentials are passed separately; keep them out of the broker URL.
	if parsedURL.User != nil {
		username := parsedURL.User.Username()
		password, _ := parsedURL.User.Password()
		opts.SetUsername(username)
		opts.SetPassword(password)
		if u, err := url.Parse(brokerURL); err == nil {
			u.User = nil
			brokerURL = u.String()
		}
	}

	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID(deviceID))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetWill(AvailabilityTopic(deviceID), "offline", 1, true)

	return opts, nil
}

func clientID(deviceID string) string { return fmt.Sprintf("apcups-hass-%s", deviceID) }

// Publish publishes a message to the specified topic
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	qos := byte(1) // At least once delivery
	token := c.client.Publish(topic, qos, retained, payload)

	// Avoid potential deadlocks: wait for completion with a timeout instead of indefinitely.
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to topic %s timed out after %s", topic, publishTimeout)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.WithFields(logrus.Fields{
		"topic":    topic,
		"size":     len(payload),
		"retained": retained,
	}).Debug("Published MQTT message")

	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect marks the device offline and disconnects the client.
func (c *Client) Disconnect(quiesce uint) {
	if err := c.Publish(AvailabilityTopic(c.deviceID), []byte("offline"), true); err != nil {
		c.logger.WithError(err).Debug("MQTT offline publish failed")
	}
	c.client.Disconnect(quiesce)
	c.logger.Debug("MQTT client disconnected")
}

// cleanURL removes credentials from URL for logging
func cleanURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if parsed.User != nil {
		parsed.User = url.UserPassword("***", "***")
	}

	return parsed.String()
}

// BaseTopic returns the base topic for a device
func BaseTopic(deviceID string) string {
	return BuildCleanTopic(TopicRoot, deviceID)
}

// StateTopic returns the JSON state topic for a device
func StateTopic(deviceID string) string {
	return BaseTopic(deviceID) + "/state"
}

// AvailabilityTopic returns the availability topic for a device
func AvailabilityTopic(deviceID string) string {
	return BaseTopic(deviceID) + "/availability"
}

// DiscoveryTopic returns the Home Assistant discovery topic
func DiscoveryTopic(prefix, entityType, deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s_%s/%s/config", prefix, entityType, TopicRoot, BuildCleanTopic(deviceID), entityID)
}

// BuildCleanTopic ensures topic follows MQTT standards
func BuildCleanTopic(parts ...string) string {
	var cleanParts []string
	for _, part := range parts {
		// Replace invalid characters
		clean := strings.ReplaceAll(part, " ", "_")
		clean = strings.ReplaceAll(clean, "+", "plus")
		clean = strings.ReplaceAll(clean, "#", "hash")
		clean = strings.ToLower(clean)
		cleanParts = append(cleanParts, clean)
	}
	return strings.Join(cleanParts, "/")
}
