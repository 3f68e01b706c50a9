package transmission

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jkaberg/apcups-hass/internal/nis"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic    string
	payload  string
	retained bool
}

type fakePublisher struct {
	msgs         []published
	disconnected bool
	failTopic    string
}

func (f *fakePublisher) Publish(topic string, payload []byte, retained bool) error {
	if topic == f.failTopic {
		return errors.New("broker said no")
	}
	f.msgs = append(f.msgs, published{topic, string(payload), retained})
	return nil
}

func (f *fakePublisher) IsConnected() bool { return !f.disconnected }

func (f *fakePublisher) byTopic(topic string) []published {
	var out []published
	for _, m := range f.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func newTx(pub *fakePublisher) *MQTTTransmitter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewMQTTTransmitter(pub, "rack", "homeassistant", "test", l)
}

func goodSnapshot() nis.Snapshot {
	s := nis.Snapshot{
		Present:    nis.ExpectedFields.Add(nis.Charging),
		CapturedAt: time.Date(2019, 5, 4, 10, 11, 12, 0, time.UTC),
	}
	s.Values[nis.LineVoltage] = 230
	s.Values[nis.BatteryCharge] = 95
	s.Values[nis.Online] = 1
	s.Values[nis.LoadPercent] = 12
	s.Values[nis.TimeLeft] = 45
	s.Values[nis.Charging] = 1
	return s
}

func TestTransmit_StatePayload(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, newTx(pub).Transmit(goodSnapshot()))

	state := pub.byTopic("apc_ups/rack/state")
	require.Len(t, state, 1)
	require.True(t, state[0].retained)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(state[0].payload), &got))
	require.Equal(t, map[string]interface{}{
		"line_voltage":   float64(230),
		"battery_charge": float64(95),
		"load_percent":   float64(12),
		"time_left":      float64(45),
		"online":         true,
		"charging":       true,
		"captured_at":    "2019-05-04T10:11:12Z",
	}, got)

	avail := pub.byTopic("apc_ups/rack/availability")
	require.Len(t, avail, 1)
	require.Equal(t, "online", avail[0].payload)
}

func TestTransmit_DiscoveryOnce(t *testing.T) {
	pub := &fakePublisher{}
	tx := newTx(pub)
	require.NoError(t, tx.Transmit(goodSnapshot()))
	require.NoError(t, tx.Transmit(goodSnapshot()))

	cfgs := pub.byTopic("homeassistant/binary_sensor/apc_ups_rack/charging/config")
	require.Len(t, cfgs, 1)

	var cfg HADiscoveryConfig
	require.NoError(t, json.Unmarshal([]byte(cfgs[0].payload), &cfg))
	require.Equal(t, "rack_charging", cfg.UniqueID)
	require.Equal(t, "battery_charging", cfg.DeviceClass)
	require.Equal(t, "apc_ups/rack/state", cfg.StateTopic)
	require.Equal(t, "ON", cfg.PayloadOn)

	require.Len(t, pub.byTopic("homeassistant/sensor/apc_ups_rack/line_voltage/config"), 1)
}

func TestTransmit_DiscoveryRetriedAfterFailure(t *testing.T) {
	topic := "homeassistant/sensor/apc_ups_rack/time_left/config"
	pub := &fakePublisher{failTopic: topic}
	tx := newTx(pub)
	require.NoError(t, tx.Transmit(goodSnapshot()))
	require.Empty(t, pub.byTopic(topic))

	pub.failTopic = ""
	require.NoError(t, tx.Transmit(goodSnapshot()))
	require.Len(t, pub.byTopic(topic), 1)
}

func TestTransmit_Rejects(t *testing.T) {
	pub := &fakePublisher{disconnected: true}
	require.Error(t, newTx(pub).Transmit(goodSnapshot()))

	pub = &fakePublisher{}
	require.Error(t, newTx(pub).Transmit(nis.Snapshot{}))
	require.Empty(t, pub.msgs)

	pub = &fakePublisher{failTopic: "apc_ups/rack/state"}
	require.Error(t, newTx(pub).Transmit(goodSnapshot()))
}

func TestPublishAvailability(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, newTx(pub).PublishAvailability(false))
	require.Equal(t, []published{{"apc_ups/rack/availability", "offline", true}}, pub.msgs)
}
