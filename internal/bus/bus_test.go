package bus

import (
	"testing"

	"github.com/jkaberg/apcups-hass/internal/nis"
	"github.com/stretchr/testify/require"
)

func snap(charge int) nis.Snapshot {
	var s nis.Snapshot
	s.Values[nis.BatteryCharge] = charge
	return s
}

func TestBus_FanOut(t *testing.T) {
	b := New()
	a, c := b.Subscribe(), b.Subscribe()

	b.Publish(snap(50))
	require.Equal(t, 50, (<-a).Value(nis.BatteryCharge))
	require.Equal(t, 50, (<-c).Value(nis.BatteryCharge))
}

func TestBus_SlowSubscriberSkips(t *testing.T) {
	b := New()
	ch := b.Subscribe()

	b.Publish(snap(1))
	b.Publish(snap(2)) // buffer full, dropped for this subscriber

	require.Equal(t, 1, (<-ch).Value(nis.BatteryCharge))
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot %v", s)
	default:
	}
}

func TestBus_Close(t *testing.T) {
	b := New()
	ch := b.Subscribe()
	b.Close()
	b.Close()
	b.Publish(snap(1))

	_, ok := <-ch
	require.False(t, ok)

	_, ok = <-b.Subscribe()
	require.False(t, ok)
}
