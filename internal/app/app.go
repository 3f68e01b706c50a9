package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jkaberg/apcups-hass/internal/bus"
	"github.com/jkaberg/apcups-hass/internal/config"
	"github.com/jkaberg/apcups-hass/internal/domain"
	"github.com/jkaberg/apcups-hass/internal/nis"
	"github.com/jkaberg/apcups-hass/internal/transmission"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// StatusSource fetches UPS status. *nis.Client satisfies it.
type StatusSource interface {
	FetchOnce(ctx context.Context) error
	Current() nis.Snapshot
}

// Sink receives snapshots for publication. *transmission.MQTTTransmitter
// satisfies it.
type Sink interface {
	transmission.Transmitter
}

// Notifier is told about line/battery transitions. *notify.HookNotifier
// satisfies it.
type Notifier interface {
	Notify(event domain.PowerEvent, snap nis.Snapshot)
}

// schedulerTick is how often the scheduler checks whether to transmit.
var schedulerTick = time.Second

// Run polls source and forwards snapshots to sink until ctx is cancelled.
// sink and notifier may be nil.
func Run(
	parentCtx context.Context,
	cfg *config.Config,
	source StatusSource,
	sink Sink,
	notifier Notifier,
	logger *logrus.Logger,
) {
	messageBus := bus.New()
	sub := messageBus.Subscribe()
	grp, ctx := errgroup.WithContext(parentCtx)

	// Collector -----------------------------------------------------------
	grp.Go(func() error {
		defer messageBus.Close()
		c := &collector{source: source, notifier: notifier, bus: messageBus, logger: logger}

		c.poll(ctx)
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				c.poll(ctx)
			}
		}
	})

	// Scheduler -----------------------------------------------------------
	if sink != nil {
		grp.Go(func() error {
			s := &scheduler{cfg: cfg, sink: sink, logger: logger}
			s.lastSent = time.Now().Add(-cfg.MQTTInterval)
			s.lastForced = time.Now()

			ticker := time.NewTicker(schedulerTick)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case snap, ok := <-sub:
					if !ok {
						return nil
					}
					s.latest = &snap
				case now := <-ticker.C:
					s.tick(now)
				}
			}
		})
	}

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.WithError(err).Warn("app: background group exited")
	}
}

// collector runs one fetch per tick. Fetches never overlap because poll
// is only called from the collector goroutine.
type collector struct {
	source   StatusSource
	notifier Notifier
	bus      *bus.Bus
	logger   *logrus.Logger

	prev     *nis.Snapshot
	failures int
}

func (c *collector) poll(ctx context.Context) {
	err := c.source.FetchOnce(ctx)
	if err != nil {
		c.failures++
		entry := c.logger.WithError(err).WithFields(logrus.Fields{
			"kind":     nis.Kind(err),
			"failures": c.failures,
		})
		switch {
		case !nis.Retryable(err):
			entry.Error("collector: cannot resolve UPS host, will retry")
		case errors.Is(err, nis.ErrFrameTooBig):
			entry.Error("collector: daemon sent an oversized frame")
		default:
			entry.Warn("collector: fetch failed")
		}
		return
	}
	if c.failures > 0 {
		c.logger.WithField("failures", c.failures).Info("collector: fetch recovered")
		c.failures = 0
	}

	snap := c.source.Current()
	if c.notifier != nil {
		if ev := domain.Transition(c.prev, &snap); ev != domain.PowerNone {
			c.logger.WithFields(logrus.Fields{
				"event":   ev,
				"bcharge": snap.Value(nis.BatteryCharge),
			}).Warn("collector: power source changed")
			c.notifier.Notify(ev, snap)
		}
	}
	c.prev = &snap
	c.bus.Publish(snap)
}

type scheduler struct {
	cfg    *config.Config
	sink   Sink
	logger *logrus.Logger

	latest     *nis.Snapshot
	lastSnap   *nis.Snapshot
	lastSent   time.Time
	lastForced time.Time
	stale      bool
}

func (s *scheduler) tick(now time.Time) {
	if s.latest == nil {
		return
	}

	if s.cfg.StaleAfter > 0 && now.Sub(s.latest.CapturedAt) > s.cfg.StaleAfter {
		if !s.stale {
			s.logger.WithField("age", now.Sub(s.latest.CapturedAt).Round(time.Second)).Warn("scheduler: UPS data is stale")
			if err := s.sink.PublishAvailability(false); err != nil {
				s.logger.WithError(err).Warn("scheduler: availability publish failed")
				return
			}
			s.stale = true
		}
		return
	}

	if now.Sub(s.lastSent) < s.cfg.MQTTInterval {
		return
	}
	// paho reconnects on its own; wait for it rather than logging a failure
	// every tick.
	if !s.sink.IsConnected() {
		s.logger.Debug("scheduler: sink not connected, holding snapshot")
		return
	}
	forced := s.cfg.ForceUpdateInterval > 0 && now.Sub(s.lastForced) >= s.cfg.ForceUpdateInterval
	if !forced && !s.stale && !domain.Changed(s.lastSnap, s.latest) {
		return
	}

	if err := s.transmit(*s.latest); err != nil {
		s.logger.WithError(err).Warn("scheduler: transmit failed")
		// Retry on the next tick even if the data does not change, but
		// still respect the configured interval.
		s.lastSnap = nil
		s.lastSent = now
		return
	}
	s.lastSnap = s.latest
	s.lastSent = now
	s.stale = false
	if forced {
		s.lastForced = now
	}
}

func (s *scheduler) transmit(snap nis.Snapshot) error {
	if err := s.sink.Transmit(snap); err != nil {
		return fmt.Errorf("MQTT transmit failed: %w", err)
	}
	return nil
}
