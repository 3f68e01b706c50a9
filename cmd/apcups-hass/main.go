package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jkaberg/apcups-hass/internal/app"
	"github.com/jkaberg/apcups-hass/internal/config"
	"github.com/jkaberg/apcups-hass/internal/mqtt"
	"github.com/jkaberg/apcups-hass/internal/nis"
	"github.com/jkaberg/apcups-hass/internal/notify"
	"github.com/jkaberg/apcups-hass/internal/transmission"
	"github.com/sirupsen/logrus"
)

// version is injected at build time via ldflags
var version = "dev"

func main() {
	cfg, debugMode := parseFlags()
	logger := setupLogger(cfg.Verbose || debugMode)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	client := newNISClient(cfg, logger)

	// Debug path ------------------------------------------------------------------
	if debugMode {
		os.Exit(runDebugMode(client, cfg, logger))
	}

	logFields := logrus.Fields{
		"version":   version,
		"device_id": cfg.DeviceID,
		"nis":       fmt.Sprintf("%s:%d", cfg.NISHost, cfg.NISPort),
		"poll":      cfg.PollInterval,
		"mqtt_int":  cfg.MQTTInterval,
	}
	if cfg.ForceUpdateInterval > 0 {
		logFields["force_update_int"] = cfg.ForceUpdateInterval
	}
	if cfg.LegacyFraming {
		logFields["framing"] = nis.LegacyLength.String()
	}
	logger.WithFields(logFields).Info("Starting apcups-hass")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("Shutdown signal received")
		cancel()
	}()

	// Transmitters ---------------------------------------------------------------
	var sink app.Sink
	if cfg.HasMQTT() {
		mqttClient, err := mqtt.NewClient(cfg.MQTTUrl, cfg.DeviceID, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MQTT client")
		}
		defer mqttClient.Disconnect(250)
		sink = transmission.NewMQTTTransmitter(mqttClient, cfg.DeviceID, cfg.DiscoveryPrefix, version, logger)
		logger.Info("MQTT transmitter ready")
	} else {
		logger.Warn("No MQTT broker configured; UPS status will only be logged")
	}

	var notifier app.Notifier
	if cfg.HasHook() {
		notifier = notify.NewHookNotifier(cfg.HookCommand, cfg.HookTimeout, logger)
		logger.WithField("command", cfg.HookCommand).Info("Power event hook ready")
	}

	// Run application ------------------------------------------------------------
	app.Run(ctx, cfg, client, sink, notifier, logger)

	logger.Info("apcups-hass stopped")
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags() (*config.Config, bool) {
	// The config file has to be known before the remaining defaults are read.
	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	for i, a := range os.Args[1:] {
		switch {
		case (a == "-config" || a == "--config") && i+2 < len(os.Args):
			configPath = os.Args[i+2]
		case strings.HasPrefix(a, "-config="), strings.HasPrefix(a, "--config="):
			configPath = a[strings.Index(a, "=")+1:]
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "apcups-hass: %v\n", err)
		os.Exit(2)
	}

	showVersion := flag.Bool("version", false, "Show version and exit")
	debug := flag.Bool("debug", false, "Fetch status once, dump it and exit")
	flag.String("config", configPath, "YAML config file")

	flag.StringVar(&cfg.NISHost, "host", cfg.NISHost, "apcupsd NIS host")
	flag.IntVar(&cfg.NISPort, "port", cfg.NISPort, "apcupsd NIS port")
	flag.BoolVar(&cfg.LegacyFraming, "legacy-framing", cfg.LegacyFraming, "Decode frame lengths like the wmapcups dockapp")
	flag.StringVar(&cfg.MQTTUrl, "mqtt-url", cfg.MQTTUrl, "MQTT URL")
	flag.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "Device identifier")
	flag.StringVar(&cfg.DiscoveryPrefix, "discovery-prefix", cfg.DiscoveryPrefix, "HA discovery prefix")
	flag.StringVar(&cfg.HookCommand, "hook", cfg.HookCommand, "Command to run on power source changes")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose logging")

	flag.Func("poll-interval", "Status poll interval (e.g. 10s)", durationFlag(&cfg.PollInterval))
	flag.Func("mqtt-interval", "MQTT interval (e.g. 60s)", durationFlag(&cfg.MQTTInterval))
	flag.Func("force-update-interval", "Publish even if unchanged at this interval (e.g. 10m, 0 = disabled)", durationFlag(&cfg.ForceUpdateInterval))
	flag.Func("stale-after", "Mark the UPS unavailable after this long without data", durationFlag(&cfg.StaleAfter))

	flag.Parse()

	if *showVersion {
		fmt.Printf("apcups-hass %s\n", version)
		os.Exit(0)
	}

	return cfg, *debug
}

func durationFlag(dst *time.Duration) func(string) error {
	return func(s string) error {
		d, err := config.ParseDuration(s)
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("negative duration %s", d)
		}
		*dst = d
		return nil
	}
}

func setupLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

func newNISClient(cfg *config.Config, logger *logrus.Logger) *nis.Client {
	decoding := nis.BigEndianLength
	if cfg.LegacyFraming {
		decoding = nis.LegacyLength
	}
	dialer := nis.NewDialer(nis.DialerConfig{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		Decoding:       decoding,
	}, logger)
	return nis.NewClient(cfg.NISHost, cfg.NISPort, dialer, logger)
}

func runDebugMode(client *nis.Client, cfg *config.Config, logger *logrus.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout+10*cfg.ReadTimeout)
	defer cancel()

	if err := client.FetchOnce(ctx); err != nil {
		logger.WithError(err).WithField("kind", nis.Kind(err)).Error("Debug fetch failed")
		return 1
	}
	client.Dump(os.Stdout)
	return 0
}
