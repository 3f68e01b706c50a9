package nis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jkaberg/apcups-hass/internal/netutil"
	"github.com/sirupsen/logrus"
)

// DefaultConnectTimeout bounds each connect attempt when none is configured.
const DefaultConnectTimeout = 3 * time.Second

// Resolver looks up addresses for a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// DialFunc opens a stream connection. (*net.Dialer).DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialerConfig holds the connection parameters of a Dialer.
type DialerConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Decoding       LengthDecoding

	// Resolver and Dial default to the net package when nil.
	Resolver Resolver
	Dial     DialFunc
}

// Dialer resolves a NIS host and hands back a connected Transport.
type Dialer struct {
	cfg    DialerConfig
	logger *logrus.Logger
}

// NewDialer fills in defaults for cfg.
func NewDialer(cfg DialerConfig, logger *logrus.Logger) *Dialer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = ReadTimeout
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	if cfg.Dial == nil {
		d := &net.Dialer{}
		cfg.Dial = d.DialContext
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// Connect resolves host to IPv4 addresses and tries each in order until one
// accepts. A resolution failure wraps ErrResolution; running out of
// addresses wraps ErrConnect. On success the caller owns the Transport.
func (d *Dialer) Connect(ctx context.Context, host string, port int) (*Transport, error) {
	ips, err := d.cfg.Resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, wrap(ErrResolution, err)
	}
	if len(ips) == 0 {
		return nil, wrap(ErrResolution, fmt.Errorf("no IPv4 address for %q", host))
	}

	scope := "remote"
	if netutil.IsLocalOrPrivateHost(host) {
		scope = "local"
	}

	var lastErr error
	for _, ip := range ips {
		addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))
		d.logger.WithFields(logrus.Fields{
			"host":  host,
			"addr":  addr,
			"scope": scope,
		}).Debug("nis: connecting")

		conn, err := d.dialOne(ctx, addr)
		if err == nil && conn == nil {
			err = fmt.Errorf("dial %s: no connection returned", addr)
		}
		if err != nil {
			d.logger.WithField("addr", addr).WithError(err).Debug("nis: connect failed, trying next address")
			lastErr = err
			continue
		}
		tr := NewTransport(conn,
			WithReadTimeout(d.cfg.ReadTimeout),
			WithLengthDecoding(d.cfg.Decoding),
		)
		d.logger.WithField("peer", tr.RemoteAddr()).Debug("nis: connected")
		return tr, nil
	}
	return nil, wrap(ErrConnect, lastErr)
}

func (d *Dialer) dialOne(ctx context.Context, addr string) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()
	return d.cfg.Dial(dctx, "tcp4", addr)
}
