package nis

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Connector opens a Transport to a NIS server. *Dialer satisfies it.
type Connector interface {
	Connect(ctx context.Context, host string, port int) (*Transport, error)
}

// Client polls one apcupsd NIS server and keeps the last good status.
//
// FetchOnce calls are serialized: a second caller waits for the cycle in
// flight to finish. Current, IsUsable and Dump never block on a fetch.
type Client struct {
	host    string
	port    int
	conn    Connector
	builder *StatusBuilder
	store   *Store
	logger  *logrus.Logger

	mu sync.Mutex
}

// NewClient creates a client for host:port that connects through conn.
func NewClient(host string, port int, conn Connector, logger *logrus.Logger) *Client {
	store := NewStore()
	return &Client{
		host:    host,
		port:    port,
		conn:    conn,
		builder: NewStatusBuilder(store, logger),
		store:   store,
		logger:  logger,
	}
}

// FetchOnce runs one resolve, connect, exchange and publish cycle. The
// socket is closed before it returns, whatever the outcome.
func (c *Client) FetchOnce(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tr, err := c.conn.Connect(ctx, c.host, c.port)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := tr.Close(); cerr != nil {
			c.logger.WithError(cerr).Debug("nis: close failed")
		}
	}()

	return c.builder.RunFetchCycle(tr)
}

// Current returns the last published snapshot.
func (c *Client) Current() Snapshot { return c.store.Current() }

// IsUsable reports whether at least one complete cycle has succeeded.
func (c *Client) IsUsable() bool { return c.store.IsUsable() }

// Dump writes the current snapshot in a human readable form.
func (c *Client) Dump(w io.Writer) { Dump(w, c.store.Current()) }

