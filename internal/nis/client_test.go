package nis

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeNIS is a TCP listener answering every status request with the next
// reply from replies (the last one repeats).
type fakeNIS struct {
	ln      net.Listener
	replies [][]byte
	served  atomic.Int32
	wg      sync.WaitGroup
}

func startFakeNIS(t *testing.T, replies ...[]byte) *fakeNIS {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeNIS{ln: ln, replies: replies}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(func() {
		ln.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeNIS) serve() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		n := int(f.served.Add(1)) - 1
		if n >= len(f.replies) {
			n = len(f.replies) - 1
		}
		req := make([]byte, 8)
		if _, err := io.ReadFull(conn, req); err == nil && string(req) == "\x00\x06status" {
			_, _ = conn.Write(f.replies[n])
		}
		// Wait for the client to hang up so we can see it closed the socket.
		_, _ = io.Copy(io.Discard, conn)
		conn.Close()
	}
}

func (f *fakeNIS) port(t *testing.T) int {
	_, p, err := net.SplitHostPort(f.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return port
}

func newTestClient(t *testing.T, f *fakeNIS) *Client {
	logger := testLogger()
	return NewClient("127.0.0.1", f.port(t), NewDialer(DialerConfig{}, logger), logger)
}

func TestClient_FetchOnce(t *testing.T) {
	f := startFakeNIS(t, reply(goodReply...))
	c := newTestClient(t, f)

	require.False(t, c.IsUsable())
	require.NoError(t, c.FetchOnce(context.Background()))
	require.True(t, c.IsUsable())

	snap := c.Current()
	require.Equal(t, 230, snap.Value(LineVoltage))
	require.True(t, snap.Charging())
}

func TestClient_StaleDataSurvivesBadCycle(t *testing.T) {
	partial := reply(goodReply[:4]...)
	f := startFakeNIS(t, reply(goodReply...), partial)
	c := newTestClient(t, f)

	require.NoError(t, c.FetchOnce(context.Background()))
	before := c.Current()

	err := c.FetchOnce(context.Background())
	require.ErrorIs(t, err, ErrIncompleteFields)
	require.Equal(t, before, c.Current())
	require.True(t, c.IsUsable())
}

func TestClient_OversizedFrame(t *testing.T) {
	f := startFakeNIS(t, []byte{0xff, 0xff})
	c := newTestClient(t, f)

	err := c.FetchOnce(context.Background())
	require.ErrorIs(t, err, ErrFrameTooBig)
	require.False(t, c.IsUsable())
}

func TestClient_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	logger := testLogger()
	c := NewClient("127.0.0.1", addr.Port, NewDialer(DialerConfig{}, logger), logger)
	err = c.FetchOnce(context.Background())
	require.ErrorIs(t, err, ErrConnect)
}

func TestClient_ConcurrentFetchAndRead(t *testing.T) {
	f := startFakeNIS(t, reply(goodReply...))
	c := newTestClient(t, f)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.FetchOnce(context.Background())
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := c.Current()
				if s.Usable() && s.Value(LineVoltage) != 230 {
					errs <- io.ErrUnexpectedEOF
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 4, f.served.Load())
}

func TestClient_Dump(t *testing.T) {
	f := startFakeNIS(t, reply(goodReply...))
	c := newTestClient(t, f)
	require.NoError(t, c.FetchOnce(context.Background()))

	var buf bytes.Buffer
	c.Dump(&buf)
	out := buf.String()
	require.Contains(t, out, "Line Voltage [0]: 230")
	require.Contains(t, out, "Online       [3]: True")
	require.Contains(t, out, "Charging     [2]: True")
}
