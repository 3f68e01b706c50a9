package nis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	// MaxFrameSize is the exclusive upper bound on a response frame length.
	MaxFrameSize = 2048
	// ReadTimeout bounds every receive on the NIS socket.
	ReadTimeout = time.Second
	// StatusCommand is the only request this client issues.
	StatusCommand = "status"
)

// LengthDecoding selects how the 2-byte frame prefix is turned into a length.
type LengthDecoding int

const (
	// BigEndianLength decodes the prefix as a network-order uint16, which is
	// what apcupsd writes.
	BigEndianLength LengthDecoding = iota
	// LegacyLength reproduces the (hi<<1)|lo decoding of the wmapcups dockapp.
	// It only agrees with BigEndianLength for frames shorter than 256 bytes
	// and only exists for side-by-side comparison against that build.
	LegacyLength
)

func (d LengthDecoding) decode(prefix [2]byte) int {
	if d == LegacyLength {
		return int(prefix[0])<<1 | int(prefix[1])
	}
	return int(binary.BigEndian.Uint16(prefix[:]))
}

func (d LengthDecoding) String() string {
	if d == LegacyLength {
		return "legacy"
	}
	return "big-endian"
}

// Transport owns one connected NIS socket and speaks the length-prefixed
// framing on it. It is not safe for concurrent use.
type Transport struct {
	conn        net.Conn
	readTimeout time.Duration
	decoding    LengthDecoding
	buf         [MaxFrameSize]byte
}

// TransportOption tweaks a Transport at construction.
type TransportOption func(*Transport)

// WithReadTimeout overrides ReadTimeout. Zero disables deadlines.
func WithReadTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.readTimeout = d }
}

// WithLengthDecoding overrides the frame prefix decoding.
func WithLengthDecoding(d LengthDecoding) TransportOption {
	return func(t *Transport) { t.decoding = d }
}

// NewTransport wraps an already connected stream. The transport takes
// ownership of conn; Close releases it.
func NewTransport(conn net.Conn, opts ...TransportOption) *Transport {
	t := &Transport{conn: conn, readTimeout: ReadTimeout}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Close closes the underlying socket.
func (t *Transport) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// RemoteAddr returns the peer address, or "" when unknown.
func (t *Transport) RemoteAddr() string {
	if t == nil || t.conn == nil || t.conn.RemoteAddr() == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}

// SendRequest writes one request frame carrying cmd.
func (t *Transport) SendRequest(cmd string) error {
	if len(cmd) == 0 || len(cmd) >= MaxFrameSize {
		return wrap(ErrSend, fmt.Errorf("command length %d out of range", len(cmd)))
	}
	msg := make([]byte, 2+len(cmd))
	binary.BigEndian.PutUint16(msg[:2], uint16(len(cmd)))
	copy(msg[2:], cmd)

	if t.readTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return wrap(ErrSend, err)
		}
	}
	if _, err := t.conn.Write(msg); err != nil {
		return wrap(ErrSend, err)
	}
	return nil
}

// Next returns the payload of the next response frame. It returns io.EOF
// once the zero-length terminator frame has been read. The returned slice
// is only valid until the following call.
func (t *Transport) Next() ([]byte, error) {
	var prefix [2]byte
	if err := t.readFull(prefix[:]); err != nil {
		return nil, err
	}

	size := t.decoding.decode(prefix)
	switch {
	case size == 0:
		return nil, io.EOF
	case size >= MaxFrameSize:
		return nil, wrap(ErrFrameTooBig, fmt.Errorf("announced %d bytes, limit %d", size, MaxFrameSize-1))
	}

	line := t.buf[:size]
	if err := t.readFull(line); err != nil {
		return nil, err
	}
	return line, nil
}

func (t *Transport) readFull(p []byte) error {
	if t.readTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return wrap(ErrReceive, err)
		}
	}
	if _, err := io.ReadFull(t.conn, p); err != nil {
		return classifyReadErr(err)
	}
	return nil
}

func classifyReadErr(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return wrap(ErrReceiveTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return wrap(ErrReceiveTimeout, err)
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return wrap(ErrReceive, err)
}
