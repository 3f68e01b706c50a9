package nis

import (
	"encoding/binary"
	"io"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// frame encodes s the way apcupsd does: big-endian length, then payload.
func frame(s string) []byte {
	b := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(b[:2], uint16(len(s)))
	copy(b[2:], s)
	return b
}

func reply(lines ...string) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, frame(l)...)
	}
	return append(out, 0, 0)
}

var goodReply = []string{
	"APC      : 001,036,0869",
	"DATE     : 2019-05-04 10:11:12 +0530",
	"LINEV    : 230.0 Volts",
	"BCHARGE  : 95.0 Percent",
	"STATUS   : ONLINE",
	"LOADPCT  : 12.0 Percent",
	"TIMELEFT : 45.0 Minutes",
	"END APC  : 2019-05-04 10:11:13 +0530",
}
