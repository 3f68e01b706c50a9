package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLocalOrPrivateHost(t *testing.T) {
	cases := map[string]bool{
		"localhost":        true,
		"127.0.0.1":        true,
		"::1":              true,
		"ups":              true,
		"nas.local":        true,
		"pi.lan":           true,
		"rack.home.arpa":   true,
		"10.1.2.3":         true,
		"172.20.0.5":       true,
		"172.32.0.5":       false,
		"192.168.1.10":     true,
		"169.254.10.1":     true,
		"fd12::1":          true,
		"fe80::1":          true,
		"8.8.8.8":          false,
		"ups.example.com":  false,
		"UPS.EXAMPLE.COM.": false,
	}
	for host, want := range cases {
		assert.Equal(t, want, IsLocalOrPrivateHost(host), host)
	}
}
