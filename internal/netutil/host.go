package netutil

import (
	"net"
	"strings"
)

// IsLocalOrPrivateHost reports whether host is localhost, a .local/.lan
// style name, or an address in a loopback, private or link-local range.
// It does not resolve names.
func IsLocalOrPrivateHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".lan") || strings.HasSuffix(host, ".home.arpa") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Bare single-label names ("nas", "ups") only resolve on the LAN.
		return !strings.Contains(host, ".")
	}
	return isPrivateIP(ip)
}

// isPrivateIP checks if an IP address is in a private network range
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}

	private := []string{
		"10.0.0.0/8",     // Class A private
		"172.16.0.0/12",  // Class B private
		"192.168.0.0/16", // Class C private
		"fc00::/7",       // IPv6 unique local
	}
	for _, cidr := range private {
		_, network, _ := net.ParseCIDR(cidr)
		if network != nil && network.Contains(ip) {
			return true
		}
	}
	return false
}
