package ratelimit

import (
	"net"
	"net/netip"
	"strings"
)

// ClientID returns the limiter key for a request: the user id when
// authenticated, else the normalized remote address.
func ClientID(userID, remoteAddr string) string {
	if userID != "" {
		return "user:" + userID
	}
	return "ip:" + NormalizeAddr(remoteAddr)
}

// NormalizeAddr strips the port and zone, and unwraps IPv4-mapped IPv6
// addresses. Unparseable input is returned lower-cased and trimmed.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return strings.ToLower(host)
	}
	return ip.Unmap().WithZone("").String()
}
