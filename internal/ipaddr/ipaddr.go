// Package ipaddr normalizes raw client addresses into a canonical textual
// form suitable for storage.
package ipaddr

import (
	"net/netip"
	"strings"
)

// DefaultAddr is stored when a raw address cannot be parsed. A malformed IP
// must never block ingestion of otherwise-valid telemetry.
const DefaultAddr = "0.0.0.0"

// Normalize parses a raw header or connection-derived address, possibly a
// comma-separated forwarding chain, and returns its canonical form. The
// second return value is false when parsing failed and DefaultAddr was
// substituted, so callers can log the raw value. Normalize never fails.
func Normalize(raw string) (string, bool) {
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	// IPv4-mapped IPv6 addresses store as plain IPv4.
	first = strings.TrimPrefix(first, "::ffff:")

	addr, err := netip.ParseAddr(first)
	if err != nil {
		// A bracketed or port-qualified form still resolves to a usable address.
		if ap, apErr := netip.ParseAddrPort(first); apErr == nil {
			addr = ap.Addr()
		} else {
			return DefaultAddr, false
		}
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	return addr.String(), true
}
