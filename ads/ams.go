// Package ads implements the client side of the Beckhoff ADS protocol
// (Automation Device Specification) for reading symbols from TwinCAT PLCs
// over AMS/TCP.
package ads

import (
	"fmt"
	"strconv"
	"strings"
)

// NetID is a 6-byte AMS network ID, written as "x.x.x.x.x.x".
type NetID [6]byte

// ParseNetID parses an AMS Net ID string (e.g. "192.168.1.100.1.1").
func ParseNetID(s string) (NetID, error) {
	var id NetID

	if s == "" {
		return id, fmt.Errorf("empty AMS Net ID")
	}

	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return id, fmt.Errorf("invalid AMS Net ID %q: expected x.x.x.x.x.x", s)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return id, fmt.Errorf("invalid AMS Net ID component %q: %w", part, err)
		}
		id[i] = byte(val)
	}

	return id, nil
}

// NetIDFromIP derives a Net ID from an IPv4 address using the common
// TwinCAT convention IP.1.1 (e.g. 192.168.1.100 -> 192.168.1.100.1.1).
func NetIDFromIP(ip string) (NetID, error) {
	var id NetID

	if idx := strings.Index(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return id, fmt.Errorf("invalid IPv4 address %q", ip)
	}

	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return id, fmt.Errorf("invalid IPv4 address component %q: %w", part, err)
		}
		id[i] = byte(val)
	}

	id[4] = 1
	id[5] = 1

	return id, nil
}

// String returns the dotted form of the Net ID.
func (n NetID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d", n[0], n[1], n[2], n[3], n[4], n[5])
}

// IsZero reports whether the Net ID is unset.
func (n NetID) IsZero() bool {
	return n == NetID{}
}
