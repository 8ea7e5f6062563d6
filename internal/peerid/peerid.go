// Package peerid converts between a Bluetooth device address as people write
// it (AA:BB:CC:DD:EE:FF) and the child node name BlueZ uses for the device
// under its adapter (dev_AA_BB_CC_DD_EE_FF).
package peerid

import "strings"

const (
	// Prefix starts every device node name.
	Prefix = "dev_"

	sep     = ":"
	pathSep = "_"
)

// Encode returns the child node name for id. The octets are not validated;
// a malformed id yields a name no device will ever have.
func Encode(id string) string {
	return Prefix + strings.ReplaceAll(id, sep, pathSep)
}

// Decode is the inverse of Encode for names BlueZ produces.
func Decode(name string) string {
	if len(name) < len(Prefix) {
		return ""
	}
	return strings.ReplaceAll(name[len(Prefix):], pathSep, sep)
}

// IsDevice reports whether a child node name looks like a device node.
func IsDevice(name string) bool {
	return strings.HasPrefix(name, Prefix)
}

// Valid reports whether id is six colon separated hex octets.
func Valid(id string) bool {
	parts := strings.Split(id, sep)
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 || !isHex(p[0]) || !isHex(p[1]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
