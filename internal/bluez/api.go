// Package bluez controls a local Bluetooth adapter through BlueZ over the
// system D-Bus: adapter properties, a guarded discovery session, and lookup of
// the device objects BlueZ creates under the adapter as peers are found.
//
// BlueZ is stateless from our side. Every read is a fresh round trip and the
// discovery state is always taken from the adapter's live Discovering
// property, never from a local flag. Two consequences callers should know:
//   - StartDiscovery and StopDiscovery check their precondition and then act
//     without holding a lock, so concurrent calls can race; BlueZ itself
//     rejects the loser with an org.bluez.Error.* reply.
//   - WaitDevice discovers new devices by polling the adapter's children
//     rather than subscribing to InterfacesAdded.
//
// Thread-safety: Adapter and Device hold no mutable state and are safe for
// concurrent use. Bluetooth.Close is safe to call concurrently and is
// idempotent.
package bluez

import (
	"errors"
	"time"
)

const (
	bluezService        = "org.bluez"
	bluezRoot           = "/org/bluez"
	adapterIface        = "org.bluez.Adapter1"
	deviceIface         = "org.bluez.Device1"
	profileManagerIface = "org.bluez.ProfileManager1"

	// DefaultAdapterID is the adapter BlueZ registers first.
	DefaultAdapterID = "hci0"

	// DefaultTransport is the discovery transport used when none is given.
	DefaultTransport = "le"

	// DefaultWaitTimeout bounds WaitDevice when WaitOptions.Timeout is zero.
	DefaultWaitTimeout = 120 * time.Second
	// DefaultPollInterval is the WaitDevice cadence when WaitOptions.PollInterval is zero.
	DefaultPollInterval = time.Second
)

// Errors raised by this package itself. Transport failures are returned
// wrapped, never mapped onto these.
var (
	ErrDiscoveryInProgress = errors.New("bluez: discovery already in progress")
	ErrNoDiscovery         = errors.New("bluez: no discovery started")
	ErrWrongParameter      = errors.New("bluez: wrong parameter")
	ErrDeviceNotFound      = errors.New("bluez: device not found")
	ErrAdapterNotFound     = errors.New("bluez: adapter not found")
	ErrTimeout             = errors.New("bluez: operation timed out")
	ErrClosed              = errors.New("bluez: closed")
)

// DiscoveryState is the adapter's scan state as BlueZ reports it.
type DiscoveryState int

const (
	StateIdle DiscoveryState = iota
	StateDiscovering
)

func (s DiscoveryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	default:
		return "unknown"
	}
}

// DiscoveryOptions feeds Adapter1.SetDiscoveryFilter.
type DiscoveryOptions struct {
	// Transport is "auto", "bredr" or "le". Empty means DefaultTransport.
	Transport string
	// DuplicateData controls repeated advertisement reports. Nil means true.
	DuplicateData *bool
	// Extra holds additional filter keys (UUIDs, RSSI, Pattern, ...). They are
	// passed to BlueZ as given; a value that is already a dbus.Variant keeps
	// its signature, anything else gets the signature of its Go type.
	Extra map[string]interface{}
}

// WaitOptions bounds WaitDevice.
type WaitOptions struct {
	// Timeout is the overall deadline. Zero means DefaultWaitTimeout.
	Timeout time.Duration
	// PollInterval is the delay between lookups. Zero means DefaultPollInterval.
	PollInterval time.Duration
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultWaitTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}
