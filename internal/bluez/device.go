package bluez

import (
	"context"

	dbus "github.com/godbus/dbus/v5"

	"bluez-adapter/internal/dbuslink"
	"bluez-adapter/internal/peerid"
)

// Device is an org.bluez.Device1 object under an adapter. It only carries the
// address it was looked up by; everything else is read live.
type Device struct {
	adapter string
	node    string
	link    dbuslink.Link
}

func newDevice(links linker, adapter, node string) *Device {
	d := &Device{adapter: adapter, node: node}
	d.link = links(d.Path(), deviceIface)
	return d
}

// ID returns the device address, e.g. "AA:BB:CC:DD:EE:FF".
func (d *Device) ID() string { return peerid.Decode(d.node) }

// Adapter returns the id of the adapter the device was found on.
func (d *Device) Adapter() string { return d.adapter }

// Path returns the device's object path.
func (d *Device) Path() dbus.ObjectPath {
	return adapterPath(d.adapter) + dbus.ObjectPath("/"+d.node)
}

// Name returns the remote name. BlueZ omits it for devices that never sent one.
func (d *Device) Name(ctx context.Context) (string, error) {
	return dbuslink.String(d.link.Prop(ctx, "Name"))
}

// Alias returns the display name; BlueZ falls back to the address.
func (d *Device) Alias(ctx context.Context) (string, error) {
	return dbuslink.String(d.link.Prop(ctx, "Alias"))
}

func (d *Device) IsPaired(ctx context.Context) (bool, error) {
	return dbuslink.Bool(d.link.Prop(ctx, "Paired"))
}

func (d *Device) IsConnected(ctx context.Context) (bool, error) {
	return dbuslink.Bool(d.link.Prop(ctx, "Connected"))
}

// Describe returns "<alias> [<address>]".
func (d *Device) Describe(ctx context.Context) (string, error) {
	alias, err := d.Alias(ctx)
	if err != nil {
		return "", err
	}
	return alias + " [" + d.ID() + "]", nil
}
