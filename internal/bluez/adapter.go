package bluez

import (
	"context"
	"fmt"

	dbus "github.com/godbus/dbus/v5"

	"bluez-adapter/internal/dbuslink"
	"bluez-adapter/internal/peerid"
)

// linker binds a Link to an object path and interface on one connection.
type linker func(path dbus.ObjectPath, iface string) dbuslink.Link

func connLinker(conn *dbus.Conn) linker {
	return func(path dbus.ObjectPath, iface string) dbuslink.Link {
		return dbuslink.New(conn, bluezService, path, iface)
	}
}

// Adapter is one org.bluez.Adapter1 object, e.g. /org/bluez/hci0.
type Adapter struct {
	id    string
	links linker
	link  dbuslink.Link
}

// NewAdapter binds the adapter id (e.g. "hci0") on conn without checking that
// it exists. Use Bluetooth.Adapter for a checked lookup.
func NewAdapter(conn *dbus.Conn, id string) *Adapter {
	return newAdapter(connLinker(conn), id)
}

func newAdapter(links linker, id string) *Adapter {
	return &Adapter{
		id:    id,
		links: links,
		link:  links(adapterPath(id), adapterIface),
	}
}

func adapterPath(id string) dbus.ObjectPath {
	return dbus.ObjectPath(bluezRoot + "/" + id)
}

// ID returns the adapter's path segment, e.g. "hci0".
func (a *Adapter) ID() string { return a.id }

// Path returns the adapter's object path.
func (a *Adapter) Path() dbus.ObjectPath { return adapterPath(a.id) }

// Address returns the adapter's Bluetooth address.
func (a *Adapter) Address(ctx context.Context) (string, error) {
	return dbuslink.String(a.link.Prop(ctx, "Address"))
}

// AddressType returns "public" or "random".
func (a *Adapter) AddressType(ctx context.Context) (string, error) {
	return dbuslink.String(a.link.Prop(ctx, "AddressType"))
}

// Name returns the system name of the adapter.
func (a *Adapter) Name(ctx context.Context) (string, error) {
	return dbuslink.String(a.link.Prop(ctx, "Name"))
}

// Alias returns the friendly name of the adapter.
func (a *Adapter) Alias(ctx context.Context) (string, error) {
	return dbuslink.String(a.link.Prop(ctx, "Alias"))
}

// IsPowered reports the adapter's Powered property.
func (a *Adapter) IsPowered(ctx context.Context) (bool, error) {
	return dbuslink.Bool(a.link.Prop(ctx, "Powered"))
}

// IsDiscovering reports the adapter's Discovering property.
func (a *Adapter) IsDiscovering(ctx context.Context) (bool, error) {
	return dbuslink.Bool(a.link.Prop(ctx, "Discovering"))
}

// Devices returns the addresses of the devices BlueZ currently exposes under
// the adapter, in the order BlueZ lists them.
func (a *Adapter) Devices(ctx context.Context) ([]string, error) {
	children, err := a.link.Children(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(children))
	for _, c := range children {
		if !peerid.IsDevice(c) {
			continue
		}
		out = append(out, peerid.Decode(c))
	}
	return out, nil
}

// Device returns the device with the given address. It fails with
// ErrDeviceNotFound if BlueZ has no such object right now; the object may
// still vanish right after a successful lookup.
func (a *Adapter) Device(ctx context.Context, id string) (*Device, error) {
	children, err := a.link.Children(ctx)
	if err != nil {
		return nil, err
	}
	name := peerid.Encode(id)
	for _, c := range children {
		if c == name {
			return newDevice(a.links, a.id, name), nil
		}
	}
	return nil, fmt.Errorf("%w: %s on %s", ErrDeviceNotFound, id, a.id)
}

// Describe returns "<alias> [<address>]". The two reads are independent.
func (a *Adapter) Describe(ctx context.Context) (string, error) {
	alias, err := a.Alias(ctx)
	if err != nil {
		return "", err
	}
	addr, err := a.Address(ctx)
	if err != nil {
		return "", err
	}
	return alias + " [" + addr + "]", nil
}
