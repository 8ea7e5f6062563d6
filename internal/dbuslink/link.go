// Package dbuslink binds a single D-Bus object (service, path, interface) and
// exposes the small surface the BlueZ wrappers need: property get/set, method
// calls, and enumeration of the object's immediate children.
//
// Nothing is cached. Every call is one round trip on the bus.
package dbuslink

import (
	"context"
	"encoding/xml"
	"fmt"

	dbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	propsIface      = "org.freedesktop.DBus.Properties"
	introspectIface = "org.freedesktop.DBus.Introspectable"
)

// Link is the per-object handle used by the BlueZ wrappers.
//
// Errors returned by an implementation are transport failures; callers are
// expected to propagate them unchanged.
type Link interface {
	// Prop reads one property of the bound interface.
	Prop(ctx context.Context, name string) (dbus.Variant, error)

	// SetProp writes one property of the bound interface.
	SetProp(ctx context.Context, name string, value dbus.Variant) error

	// Call invokes a method of the bound interface and stores its reply
	// values into out (which may be empty).
	Call(ctx context.Context, method string, args []interface{}, out ...interface{}) error

	// Children lists the names of the immediate child nodes of the bound
	// path, in the order the service reports them.
	Children(ctx context.Context) ([]string, error)
}

// Object is the godbus-backed Link.
type Object struct {
	conn    *dbus.Conn
	service string
	path    dbus.ObjectPath
	iface   string
}

// New binds conn to service/path/iface. No bus traffic happens until a method
// is used.
func New(conn *dbus.Conn, service string, path dbus.ObjectPath, iface string) *Object {
	return &Object{conn: conn, service: service, path: path, iface: iface}
}

// Path returns the bound object path.
func (o *Object) Path() dbus.ObjectPath { return o.path }

// Iface returns the bound interface name.
func (o *Object) Iface() string { return o.iface }

func (o *Object) obj() (dbus.BusObject, error) {
	if o.conn == nil {
		return nil, fmt.Errorf("dbuslink: %s: no bus connection", o.path)
	}
	return o.conn.Object(o.service, o.path), nil
}

func (o *Object) Prop(ctx context.Context, name string) (dbus.Variant, error) {
	obj, err := o.obj()
	if err != nil {
		return dbus.Variant{}, err
	}
	var v dbus.Variant
	if err := obj.CallWithContext(ctx, propsIface+".Get", 0, o.iface, name).Store(&v); err != nil {
		return dbus.Variant{}, fmt.Errorf("dbuslink: get %s.%s on %s: %w", o.iface, name, o.path, err)
	}
	return v, nil
}

func (o *Object) SetProp(ctx context.Context, name string, value dbus.Variant) error {
	obj, err := o.obj()
	if err != nil {
		return err
	}
	if call := obj.CallWithContext(ctx, propsIface+".Set", 0, o.iface, name, value); call.Err != nil {
		return fmt.Errorf("dbuslink: set %s.%s on %s: %w", o.iface, name, o.path, call.Err)
	}
	return nil
}

func (o *Object) Call(ctx context.Context, method string, args []interface{}, out ...interface{}) error {
	obj, err := o.obj()
	if err != nil {
		return err
	}
	call := obj.CallWithContext(ctx, o.iface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("dbuslink: %s.%s on %s: %w", o.iface, method, o.path, call.Err)
	}
	if len(out) == 0 {
		return nil
	}
	if err := call.Store(out...); err != nil {
		return fmt.Errorf("dbuslink: decode %s.%s reply: %w", o.iface, method, err)
	}
	return nil
}

func (o *Object) Children(ctx context.Context) ([]string, error) {
	obj, err := o.obj()
	if err != nil {
		return nil, err
	}
	var data string
	if err := obj.CallWithContext(ctx, introspectIface+".Introspect", 0).Store(&data); err != nil {
		return nil, fmt.Errorf("dbuslink: introspect %s: %w", o.path, err)
	}
	return childNames(data)
}

// childNames extracts the child node names from introspection XML.
func childNames(data string) ([]string, error) {
	var node introspect.Node
	if err := xml.Unmarshal([]byte(data), &node); err != nil {
		return nil, fmt.Errorf("dbuslink: parse introspection: %w", err)
	}
	out := make([]string, 0, len(node.Children))
	for _, c := range node.Children {
		if c.Name == "" {
			continue
		}
		out = append(out, c.Name)
	}
	return out, nil
}
