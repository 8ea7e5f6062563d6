package bluez

import (
	"context"
	"errors"
	"fmt"
	"sync"

	dbus "github.com/godbus/dbus/v5"

	"bluez-adapter/internal/dbuslink"
)

// fakeBus is an in-memory BlueZ object tree. Links handed out by link share it.
type fakeBus struct {
	mu sync.Mutex

	props    map[dbus.ObjectPath]map[string]dbus.Variant
	children map[dbus.ObjectPath][]string

	// calls records method invocations as "Iface.Method" in order.
	calls []string
	// filter is the last SetDiscoveryFilter argument.
	filter map[string]dbus.Variant
	// callErr makes the named method fail.
	callErr map[string]error
	// childrenErr makes every enumeration fail.
	childrenErr error
	// propErr makes every property read fail.
	propErr error

	childCalls int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props:    make(map[dbus.ObjectPath]map[string]dbus.Variant),
		children: make(map[dbus.ObjectPath][]string),
		callErr:  make(map[string]error),
	}
}

func (b *fakeBus) link(path dbus.ObjectPath, iface string) dbuslink.Link {
	return &fakeLink{bus: b, path: path, iface: iface}
}

func (b *fakeBus) setProp(path dbus.ObjectPath, name string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.props[path] == nil {
		b.props[path] = make(map[string]dbus.Variant)
	}
	b.props[path][name] = dbus.MakeVariant(value)
}

func (b *fakeBus) addChild(path dbus.ObjectPath, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children[path] = append(b.children[path], name)
}

func (b *fakeBus) methodCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBus) childCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.childCalls
}

// newFakeAdapter returns a powered, idle hci0 on a fresh bus.
func newFakeAdapter() (*fakeBus, *Adapter) {
	bus := newFakeBus()
	path := adapterPath(DefaultAdapterID)
	bus.setProp(path, "Address", "00:1A:7D:DA:71:13")
	bus.setProp(path, "AddressType", "public")
	bus.setProp(path, "Name", "host")
	bus.setProp(path, "Alias", "Workbench")
	bus.setProp(path, "Powered", true)
	bus.setProp(path, "Discovering", false)
	return bus, newAdapter(bus.link, DefaultAdapterID)
}

type fakeLink struct {
	bus   *fakeBus
	path  dbus.ObjectPath
	iface string
}

func (l *fakeLink) Prop(ctx context.Context, name string) (dbus.Variant, error) {
	if err := ctx.Err(); err != nil {
		return dbus.Variant{}, err
	}
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	if l.bus.propErr != nil {
		return dbus.Variant{}, l.bus.propErr
	}
	v, ok := l.bus.props[l.path][name]
	if !ok {
		return dbus.Variant{}, dbus.Error{
			Name: "org.freedesktop.DBus.Error.InvalidArgs",
			Body: []interface{}{fmt.Sprintf("No such property '%s'", name)},
		}
	}
	return v, nil
}

func (l *fakeLink) SetProp(ctx context.Context, name string, value dbus.Variant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	if l.bus.props[l.path] == nil {
		l.bus.props[l.path] = make(map[string]dbus.Variant)
	}
	l.bus.props[l.path][name] = value
	return nil
}

func (l *fakeLink) Call(ctx context.Context, method string, args []interface{}, out ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	l.bus.calls = append(l.bus.calls, l.iface+"."+method)
	if err := l.bus.callErr[method]; err != nil {
		return err
	}
	props := l.bus.props[l.path]
	switch method {
	case "SetDiscoveryFilter":
		f, ok := args[0].(map[string]dbus.Variant)
		if !ok {
			return errors.New("fake: SetDiscoveryFilter wants a{sv}")
		}
		l.bus.filter = f
	case "StartDiscovery":
		props["Discovering"] = dbus.MakeVariant(true)
	case "StopDiscovery":
		props["Discovering"] = dbus.MakeVariant(false)
	}
	return nil
}

func (l *fakeLink) Children(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	l.bus.childCalls++
	if l.bus.childrenErr != nil {
		return nil, l.bus.childrenErr
	}
	return append([]string(nil), l.bus.children[l.path]...), nil
}
