package bluez

import (
	"context"
	"fmt"
	"sync"

	dbus "github.com/godbus/dbus/v5"

	"bluez-adapter/internal/dbuslink"
)

// Bluetooth is the entry point: it enumerates the adapters below /org/bluez.
type Bluetooth struct {
	mu     sync.Mutex
	closed bool

	links linker
	root  dbuslink.Link

	// cleanup functions to release resources in Close (executed once, in reverse order).
	cleanup []func()
}

// Open connects to the system bus on a private connection that Close releases.
func Open() (*Bluetooth, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	b := New(conn)
	// Close the bus last during cleanup.
	b.cleanup = append(b.cleanup, func() { conn.Close() })
	return b, nil
}

// New wraps an existing connection. Close will not close conn.
func New(conn *dbus.Conn) *Bluetooth {
	return newBluetooth(connLinker(conn))
}

func newBluetooth(links linker) *Bluetooth {
	return &Bluetooth{
		links: links,
		root:  links(bluezRoot, profileManagerIface),
	}
}

func (b *Bluetooth) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Adapters returns the ids of all adapters, e.g. ["hci0"].
func (b *Bluetooth) Adapters(ctx context.Context) ([]string, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return b.root.Children(ctx)
}

// Adapter returns the adapter with the given id, or ErrAdapterNotFound.
func (b *Bluetooth) Adapter(ctx context.Context, id string) (*Adapter, error) {
	ids, err := b.Adapters(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range ids {
		if a == id {
			return newAdapter(b.links, id), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
}

// DefaultAdapter returns hci0.
func (b *Bluetooth) DefaultAdapter(ctx context.Context) (*Adapter, error) {
	return b.Adapter(ctx, DefaultAdapterID)
}

// ActiveAdapters returns the adapters that are powered on.
func (b *Bluetooth) ActiveAdapters(ctx context.Context) ([]*Adapter, error) {
	ids, err := b.Adapters(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Adapter
	for _, id := range ids {
		a := newAdapter(b.links, id)
		on, err := a.IsPowered(ctx)
		if err != nil {
			return nil, err
		}
		if on {
			out = append(out, a)
		}
	}
	return out, nil
}

// Close is safe for concurrent and redundant calls (idempotent).
func (b *Bluetooth) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cleanup := b.cleanup
	b.cleanup = nil
	b.mu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		if cleanup[i] != nil {
			cleanup[i]()
		}
	}
	return nil
}
