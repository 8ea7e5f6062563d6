package bluez

import (
	"context"
	"fmt"

	dbus "github.com/godbus/dbus/v5"

	"bluez-adapter/internal/dbuslink"
)

// State returns the discovery state read live from the adapter.
func (a *Adapter) State(ctx context.Context) (DiscoveryState, error) {
	on, err := a.IsDiscovering(ctx)
	if err != nil {
		return StateIdle, err
	}
	if on {
		return StateDiscovering, nil
	}
	return StateIdle, nil
}

// StartDiscovery sets the discovery filter from opts and starts scanning.
//
// It fails with ErrWrongParameter for malformed options and with
// ErrDiscoveryInProgress if the adapter is already scanning; neither case
// issues a method call. If SetDiscoveryFilter fails, StartDiscovery is not
// called. Transport failures are returned as-is and nothing is rolled back.
func (a *Adapter) StartDiscovery(ctx context.Context, opts DiscoveryOptions) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}
	state, err := a.State(ctx)
	if err != nil {
		return err
	}
	if state != StateIdle {
		return ErrDiscoveryInProgress
	}
	if err := a.link.Call(ctx, "SetDiscoveryFilter", []interface{}{filter}); err != nil {
		return err
	}
	return a.link.Call(ctx, "StartDiscovery", nil)
}

// StopDiscovery stops scanning. It fails with ErrNoDiscovery, without a
// method call, if the adapter is not scanning.
func (a *Adapter) StopDiscovery(ctx context.Context) error {
	state, err := a.State(ctx)
	if err != nil {
		return err
	}
	if state != StateDiscovering {
		return ErrNoDiscovery
	}
	return a.link.Call(ctx, "StopDiscovery", nil)
}

// filter merges opts over the defaults into SetDiscoveryFilter's a{sv}.
func (o DiscoveryOptions) filter() (map[string]dbus.Variant, error) {
	transport := o.Transport
	if transport == "" {
		transport = DefaultTransport
	}
	duplicate := true
	if o.DuplicateData != nil {
		duplicate = *o.DuplicateData
	}

	out := make(map[string]dbus.Variant, len(o.Extra)+2)
	for k, v := range o.Extra {
		switch k {
		case "":
			return nil, fmt.Errorf("%w: empty filter key", ErrWrongParameter)
		case "Transport", "DuplicateData":
			return nil, fmt.Errorf("%w: %s must be set through its own field", ErrWrongParameter, k)
		}
		variant, err := dbuslink.Variant(v)
		if err != nil {
			return nil, fmt.Errorf("%w: filter key %s: %v", ErrWrongParameter, k, err)
		}
		out[k] = variant
	}

	var err error
	if out["Transport"], err = dbuslink.Typed("string", transport); err != nil {
		return nil, err
	}
	if out["DuplicateData"], err = dbuslink.Typed("boolean", duplicate); err != nil {
		return nil, err
	}
	return out, nil
}
