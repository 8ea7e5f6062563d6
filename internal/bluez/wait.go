package bluez

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// pollScope is the ticker and deadline of one WaitDevice call. Close releases
// both; after it returns neither can fire.
type pollScope struct {
	ctx    context.Context
	cancel context.CancelFunc
	ticker *time.Ticker
}

func newPollScope(parent context.Context, opts WaitOptions) *pollScope {
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	return &pollScope{
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(opts.PollInterval),
	}
}

func (s *pollScope) Close() {
	s.ticker.Stop()
	s.cancel()
}

// expired reports whether the scope ended through its own deadline rather
// than through the caller's context.
func (s *pollScope) expired(parent context.Context) bool {
	return parent.Err() == nil && errors.Is(s.ctx.Err(), context.DeadlineExceeded)
}

// WaitDevice polls the adapter until the device with the given address shows
// up, and returns it.
//
// The first lookup happens immediately. After that one lookup runs every
// opts.PollInterval until opts.Timeout elapses, which fails with ErrTimeout.
// A lookup failing with ErrDeviceNotFound keeps the wait going; any other
// failure ends it and is returned. Cancelling ctx ends the wait with ctx's
// error. Concurrent waits, even for the same address, are independent.
func (a *Adapter) WaitDevice(ctx context.Context, id string, opts WaitOptions) (*Device, error) {
	opts = opts.withDefaults()

	scope := newPollScope(ctx, opts)
	defer scope.Close()

	timedOut := func() error {
		return fmt.Errorf("%w: waiting %s for device %s on %s", ErrTimeout, opts.Timeout, id, a.id)
	}

	for {
		dev, err := a.Device(scope.ctx, id)
		switch {
		case err == nil:
			return dev, nil
		case scope.expired(ctx):
			return nil, timedOut()
		case ctx.Err() != nil:
			return nil, fmt.Errorf("bluez: wait for device %s: %w", id, ctx.Err())
		case !errors.Is(err, ErrDeviceNotFound):
			return nil, err
		}

		select {
		case <-scope.ctx.Done():
			if scope.expired(ctx) {
				return nil, timedOut()
			}
			return nil, fmt.Errorf("bluez: wait for device %s: %w", id, ctx.Err())
		case <-scope.ticker.C:
		}
	}
}
