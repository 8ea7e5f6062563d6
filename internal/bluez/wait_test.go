package bluez

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const testDevice = "AA:BB:CC:DD:EE:FF"

func TestWaitDeviceAlreadyPresent(t *testing.T) {
	bus, a := newFakeAdapter()
	bus.addChild(a.Path(), "dev_AA_BB_CC_DD_EE_FF")

	start := time.Now()
	d, err := a.WaitDevice(context.Background(), testDevice, WaitOptions{Timeout: time.Second, PollInterval: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("WaitDevice: %v", err)
	}
	if d.ID() != testDevice {
		t.Errorf("ID = %q", d.ID())
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("WaitDevice took %s for a present device", elapsed)
	}
	if n := bus.childCount(); n != 1 {
		t.Errorf("enumerated %d times, want 1", n)
	}
}

func TestWaitDeviceAppears(t *testing.T) {
	bus, a := newFakeAdapter()
	time.AfterFunc(250*time.Millisecond, func() {
		bus.addChild(a.Path(), "dev_AA_BB_CC_DD_EE_FF")
	})

	start := time.Now()
	d, err := a.WaitDevice(context.Background(), testDevice, WaitOptions{Timeout: 500 * time.Millisecond, PollInterval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("WaitDevice: %v", err)
	}
	if d.ID() != testDevice {
		t.Errorf("ID = %q", d.ID())
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond || elapsed >= 500*time.Millisecond {
		t.Errorf("WaitDevice resolved after %s, want within [250ms, 500ms)", elapsed)
	}

	// No more polling once the wait is over.
	n := bus.childCount()
	time.Sleep(300 * time.Millisecond)
	if got := bus.childCount(); got != n {
		t.Errorf("enumerated %d more times after WaitDevice returned", got-n)
	}
}

func TestWaitDeviceTimeout(t *testing.T) {
	bus, a := newFakeAdapter()

	start := time.Now()
	_, err := a.WaitDevice(context.Background(), testDevice, WaitOptions{Timeout: 300 * time.Millisecond, PollInterval: 100 * time.Millisecond})
	elapsed := time.Since(start)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("WaitDevice error = %v, want ErrTimeout", err)
	}
	if elapsed < 300*time.Millisecond || elapsed > 450*time.Millisecond {
		t.Errorf("WaitDevice timed out after %s, want about 300ms", elapsed)
	}
	if n := bus.childCount(); n < 2 {
		t.Errorf("enumerated %d times, want the device polled repeatedly", n)
	}

	n := bus.childCount()
	time.Sleep(250 * time.Millisecond)
	if got := bus.childCount(); got != n {
		t.Errorf("enumerated %d more times after the timeout", got-n)
	}
}

func TestWaitDeviceHardFailure(t *testing.T) {
	bus, a := newFakeAdapter()
	busErr := errors.New("org.freedesktop.DBus.Error.ServiceUnknown")
	time.AfterFunc(150*time.Millisecond, func() {
		bus.mu.Lock()
		bus.childrenErr = busErr
		bus.mu.Unlock()
	})

	start := time.Now()
	_, err := a.WaitDevice(context.Background(), testDevice, WaitOptions{Timeout: 2 * time.Second, PollInterval: 50 * time.Millisecond})
	if !errors.Is(err, busErr) {
		t.Fatalf("WaitDevice error = %v, want %v", err, busErr)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("hard failure surfaced after %s, want it on the next poll", elapsed)
	}
}

func TestWaitDeviceCanceled(t *testing.T) {
	_, a := newFakeAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := a.WaitDevice(ctx, testDevice, WaitOptions{Timeout: 2 * time.Second, PollInterval: 50 * time.Millisecond})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitDevice error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("caller cancellation reported as timeout: %v", err)
	}
}

func TestWaitDeviceIndependent(t *testing.T) {
	bus, a := newFakeAdapter()
	time.AfterFunc(150*time.Millisecond, func() {
		bus.addChild(a.Path(), "dev_AA_BB_CC_DD_EE_FF")
	})
	opts := WaitOptions{Timeout: 400 * time.Millisecond, PollInterval: 50 * time.Millisecond}

	var (
		wg             sync.WaitGroup
		foundErr       error
		missingErr     error
		foundElapsed   time.Duration
		missingElapsed time.Duration
	)
	start := time.Now()
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, foundErr = a.WaitDevice(context.Background(), testDevice, opts)
		foundElapsed = time.Since(start)
	}()
	go func() {
		defer wg.Done()
		_, missingErr = a.WaitDevice(context.Background(), "11:22:33:44:55:66", opts)
		missingElapsed = time.Since(start)
	}()
	wg.Wait()

	if foundErr != nil {
		t.Errorf("resolvable wait failed: %v", foundErr)
	}
	if foundElapsed >= 400*time.Millisecond {
		t.Errorf("resolvable wait took %s", foundElapsed)
	}
	if !errors.Is(missingErr, ErrTimeout) {
		t.Errorf("unresolvable wait error = %v, want ErrTimeout", missingErr)
	}
	if missingElapsed < 400*time.Millisecond {
		t.Errorf("unresolvable wait ended after %s, before its deadline", missingElapsed)
	}
}

func TestWaitDeviceSameAddressTwice(t *testing.T) {
	bus, a := newFakeAdapter()
	time.AfterFunc(100*time.Millisecond, func() {
		bus.addChild(a.Path(), "dev_AA_BB_CC_DD_EE_FF")
	})
	opts := WaitOptions{Timeout: time.Second, PollInterval: 50 * time.Millisecond}

	var wg sync.WaitGroup
	devs := make([]*Device, 2)
	errs := make([]error, 2)
	for i := range devs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			devs[i], errs[i] = a.WaitDevice(context.Background(), testDevice, opts)
		}(i)
	}
	wg.Wait()

	for i := range devs {
		if errs[i] != nil {
			t.Errorf("wait %d: %v", i, errs[i])
			continue
		}
		if devs[i].ID() != testDevice {
			t.Errorf("wait %d: ID = %q", i, devs[i].ID())
		}
	}
	if devs[0] != nil && devs[0] == devs[1] {
		t.Error("concurrent waits shared a handle")
	}
}

func TestWaitOptionsDefaults(t *testing.T) {
	got := WaitOptions{}.withDefaults()
	if got.Timeout != 120*time.Second || got.PollInterval != time.Second {
		t.Errorf("defaults = %+v", got)
	}
	got = WaitOptions{Timeout: time.Minute, PollInterval: 10 * time.Millisecond}.withDefaults()
	if got.Timeout != time.Minute || got.PollInterval != 10*time.Millisecond {
		t.Errorf("explicit options overridden: %+v", got)
	}
}
