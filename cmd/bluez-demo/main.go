//go:build linux

// Demo CLI for the bluez adapter wrapper (Linux only)
//
// Prerequisites
// - Linux with BlueZ (bluetoothd) running and system D-Bus access.
// - Adapter powered on: `bluetoothctl power on`.
//
// Modes
// 1) Adapter properties:
//     go run ./cmd/bluez-demo -mode=info
//
// 2) Devices BlueZ currently knows about:
//     go run ./cmd/bluez-demo -mode=list
//
// 3) Scan for the configured window, then list and stop:
//     go run ./cmd/bluez-demo -mode=scan -config bluez-demo.yaml
//   Watch the filter go out with:
//     dbus-monitor --system "type='method_call',interface='org.bluez.Adapter1'"
//
// 4) Wait for devices to show up (one poll loop per device):
//     go run ./cmd/bluez-demo -mode=wait -device AA:BB:CC:DD:EE:FF,11:22:33:44:55:66
//   Start a scan first (mode=scan in another terminal, or bluetoothctl scan on).
//
// 5) Stop a scan left running:
//     go run ./cmd/bluez-demo -mode=stop
//
// Notes
// - Ctrl-C cancels via context.
// - log.file in the config sends logs to a rotated file instead of stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"bluez-adapter/internal/bluez"
	"bluez-adapter/internal/config"
	"bluez-adapter/internal/peerid"
)

func main() {
	mode := flag.String("mode", "info", "mode: info|list|scan|stop|wait")
	cfgPath := flag.String("config", "", "YAML config file (default $BLUEZ_DEMO_CONFIG)")
	adapterID := flag.String("adapter", "", "adapter id, overrides the config (e.g. hci1)")
	devices := flag.String("device", "", "comma separated device addresses (wait mode)")
	timeout := flag.Duration("timeout", 0, "overall deadline; 0 means none")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *adapterID != "" {
		cfg.Adapter = *adapterID
	}
	setupLogging(cfg.Log)

	// Context with optional timeout + Ctrl-C cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, *timeout)
		defer cancelTimeout()
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	bt, err := bluez.Open()
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer func() {
		if err := bt.Close(); err != nil {
			log.Printf("close error: %v", err)
		}
	}()

	adapter, err := bt.Adapter(ctx, cfg.Adapter)
	if err != nil {
		if errors.Is(err, bluez.ErrAdapterNotFound) {
			ids, _ := bt.Adapters(ctx)
			log.Printf("available adapters: %s", strings.Join(ids, ", "))
		}
		log.Fatalf("adapter: %v", err)
	}

	switch strings.ToLower(*mode) {
	case "info":
		err = runInfo(ctx, adapter)
	case "list":
		err = runList(ctx, adapter)
	case "scan":
		err = runScan(ctx, adapter, cfg)
	case "stop":
		err = adapter.StopDiscovery(ctx)
	case "wait":
		err = runWait(ctx, adapter, cfg, *devices)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
	if err != nil {
		log.Fatalf("%s error: %v", *mode, err)
	}
}

func setupLogging(c config.LogConfig) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if c.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	})
}

func runInfo(ctx context.Context, a *bluez.Adapter) error {
	desc, err := a.Describe(ctx)
	if err != nil {
		return err
	}
	name, err := a.Name(ctx)
	if err != nil {
		return err
	}
	addrType, err := a.AddressType(ctx)
	if err != nil {
		return err
	}
	powered, err := a.IsPowered(ctx)
	if err != nil {
		return err
	}
	state, err := a.State(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n  Path=%s Name=%s AddressType=%s Powered=%t Discovery=%s\n", desc, a.Path(), name, addrType, powered, state)
	return nil
}

func runList(ctx context.Context, a *bluez.Adapter) error {
	ids, err := a.Devices(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no devices known")
		return nil
	}
	for i, id := range ids {
		d, err := a.Device(ctx, id)
		if errors.Is(err, bluez.ErrDeviceNotFound) {
			// Removed since the listing; BlueZ drops stale devices on its own.
			continue
		}
		if err != nil {
			return err
		}
		alias, _ := d.Alias(ctx)
		fmt.Printf("[%d] Address=%s Alias=%s Path=%s\n", i, id, alias, d.Path())
	}
	return nil
}

func runScan(ctx context.Context, a *bluez.Adapter, cfg *config.Config) error {
	if err := a.StartDiscovery(ctx, cfg.DiscoveryOptions()); err != nil {
		return err
	}
	log.Printf("discovery started on %s for %s (transport=%s)", a.ID(), cfg.Discovery.Window, cfg.Discovery.Transport)

	select {
	case <-ctx.Done():
	case <-time.After(cfg.Discovery.Window):
	}

	// The scan context may be gone; stopping must still reach BlueZ.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	listErr := runList(stopCtx, a)
	if err := a.StopDiscovery(stopCtx); err != nil {
		return err
	}
	log.Printf("discovery stopped on %s", a.ID())
	return listErr
}

func runWait(ctx context.Context, a *bluez.Adapter, cfg *config.Config, list string) error {
	var ids []string
	for _, id := range strings.Split(list, ",") {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if !peerid.Valid(id) {
			return fmt.Errorf("-device %q: not a Bluetooth address", id)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return errors.New("-device is required in wait mode")
	}

	// Waits are independent: one device timing out does not cancel the others.
	opts := cfg.WaitOptions()
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			log.Printf("waiting for %s (timeout=%s, poll=%s)", id, opts.Timeout, opts.PollInterval)
			d, err := a.WaitDevice(ctx, id, opts)
			if err != nil {
				log.Printf("%s: %v", id, err)
				return err
			}
			desc, err := d.Describe(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("FOUND: %s Path=%s\n", desc, d.Path())
			return nil
		})
	}
	return g.Wait()
}
