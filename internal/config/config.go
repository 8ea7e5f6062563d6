// Package config loads the bluez-demo settings.
//
// Resolution order: built-in defaults, then the YAML file given with -config
// (or $BLUEZ_DEMO_CONFIG), then environment overrides:
//
//	BLUEZ_DEMO_ADAPTER       adapter id, e.g. hci1
//	BLUEZ_DEMO_WAIT_TIMEOUT  Go duration, e.g. 30s
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"bluez-adapter/internal/bluez"
)

// Config is the complete demo configuration.
type Config struct {
	Adapter   string          `yaml:"adapter"`
	Wait      WaitConfig      `yaml:"wait"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Log       LogConfig       `yaml:"log"`
}

// WaitConfig bounds WaitDevice.
type WaitConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// DiscoveryConfig holds the scan filter and how long the scan mode runs.
type DiscoveryConfig struct {
	Transport     string        `yaml:"transport"`
	DuplicateData *bool         `yaml:"duplicateData"`
	Window        time.Duration `yaml:"window"`
	// Filter carries extra SetDiscoveryFilter keys (UUIDs, RSSI, Pathloss, Pattern, ...).
	Filter map[string]interface{} `yaml:"filter"`
}

// LogConfig selects the log destination. An empty File logs to stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Adapter: bluez.DefaultAdapterID,
		Wait: WaitConfig{
			Timeout:      bluez.DefaultWaitTimeout,
			PollInterval: bluez.DefaultPollInterval,
		},
		Discovery: DiscoveryConfig{
			Transport: bluez.DefaultTransport,
			Window:    10 * time.Second,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("BLUEZ_DEMO_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("BLUEZ_DEMO_ADAPTER"); v != "" {
		c.Adapter = v
	}
	if v := os.Getenv("BLUEZ_DEMO_WAIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BLUEZ_DEMO_WAIT_TIMEOUT: %w", err)
		}
		c.Wait.Timeout = d
	}
	return nil
}

// applyDefaults fills values a partial file left empty.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Adapter == "" {
		c.Adapter = def.Adapter
	}
	if c.Wait.Timeout == 0 {
		c.Wait.Timeout = def.Wait.Timeout
	}
	if c.Wait.PollInterval == 0 {
		c.Wait.PollInterval = def.Wait.PollInterval
	}
	if c.Discovery.Transport == "" {
		c.Discovery.Transport = def.Discovery.Transport
	}
	if c.Discovery.Window == 0 {
		c.Discovery.Window = def.Discovery.Window
	}
}

func (c *Config) validate() error {
	switch c.Discovery.Transport {
	case "auto", "bredr", "le":
	default:
		return fmt.Errorf("discovery.transport %q: want auto, bredr or le", c.Discovery.Transport)
	}
	if c.Wait.Timeout < 0 || c.Wait.PollInterval < 0 || c.Discovery.Window < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Wait.PollInterval > c.Wait.Timeout {
		return fmt.Errorf("wait.pollInterval %s exceeds wait.timeout %s", c.Wait.PollInterval, c.Wait.Timeout)
	}
	if _, err := c.filter(); err != nil {
		return err
	}
	return nil
}

// WaitOptions converts the wait settings.
func (c *Config) WaitOptions() bluez.WaitOptions {
	return bluez.WaitOptions{Timeout: c.Wait.Timeout, PollInterval: c.Wait.PollInterval}
}

// DiscoveryOptions converts the discovery settings. Load has already
// validated the filter, so the conversion cannot fail here.
func (c *Config) DiscoveryOptions() bluez.DiscoveryOptions {
	extra, _ := c.filter()
	return bluez.DiscoveryOptions{
		Transport:     c.Discovery.Transport,
		DuplicateData: c.Discovery.DuplicateData,
		Extra:         extra,
	}
}

// filter coerces YAML scalars into the Go types whose D-Bus signatures
// SetDiscoveryFilter expects for the keys BlueZ documents. Other keys pass
// through as decoded.
func (c *Config) filter() (map[string]interface{}, error) {
	if len(c.Discovery.Filter) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(c.Discovery.Filter))
	for k, v := range c.Discovery.Filter {
		var err error
		switch k {
		case "RSSI":
			out[k], err = toInt(k, v, -127, 20, func(n int) interface{} { return int16(n) })
		case "Pathloss":
			out[k], err = toInt(k, v, 0, 137, func(n int) interface{} { return uint16(n) })
		case "UUIDs":
			out[k], err = toStrings(k, v)
		case "Pattern":
			s, ok := v.(string)
			if !ok {
				err = fmt.Errorf("discovery.filter.%s: want a string", k)
			}
			out[k] = s
		case "Discoverable":
			b, ok := v.(bool)
			if !ok {
				err = fmt.Errorf("discovery.filter.%s: want a boolean", k)
			}
			out[k] = b
		default:
			if list, ok := v.([]interface{}); ok {
				out[k], err = toStrings(k, list)
			} else {
				out[k] = v
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func toInt(key string, v interface{}, min, max int, conv func(int) interface{}) (interface{}, error) {
	n, ok := v.(int)
	if !ok {
		return nil, fmt.Errorf("discovery.filter.%s: want an integer, got %T", key, v)
	}
	if n < min || n > max {
		return nil, fmt.Errorf("discovery.filter.%s: %d outside [%d, %d]", key, n, min, max)
	}
	return conv(n), nil
}

func toStrings(key string, v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("discovery.filter.%s: want a list", key)
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("discovery.filter.%s: want a list of strings, got %T", key, e)
		}
		out = append(out, s)
	}
	return out, nil
}
