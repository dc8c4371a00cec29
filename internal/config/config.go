// Package config loads the remoteplay configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDirName = "remoteplay"
	fileName   = "config.yaml"

	BrowserAvahi  = "avahi"
	BrowserNative = "native"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Verbose bool          `yaml:"verbose"`
	Network NetworkConfig `yaml:"network"`
	Host    HostConfig    `yaml:"host"`
	Guest   GuestConfig   `yaml:"guest"`
}

type NetworkConfig struct {
	ControlPort      int           `yaml:"control_port"`
	PinPort          int           `yaml:"pin_port"`
	Browser          string        `yaml:"browser"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	PinTimeout       time.Duration `yaml:"pin_timeout"`
	ScanWorkers      int           `yaml:"scan_workers"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
}

type HostConfig struct {
	Binary string `yaml:"binary"`
	// ConfigDir holds sunshine.conf and the PID file. Empty means
	// <config dir>/sunshine.
	ConfigDir     string        `yaml:"config_dir"`
	StartupWindow time.Duration `yaml:"startup_window"`
	GracePeriod   time.Duration `yaml:"grace_period"`
	// Web API of the local server, used to submit PINs automatically.
	WebPort     int    `yaml:"web_port"`
	WebUser     string `yaml:"web_user"`
	WebPassword string `yaml:"web_password"`
	// Settings are written to sunshine.conf as "key = value" lines.
	Settings map[string]string `yaml:"settings,omitempty"`
}

type GuestConfig struct {
	// Binaries are tried in order.
	Binaries    []string      `yaml:"binaries"`
	Quality     string        `yaml:"quality"`
	Bitrate     int           `yaml:"bitrate"`
	DisplayMode string        `yaml:"display_mode"`
	Audio       bool          `yaml:"audio"`
	Decoder     string        `yaml:"decoder"`
	PairTimeout time.Duration `yaml:"pair_timeout"`
	GracePeriod time.Duration `yaml:"grace_period"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			ControlPort:      47989,
			PinPort:          48011,
			Browser:          BrowserAvahi,
			DiscoveryTimeout: 5 * time.Second,
			PinTimeout:       3 * time.Second,
			ScanWorkers:      50,
			ProbeTimeout:     500 * time.Millisecond,
		},
		Host: HostConfig{
			Binary:        "sunshine",
			StartupWindow: time.Second,
			GracePeriod:   5 * time.Second,
			WebPort:       47990,
		},
		Guest: GuestConfig{
			Binaries:    []string{"moonlight-qt", "moonlight"},
			Quality:     "1080p60",
			DisplayMode: "borderless",
			Audio:       true,
			Decoder:     "auto",
			PairTimeout: 2 * time.Minute,
			GracePeriod: 5 * time.Second,
		},
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// DefaultPath returns the path of the configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"network.control_port": c.Network.ControlPort,
		"network.pin_port":     c.Network.PinPort,
		"host.web_port":        c.Host.WebPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: %s out of range: %d", ErrInvalidConfig, name, port)
		}
	}
	if c.Network.Browser != BrowserAvahi && c.Network.Browser != BrowserNative {
		return fmt.Errorf("%w: network.browser must be %q or %q, got %q", ErrInvalidConfig, BrowserAvahi, BrowserNative, c.Network.Browser)
	}
	if c.Network.ScanWorkers <= 0 {
		return fmt.Errorf("%w: network.scan_workers must be positive", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"network.discovery_timeout": c.Network.DiscoveryTimeout,
		"network.pin_timeout":       c.Network.PinTimeout,
		"network.probe_timeout":     c.Network.ProbeTimeout,
		"host.startup_window":       c.Host.StartupWindow,
		"host.grace_period":         c.Host.GracePeriod,
		"guest.pair_timeout":        c.Guest.PairTimeout,
		"guest.grace_period":        c.Guest.GracePeriod,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.Host.Binary == "" {
		return fmt.Errorf("%w: host.binary is empty", ErrInvalidConfig)
	}
	if len(c.Guest.Binaries) == 0 {
		return fmt.Errorf("%w: guest.binaries is empty", ErrInvalidConfig)
	}
	return nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// HostDir resolves the server's working directory under base.
func (c *Config) HostDir(base string) string {
	if c.Host.ConfigDir != "" {
		return c.Host.ConfigDir
	}
	return filepath.Join(base, "sunshine")
}

// GuestDir is the client's state directory under base.
func (c *Config) GuestDir(base string) string {
	return filepath.Join(base, "moonlight")
}
