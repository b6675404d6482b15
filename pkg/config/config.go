// Package config holds build information and the pn532 CLI configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// set by the build tool
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterGobot   = "gobot"

	TransportStatus = "status"
	TransportIRQ    = "irq"
	TransportAsync  = "async"
)

type Config struct {
	Adapter   string        `yaml:"adapter"`
	Device    string        `yaml:"device"`
	GobotBus  int           `yaml:"gobot_bus"`
	SpeedKHz  int           `yaml:"speed_khz"`
	Transport string        `yaml:"transport"`
	IRQ       string        `yaml:"irq"`
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		Adapter:   AdapterMCP2221,
		Device:    "/dev/i2c-1",
		GobotBus:  -1,
		SpeedKHz:  100,
		Transport: TransportStatus,
		Interval:  10 * time.Millisecond,
		Timeout:   time.Second,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterGobot:
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	switch c.Transport {
	case TransportStatus, TransportAsync:
	case TransportIRQ:
		if c.IRQ == "" {
			return fmt.Errorf("irq transport requires an irq pin")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Interval < 0 || c.Timeout < 0 {
		return fmt.Errorf("interval and timeout must not be negative")
	}
	return nil
}
