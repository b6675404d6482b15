package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/pn532"
	"github.com/mklimuk/pn532/adapter"
	"github.com/mklimuk/pn532/gpio"
	"github.com/mklimuk/pn532/i2c"
	"github.com/mklimuk/pn532/pkg/config"
	"github.com/mklimuk/pn532/pn532ctx"
	"github.com/mklimuk/pn532/transport"
)

// session owns one bus and the link built on top of it. Exactly one of link
// and async is set.
type session struct {
	cfg    config.Config
	bus    pn532.I2CBus
	irq    pn532.IRQPin
	link   pn532.Interface
	async  pn532.AsyncInterface
	closer func() error
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	for flag, dst := range map[string]*string{
		"adapter":   &cfg.Adapter,
		"device":    &cfg.Device,
		"transport": &cfg.Transport,
		"irq":       &cfg.IRQ,
	} {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	if c.IsSet("interval") {
		cfg.Interval = c.Duration("interval")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	slog.Debug("configuration loaded", "config", spew.Sdump(cfg))
	return cfg, nil
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, closer: func() error { return nil }}
	var digital gpio.DigitalReader
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		s.bus = ad
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if err := bus.SetSpeed(physic.Frequency(cfg.SpeedKHz) * physic.KiloHertz); err != nil {
			_ = bus.Close()
			return nil, fmt.Errorf("could not set bus speed: %w", err)
		}
		s.bus = bus
		s.closer = bus.Close
	case config.AdapterGobot:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, cfg.GobotBus)
		s.bus = bus
		s.closer = func() error {
			if err := bus.Close(); err != nil {
				slog.Warn("could not close gobot connections", "error", err)
			}
			return npi.Finalize()
		}
		digital = npi
	}
	if cfg.Transport == config.TransportIRQ {
		s.irq, err = openIRQ(c.Context, cfg, s.bus, digital)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	switch cfg.Transport {
	case config.TransportIRQ:
		s.link = transport.NewI2CInterfaceWithIRQ(s.bus, s.irq)
	case config.TransportAsync:
		s.async = transport.NewAsyncI2CInterface(s.bus)
	default:
		s.link = transport.NewI2CInterface(s.bus)
	}
	slog.Debug("session opened", "adapter", cfg.Adapter, "transport", cfg.Transport)
	return s, nil
}

// gpAdapter is a bus adapter with its own GP pins, such as the MCP2221.
type gpAdapter interface {
	SetGPIOInput(ctx context.Context, n int) error
	GPIOPin(n int) *adapter.GPPin
}

// openIRQ resolves the irq setting against the selected adapter and configures
// the pin as an input.
func openIRQ(ctx context.Context, cfg config.Config, bus pn532.I2CBus, digital gpio.DigitalReader) (pn532.IRQPin, error) {
	name := cfg.IRQ
	if pinName, ok := strings.CutPrefix(name, "mcp23017:"); ok {
		if len(pinName) != 2 {
			return nil, fmt.Errorf("invalid expander pin %q, expected e.g. mcp23017:B2", name)
		}
		port := gpio.PortA
		if strings.EqualFold(pinName[:1], "B") {
			port = gpio.PortB
		}
		bit, err := strconv.Atoi(pinName[1:])
		if err != nil || bit > 7 {
			return nil, fmt.Errorf("invalid expander bit in %q", name)
		}
		exp := gpio.NewMCP23017(bus, gpio.DefaultMCP23017Address)
		if err := exp.ConfigureInput(ctx, port, uint(bit)); err != nil {
			return nil, fmt.Errorf("could not configure irq pin %s: %w", name, err)
		}
		return gpio.NewFailFast(name, exp.Pin(port, uint(bit))), nil
	}
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(name), "GP"))
		if err != nil || n < 0 || n > 3 {
			return nil, fmt.Errorf("invalid MCP2221 pin %q, expected GP0..GP3", name)
		}
		gp, ok := bus.(gpAdapter)
		if !ok {
			return nil, fmt.Errorf("bus %T has no GP pins", bus)
		}
		if err := gp.SetGPIOInput(ctx, n); err != nil {
			return nil, fmt.Errorf("could not configure irq pin %s: %w", name, err)
		}
		return gpio.NewFailFast(name, gp.GPIOPin(n)), nil
	case config.AdapterGobot:
		return gpio.NewFailFast(name, gpio.NewDigitalPin(digital, name)), nil
	default:
		return gpio.Open(name)
	}
}

func (s *session) Close() error {
	return s.closer()
}

func (s *session) context(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := pn532ctx.SetVerbose(c.Context, c.Bool("verbose"))
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// exchange writes frame, waits for the response and reads n bytes of it.
// Sync links are polled every interval until ctx expires.
func (s *session) exchange(ctx context.Context, frame []byte, n int) ([]byte, error) {
	if err := s.write(ctx, frame); err != nil {
		return nil, fmt.Errorf("could not write frame: %w", err)
	}
	if err := s.awaitReady(ctx); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := s.read(ctx, buf); err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	return buf, nil
}

func (s *session) write(ctx context.Context, frame []byte) error {
	if s.async != nil {
		return s.async.Write(ctx, frame)
	}
	return s.link.Write(ctx, frame)
}

func (s *session) read(ctx context.Context, buf []byte) error {
	if s.async != nil {
		return s.async.Read(ctx, buf)
	}
	return s.link.Read(ctx, buf)
}

func (s *session) awaitReady(ctx context.Context) error {
	if s.async != nil {
		if err := s.async.WaitReady(ctx); err != nil {
			return fmt.Errorf("device did not become ready: %w", err)
		}
		return nil
	}
	return pollUntilReady(ctx, s.link, s.cfg.Interval)
}

func pollUntilReady(ctx context.Context, link pn532.Interface, interval time.Duration) error {
	ticker := time.NewTicker(max(interval, time.Millisecond))
	defer ticker.Stop()
	for polls := 1; ; polls++ {
		p, err := link.WaitReady(ctx)
		if err != nil {
			return fmt.Errorf("readiness check failed: %w", err)
		}
		if p == pn532.Ready {
			slog.Debug("device ready", "polls", polls)
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("device not ready after %d polls: %w", polls, ctx.Err())
		}
	}
}
