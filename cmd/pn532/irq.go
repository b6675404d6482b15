package main

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pn532/cmd/pn532/console"
	"github.com/mklimuk/pn532/pkg/config"
)

var irqCmd = cli.Command{
	Name:  "irq",
	Usage: "IRQ line tools",
	Subcommands: []*cli.Command{
		&irqSampleCmd,
	},
}

var irqSampleCmd = cli.Command{
	Name:  "sample",
	Usage: "print the current IRQ line level",
	Action: func(c *cli.Context) error {
		if !c.IsSet("transport") {
			if err := c.Set("transport", config.TransportIRQ); err != nil {
				return console.Exit(1, "%v", err)
			}
		}
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeSession(s)
		if s.irq == nil {
			return console.Exit(1, "no IRQ pin configured (use --transport irq --irq <pin>)")
		}
		if s.irq.Read() == gpio.Low {
			console.Printf("%s %s\n", console.Green("LOW"), "(response pending in the device)")
		} else {
			console.Printf("%s\n", console.Yellow("HIGH"))
		}
		return nil
	},
}
