package main

import (
	"encoding/hex"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pn532"
	"github.com/mklimuk/pn532/cmd/pn532/console"
)

var pollFlags = []cli.Flag{
	&cli.DurationFlag{
		Name:  "interval",
		Usage: "readiness poll interval for status and irq transports",
	},
	&cli.DurationFlag{
		Name:  "timeout",
		Usage: "give up waiting for the device after this long",
	},
}

var frameCmd = cli.Command{
	Name:  "frame",
	Usage: "raw frame exchange",
	Subcommands: []*cli.Command{
		&frameSendCmd,
		&framePollCmd,
		&frameReadCmd,
	},
}

var frameSendCmd = cli.Command{
	Name:      "send",
	Usage:     "write a frame, wait until ready and read the response",
	ArgsUsage: "<hex frame>",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "length", Aliases: []string{"n"}, Usage: "response bytes to read", Value: 6},
	}, pollFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		frame, err := decodeFrame(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not decode frame: %v", err)
		}
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeSession(s)
		ctx, cancel := s.context(c)
		defer cancel()
		resp, err := s.exchange(ctx, frame, c.Int("length"))
		if err != nil {
			return console.Exit(1, "exchange failed: %s", console.Red(err))
		}
		console.Printf("%s", hex.Dump(resp))
		return nil
	},
}

var framePollCmd = cli.Command{
	Name:  "poll",
	Usage: "check once whether a response is available",
	Action: func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeSession(s)
		if s.link == nil {
			return console.Exit(1, "poll needs the status or irq transport")
		}
		ctx, cancel := s.context(c)
		defer cancel()
		p, err := s.link.WaitReady(ctx)
		if err != nil {
			return console.Exit(1, "readiness check failed: %s", console.Red(err))
		}
		if p == pn532.Ready {
			console.Printf("%s\n", console.Green(p))
		} else {
			console.Printf("%s\n", console.Yellow(p))
		}
		return nil
	},
}

var frameReadCmd = cli.Command{
	Name:  "read",
	Usage: "read a pending response without writing",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "length", Aliases: []string{"n"}, Usage: "response bytes to read", Value: 6},
	},
	Action: func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeSession(s)
		ctx, cancel := s.context(c)
		defer cancel()
		buf := make([]byte, c.Int("length"))
		if err := s.read(ctx, buf); err != nil {
			return console.Exit(1, "read failed: %s", console.Red(err))
		}
		console.Printf("%s", hex.Dump(buf))
		return nil
	},
}

// decodeFrame accepts hex with optional spaces, colons or a 0x prefix.
func decodeFrame(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	return hex.DecodeString(s)
}

func closeSession(s *session) {
	if err := s.Close(); err != nil {
		console.Errorf("error closing bus: %s", console.Red(err))
	}
}
