package main

import (
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pn532/cmd/pn532/console"
)

var shellCmd = cli.Command{
	Name:  "shell",
	Usage: "interactive frame exchange; each line is a hex frame",
	Flags: append([]cli.Flag{
		&cli.IntFlag{Name: "length", Aliases: []string{"n"}, Usage: "response bytes to read", Value: 6},
	}, pollFlags...),
	Action: func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer closeSession(s)
		rl, err := readline.New("pn532> ")
		if err != nil {
			return console.Exit(1, "could not start shell: %v", err)
		}
		defer func() { _ = rl.Close() }()
		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return console.Exit(1, "shell error: %v", err)
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "exit", "quit":
				return nil
			}
			frame, err := decodeFrame(line)
			if err != nil {
				console.Errorf("could not decode frame: %v", err)
				continue
			}
			ctx, cancel := s.context(c)
			resp, err := s.exchange(ctx, frame, c.Int("length"))
			cancel()
			if err != nil {
				console.Errorf("exchange failed: %s", console.Red(err))
				continue
			}
			console.Printf("%s", hex.Dump(resp))
		}
	},
}
