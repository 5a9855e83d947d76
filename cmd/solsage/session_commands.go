package main

import (
	"fmt"
	"io"

	"github.com/brojonat/solsage/client"
	"github.com/urfave/cli/v2"
)

func sessionCommands() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Wallet session commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the connected wallet",
				Action: func(c *cli.Context) error {
					s, err := newClient(c).Session(c.Context)
					if err != nil {
						return err
					}
					return printSession(c, s)
				},
			},
			{
				Name:  "connect",
				Usage: "Connect the server's wallet",
				Action: func(c *cli.Context) error {
					s, err := newClient(c).Connect(c.Context)
					if err != nil {
						return err
					}
					return printSession(c, s)
				},
			},
			{
				Name:  "disconnect",
				Usage: "Disconnect the wallet (no-op when none is connected)",
				Action: func(c *cli.Context) error {
					if err := newClient(c).Disconnect(c.Context); err != nil {
						return err
					}
					if !c.Bool("json") {
						fmt.Fprintln(c.App.Writer, "Wallet disconnected")
					}
					return nil
				},
			},
			{
				Name:  "balance",
				Usage: "Refresh and show the wallet's SOL balance",
				Action: func(c *cli.Context) error {
					s, err := newClient(c).RefreshBalance(c.Context)
					if err != nil {
						return err
					}
					return printSession(c, s)
				},
			},
		},
	}
}

func printSession(c *cli.Context, s *client.Session) error {
	if c.Bool("json") {
		return writeJSON(c.App.Writer, s)
	}
	writeSession(c.App.Writer, s)
	return nil
}

func writeSession(w io.Writer, s *client.Session) {
	if !s.Connected {
		fmt.Fprintln(w, "No wallet connected")
		return
	}
	fmt.Fprintf(w, "Address: %s\n", s.Address)
	if s.BalanceSOL != "" {
		fmt.Fprintf(w, "Balance: %s SOL\n", s.BalanceSOL)
	} else {
		fmt.Fprintln(w, "Balance: unknown")
	}
}
