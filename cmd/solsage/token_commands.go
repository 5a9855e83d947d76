package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func tokenCommands() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "SPL token commands",
		Subcommands: []*cli.Command{
			createTokenCommand(),
			mintTokenCommand(),
			sendTokenCommand(),
		},
	}
}

func createTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a new token mint owned by the connected wallet",
		ArgsUsage: "NAME SYMBOL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "decimals",
				Usage: "Token decimals (0-9)",
				Value: "6",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("token name and symbol are required")
			}
			m, err := newClient(c).CreateMint(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("decimals"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, m)
			}
			fmt.Fprintf(c.App.Writer, "✓ %s\n", m.Message)
			fmt.Fprintf(c.App.Writer, "  Mint:      %s\n", m.Mint)
			fmt.Fprintf(c.App.Writer, "  Signature: %s\n", m.Signature)
			fmt.Fprintf(c.App.Writer, "  Explorer:  %s\n", m.ExplorerURL)
			return nil
		},
	}
}

func mintTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "mint",
		Usage:     "Mint supply of a token into the connected wallet",
		ArgsUsage: "MINT AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("mint address and amount are required")
			}
			m, err := newClient(c).MintSupply(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, m)
			}
			fmt.Fprintf(c.App.Writer, "✓ %s\n", m.Message)
			if m.DestinationCreated {
				fmt.Fprintf(c.App.Writer, "  Created token account %s\n", m.Destination)
			}
			fmt.Fprintf(c.App.Writer, "  Signature: %s\n", m.Signature)
			return nil
		},
	}
}

func sendTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send tokens from the connected wallet",
		ArgsUsage: "MINT RECIPIENT AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("mint address, recipient and amount are required")
			}
			args := c.Args()
			tr, err := newClient(c).Transfer(c.Context, args.Get(0), args.Get(1), args.Get(2))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSON(c.App.Writer, tr)
			}
			fmt.Fprintf(c.App.Writer, "✓ %s\n", tr.Message)
			if tr.DestinationCreated {
				fmt.Fprintf(c.App.Writer, "  Created token account %s for the recipient\n", tr.Destination)
			}
			fmt.Fprintf(c.App.Writer, "  Signature: %s\n", tr.Signature)
			return nil
		},
	}
}
