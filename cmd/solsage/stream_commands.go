package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solsage/client"
	natspkg "github.com/brojonat/solsage/service/nats"
	"github.com/urfave/cli/v2"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream operation events via SSE",
		ArgsUsage: "[wallet_address]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq filter each event must satisfy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQ(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !c.Bool("json") {
				fmt.Fprintf(c.App.ErrWriter, "Streaming operations... (Ctrl+C to stop)\n\n")
			}

			err = newClient(c).StreamOperations(ctx, c.Args().First(), func(e *client.OperationEvent) error {
				if len(filters) > 0 {
					v, err := jqValue(e)
					if err != nil || !matchesAll(filters, v) {
						return nil
					}
				}
				if c.Bool("json") {
					return writeJSON(c.App.Writer, e)
				}
				writeEvent(c.App.Writer, e)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func awaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Block until an operation on a view finishes",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "view",
				Usage: "Only match operations of this view (connect, create, mint, send, history)",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "How long to wait",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			viewName := c.String("view")

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("wait"))
			defer cancel()

			e, err := newClient(c).AwaitOperation(ctx, c.Args().First(), func(e *client.OperationEvent) bool {
				return viewName == "" || e.View == viewName
			})
			if err != nil {
				return err
			}
			if c.Bool("json") {
				if err := writeJSON(c.App.Writer, e); err != nil {
					return err
				}
			} else {
				writeEvent(c.App.Writer, e)
			}
			if e.Status == "error" {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func writeEvent(w io.Writer, e *client.OperationEvent) {
	fmt.Fprintf(w, "[%s] %-8s %-8s", e.Timestamp.Format(time.RFC3339), e.View, e.Status)
	switch {
	case e.Error != "":
		fmt.Fprintf(w, " %s", e.Error)
	case e.Message != "":
		fmt.Fprintf(w, " %s", e.Message)
	}
	if e.Signature != "" {
		fmt.Fprintf(w, " (%s)", e.Signature)
	}
	fmt.Fprintln(w)
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the OPERATIONS JetStream stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
		},
		Action: func(c *cli.Context) error {
			nc, js, err := natspkg.Connect(c.String("nats-url"), "solsage-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}
			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, info)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
