package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/solsage/client"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solsage",
		Usage: "Create, mint and send SPL tokens through a solsage server",
		Description: `A command-line client for the solsage server.

The server holds the wallet; this CLI drives its JSON API and streams
operation events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			sessionCommands(),
			tokenCommands(),
			historyCommand(),
			streamCommand(),
			awaitCommand(),
			{
				Name:  "nats",
				Usage: "NATS operation stream commands",
				Subcommands: []*cli.Command{
					inspectStreamCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Aliases: []string{"s"},
				Usage:   "solsage server URL",
				EnvVars: []string{"SOLSAGE_SERVER_URL", "SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout (token operations wait for confirmation)",
				Value: 2 * time.Minute,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log requests to stderr",
			},
		},
	}
}

// newClient builds an API client from the global flags.
func newClient(c *cli.Context) *client.Client {
	level := slog.LevelError
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	return client.NewClient(c.String("server-url"), nil, logger).WithTimeout(c.Duration("timeout"))
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
