package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/solsage/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Aliases:   []string{"txns"},
		Usage:     "List recent transactions of the connected wallet or an address",
		ArgsUsage: "[ADDRESS]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "How many transactions to fetch (server default when 0)",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq filter each transaction must satisfy (repeatable), e.g. '.kind == \"transfer\"'",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQ(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			h, err := newClient(c).History(c.Context, c.Args().First(), c.Int("limit"))
			if err != nil {
				return err
			}

			txns, err := filterTransactions(h.Transactions, filters)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, txns)
			}
			writeTransactions(c.App.Writer, h.Address, txns)
			return nil
		},
	}
}

// compileJQ parses and compiles every filter.
func compileJQ(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// jqValue converts v to the plain maps and slices gojq operates on.
func jqValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchesAll reports whether every filter's first result is truthy for v.
func matchesAll(codes []*gojq.Code, v any) bool {
	for _, code := range codes {
		iter := code.Run(v)
		result, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := result.(error); isErr {
			return false
		}
		if !isTruthy(result) {
			return false
		}
	}
	return true
}

func filterTransactions(txns []client.Transaction, codes []*gojq.Code) ([]client.Transaction, error) {
	if len(codes) == 0 {
		return txns, nil
	}
	kept := make([]client.Transaction, 0, len(txns))
	for _, txn := range txns {
		v, err := jqValue(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare transaction for jq: %w", err)
		}
		if matchesAll(codes, v) {
			kept = append(kept, txn)
		}
	}
	return kept, nil
}

func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func writeTransactions(w io.Writer, address string, txns []client.Transaction) {
	if len(txns) == 0 {
		fmt.Fprintf(w, "No transactions found for %s\n", address)
		return
	}
	fmt.Fprintf(w, "Recent transactions for %s\n\n", address)
	for _, txn := range txns {
		status := "ok"
		if txn.Failed {
			status = "failed"
		}
		when := "Unknown time"
		if txn.BlockTime != nil {
			when = txn.BlockTime.Format(time.RFC3339)
		}
		fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Fprintf(w, "Signature:  %s\n", txn.Signature)
		fmt.Fprintf(w, "Slot:       %d\n", txn.Slot)
		fmt.Fprintf(w, "Time:       %s\n", when)
		fmt.Fprintf(w, "Kind:       %s (%s)\n", txn.Kind, status)
		if txn.Kind == "transfer" {
			fmt.Fprintf(w, "From:       %s\n", txn.Source)
			fmt.Fprintf(w, "To:         %s\n", txn.Destination)
			fmt.Fprintf(w, "Amount:     %s\n", txn.AmountDisplay)
		}
		if txn.Error != "" {
			fmt.Fprintf(w, "Error:      %s\n", txn.Error)
		}
		fmt.Fprintf(w, "Explorer:   %s\n", txn.ExplorerURL)
	}
}
