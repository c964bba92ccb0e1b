package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ent0n29/gbird/internal/app"
	"github.com/ent0n29/gbird/internal/memory"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the persisted mission log, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := app.OpenMemory(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()
			return printHistory(cmd.OutOrStdout(), store.Recent(limit), asJSON)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 8, "Number of turns to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printHistory(out io.Writer, turns []memory.Turn, asJSON bool) error {
	slices.Reverse(turns)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(turns)
	}
	if len(turns) == 0 {
		_, err := fmt.Fprintln(out, "mission log is empty")
		return err
	}
	for _, t := range turns {
		if _, err := fmt.Fprintf(out, "%s  %-5s [%s] %s\n", t.Timestamp.Local().Format("15:04:05"), t.Label(), t.Channel, t.Text); err != nil {
			return err
		}
	}
	return nil
}
