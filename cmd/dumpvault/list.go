// Dumpvault - Encrypted Database Backups and Upload Hygiene for Messenger Deployments
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dumpvault

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/dumpvault/internal/dumpstore"
)

var (
	listJSON bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List bundles, newest first",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(listCmd)
}

// bundleRow is one line of list output.
type bundleRow struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	State     string    `json:"state"`
	SizeBytes int64     `json:"size_bytes"`
}

func runList(cmd *cobra.Command, _ []string) error {
	a := current
	defer a.manager.Recover()

	store, err := a.store()
	if err != nil {
		return err
	}
	bundles, err := store.List()
	if err != nil {
		return err
	}
	return writeBundles(cmd.OutOrStdout(), bundleRows(bundles), listJSON)
}

func bundleRows(bundles []*dumpstore.Bundle) []bundleRow {
	rows := make([]bundleRow, 0, len(bundles))
	for _, b := range bundles {
		row := bundleRow{Name: b.Name, CreatedAt: b.CreatedAt, State: bundleState(b)}
		if fi, err := os.Stat(b.EncryptedPath()); err == nil {
			row.SizeBytes = fi.Size()
		}
		rows = append(rows, row)
	}
	return rows
}

// bundleState is "complete", "restorable" (artifact present but the
// plaintext was never removed) or "incomplete".
func bundleState(b *dumpstore.Bundle) string {
	switch {
	case b.Complete():
		return "complete"
	case b.Restorable():
		return "restorable"
	default:
		return "incomplete"
	}
}

func writeBundles(w io.Writer, rows []bundleRow, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal bundles: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no bundles")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tSTATE\tSIZE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.CreatedAt.Format(time.RFC3339), r.State, humanBytes(r.SizeBytes))
	}
	return tw.Flush()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
