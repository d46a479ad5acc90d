package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/imrajyavardhan12/secrets-manager/pkg/audit"
)

var (
	auditListLimit     int
	auditListKey       string
	auditListAction    string
	auditExportKey     string
	auditExportFormat  string
	auditExportOutput  string
	auditPruneKeepLast int
	auditPruneDryRun   bool
)

func init() {
	auditListCmd.Flags().IntVar(&auditListLimit, "limit", 50, "maximum number of entries to show")
	auditListCmd.Flags().StringVar(&auditListKey, "key", "", "filter by secret key")
	auditListCmd.Flags().StringVar(&auditListAction, "action", "", "filter by action (read, write, delete, rotate, export, import)")

	auditExportCmd.Flags().StringVar(&auditExportKey, "key", "", "filter by secret key")
	auditExportCmd.Flags().StringVar(&auditExportFormat, "format", "json", "output format: json or csv")
	auditExportCmd.Flags().StringVarP(&auditExportOutput, "output", "o", "", "output file (default: stdout)")

	auditPruneCmd.Flags().IntVar(&auditPruneKeepLast, "keep-last", 1000, "number of most recent entries to keep")
	auditPruneCmd.Flags().BoolVar(&auditPruneDryRun, "dry-run", false, "show what would be pruned without making changes")

	auditCmd.AddCommand(auditListCmd, auditExportCmd, auditPruneCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists recent audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		entries, err := v.Audit().GetLogs(audit.Filter{
			SecretKey: auditListKey,
			Action:    auditListAction,
			Limit:     auditListLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit log entries found.")
			return nil
		}
		for _, e := range entries {
			ts := time.UnixMilli(e.Timestamp).Format(time.RFC3339)
			fmt.Printf("%s  %-8s %-20s %-8s %s\n", ts, e.Action, e.SecretKey, e.Environment, e.User)
		}
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports the audit log as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		entries, err := v.Audit().ExportLogs(auditExportKey)
		if err != nil {
			return err
		}

		out := os.Stdout
		if auditExportOutput != "" {
			f, err := os.OpenFile(auditExportOutput, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		switch auditExportFormat {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		case "csv":
			w := csv.NewWriter(out)
			defer w.Flush()
			if err := w.Write([]string{"timestamp", "action", "key", "environment", "user"}); err != nil {
				return err
			}
			for _, e := range entries {
				ts := time.UnixMilli(e.Timestamp).Format(time.RFC3339)
				if err := w.Write([]string{ts, e.Action, e.SecretKey, e.Environment, e.User}); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("unsupported format %q: must be json or csv", auditExportFormat)
		}
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Deletes all but the most recent audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		if auditPruneDryRun {
			count, err := v.Audit().GetLogCount("")
			if err != nil {
				return err
			}
			if count <= auditPruneKeepLast {
				fmt.Println("Nothing to prune.")
				return nil
			}
			fmt.Printf("Would prune %d entries, keeping the %d most recent.\n", count-auditPruneKeepLast, auditPruneKeepLast)
			return nil
		}

		pruned, err := v.Audit().PruneLogs(auditPruneKeepLast)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d audit log entries.\n", pruned)
		return nil
	},
}
