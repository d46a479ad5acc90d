package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imrajyavardhan12/secrets-manager/pkg/backup"
)

var restoreForce bool

func init() {
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "skip the confirmation prompt")
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restores the vault from a backup file",
	Long: `Restores the vault database from a backup created by "backup". A
snapshot of the current vault database is taken before the restore so it
can be recovered manually if the wrong backup is chosen. Any cached
session is dropped since it no longer matches the restored vault.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backupPath := args[0]

		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			return fmt.Errorf("backup file not found: %s", backupPath)
		}

		password := ""
		fmt.Print("Enter backup password (leave blank if the backup is unencrypted): ")
		pwd, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(pwd)

		if !restoreForce {
			fmt.Print("This will overwrite the current vault. Continue? [y/N]: ")
			var confirm string
			fmt.Scanln(&confirm)
			if confirm != "y" && confirm != "Y" {
				fmt.Println("Restore cancelled.")
				return nil
			}
		}

		v.Lock()
		if err := sessionCac.DeleteSession(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to clear stale session: %v\n", err)
		}

		meta, err := backup.Restore(backupPath, vaultPath, backupsDir(), password, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		created := time.UnixMilli(meta.CreatedAt).Format(time.RFC3339)
		fmt.Printf("Restore complete. Backup contained %d secret(s), created at %s.\n", meta.SecretsCount, created)
		return nil
	},
}
