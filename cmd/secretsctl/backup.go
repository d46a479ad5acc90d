package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imrajyavardhan12/secrets-manager/pkg/backup"
)

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

var backupUsePassword bool

func init() {
	backupCmd.Flags().BoolVar(&backupUsePassword, "backup-password", false, "encrypt the backup with a separate password instead of storing it in the clear")
}

func backupsDir() string {
	return filepath.Join(vaultPath, "backups")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Creates a backup of the vault database",
	Long: `Creates a timestamped copy of the vault database under the backups
directory. Pass --backup-password to encrypt it with a separate password;
without it, the backup is written as a plain copy of the already-encrypted
vault database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		secrets, err := v.ListSecrets("")
		if err != nil {
			return err
		}

		password := ""
		if backupUsePassword {
			pwd, err := promptBackupPassword()
			if err != nil {
				return err
			}
			password = pwd
		}

		path, err := backup.Create(vaultPath, backupsDir(), password, len(secrets), time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backup created: %s\n", path)
		return nil
	},
}

var listBackupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Lists available backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := backup.List(backupsDir())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		for _, info := range infos {
			size, err := fileSize(info.Path)
			sizeStr := "unknown"
			if err == nil {
				sizeStr = humanize.Bytes(uint64(size))
			}
			created := time.UnixMilli(info.Metadata.CreatedAt).Format(time.RFC3339)
			fmt.Printf("%-50s %-10s secrets=%-6d %s\n", filepath.Base(info.Path), sizeStr, info.Metadata.SecretsCount, created)
		}
		return nil
	},
}

func promptBackupPassword() (string, error) {
	fmt.Print("Enter backup password: ")
	password1, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm backup password: ")
	password2, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password1) != string(password2) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password1), nil
}
