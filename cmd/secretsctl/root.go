package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imrajyavardhan12/secrets-manager/pkg/config"
	"github.com/imrajyavardhan12/secrets-manager/pkg/crypto"
	"github.com/imrajyavardhan12/secrets-manager/pkg/session"
	"github.com/imrajyavardhan12/secrets-manager/pkg/vault"
)

var (
	vaultPath  string
	v          *vault.Vault
	sessionCac *session.Cache
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "secretsctl",
	Short: "secretsctl is a local-first encrypted secrets vault",
	Long:  `A fast, local-first secrets manager for developers, backed by a single encrypted SQLite file per vault.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if vaultPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			vaultPath = filepath.Join(home, ".secrets-manager")
		}
		v = vault.New(vaultPath)
		sessionCac = session.New(vaultPath)

		loaded, err := config.Load(vaultPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault-path", "", "vault directory (default: ~/.secrets-manager)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(rotateCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(passwordCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(listBackupsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// ensureUnlocked loads a cached session if one is valid, falling back to
// an interactive password prompt (with lockout/retry handling) otherwise.
// A freshly derived or session-restored key is re-cached so the next CLI
// invocation in the same terminal session doesn't have to prompt again.
func ensureUnlocked() error {
	if !v.IsLocked() {
		return nil
	}

	if key, err := sessionCac.LoadSession(); err == nil && key != nil {
		if unlockErr := v.UnlockWithKey(key, 0); unlockErr == nil {
			crypto.Zeroize(key)
			extendSessionBestEffort()
			return nil
		}
		crypto.Zeroize(key)
		sessionCac.DeleteSession()
	}

	return promptAndUnlock()
}

func promptAndUnlock() error {
	for {
		fmt.Print("Enter master password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password := string(passwordBytes)

		err = v.Unlock(password, vault.UnlockOptions{})
		if err == nil {
			cacheSessionBestEffort()
			return nil
		}

		var wrongPw *vault.WrongPasswordError
		if errors.As(err, &wrongPw) {
			fmt.Printf("Incorrect password, %d attempt(s) remaining.\n", wrongPw.AttemptsRemaining)
			continue
		}

		var lockedOut *vault.LockedOutError
		if errors.As(err, &lockedOut) {
			return fmt.Errorf("vault locked out, try again in %d seconds", lockedOut.SecondsRemaining)
		}

		return fmt.Errorf("failed to unlock vault: %w", err)
	}
}

func cacheSessionBestEffort() {
	key, err := v.MasterKeyCopy()
	if err != nil {
		return
	}
	defer crypto.Zeroize(key)
	if err := sessionCac.SaveSession(key, cfg.SessionTimeoutMinutes); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to cache session: %v\n", err)
	}
}

func extendSessionBestEffort() {
	if _, err := sessionCac.ExtendSession(cfg.SessionTimeoutMinutes); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to extend session: %v\n", err)
	}
}
