package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Locks the vault and drops the cached session",
	RunE: func(cmd *cobra.Command, args []string) error {
		v.Lock()
		if err := sessionCac.DeleteSession(); err != nil {
			return fmt.Errorf("failed to clear session cache: %w", err)
		}
		fmt.Println("Vault locked.")
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlocks the vault and caches the session for subsequent commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		if lockedOut, seconds, err := v.LockoutStatus(); err == nil && lockedOut {
			return fmt.Errorf("vault locked out, try again in %d seconds", seconds)
		}
		if err := ensureUnlocked(); err != nil {
			return err
		}
		fmt.Println("Vault unlocked.")
		return nil
	},
}
