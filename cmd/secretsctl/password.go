package main

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imrajyavardhan12/secrets-manager/pkg/validate"
	"github.com/imrajyavardhan12/secrets-manager/pkg/vault"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Master password operations",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the master password",
	Long: `Re-encrypts every secret and the verification sentinel under a
freshly derived key. The operation runs in a single transaction: it either
fully succeeds or leaves the vault untouched. Any cached session is dropped
since it was sealed under the old key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		fmt.Print("Enter current password: ")
		currentPassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Print("Enter new password: ")
		newPassword1, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Print("Confirm new password: ")
		newPassword2, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		if string(newPassword1) != string(newPassword2) {
			return errors.New("new passwords do not match")
		}

		result := validate.ValidatePassword(string(newPassword1))
		if !result.Valid {
			return fmt.Errorf("password does not meet requirements: %v", result.Errors)
		}
		fmt.Printf("New password strength: %s\n", result.Strength)

		if err := v.ChangeMasterPassword(string(currentPassword), string(newPassword1)); err != nil {
			if errors.Is(err, vault.ErrWrongPassword) {
				return errors.New("current password is incorrect")
			}
			return fmt.Errorf("failed to change password: %w", err)
		}

		if err := sessionCac.DeleteSession(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to clear stale session: %v\n", err)
		}
		cacheSessionBestEffort()

		fmt.Println("Password changed successfully.")
		return nil
	},
}

func init() {
	passwordCmd.AddCommand(passwordChangeCmd)
}
