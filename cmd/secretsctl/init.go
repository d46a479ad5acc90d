package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imrajyavardhan12/secrets-manager/pkg/config"
	"github.com/imrajyavardhan12/secrets-manager/pkg/validate"
	"github.com/imrajyavardhan12/secrets-manager/pkg/vault"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "re-initialize over an existing vault")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a new secrets vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print("Enter master password: ")
		password1, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Print("Confirm master password: ")
		password2, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		if string(password1) != string(password2) {
			return fmt.Errorf("passwords do not match")
		}

		result := validate.ValidatePassword(string(password1))
		if !result.Valid {
			return fmt.Errorf("password does not meet requirements: %v", result.Errors)
		}
		fmt.Printf("Password strength: %s\n", result.Strength)

		if err := v.Initialize(string(password1), vault.InitOptions{Force: initForce}); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		if err := config.Save(vaultPath, config.Default()); err != nil {
			return fmt.Errorf("failed to write vault config: %w", err)
		}

		cacheSessionBestEffort()

		fmt.Printf("Vault initialized at %s\n", vaultPath)
		return nil
	},
}
