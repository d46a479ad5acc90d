package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/imrajyavardhan12/secrets-manager/pkg/exportimport"
	"github.com/imrajyavardhan12/secrets-manager/pkg/validate"
)

var (
	exportOutput string
	importInput  string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (required)")
	exportCmd.MarkFlagRequired("output")

	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "input file (required)")
	importCmd.MarkFlagRequired("input")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports every secret to a portable, password-encrypted file",
	Long: `Writes every secret across every environment to a self-contained
encrypted file that can be moved to another machine and imported with
"import". The export password is independent of the vault's master
password and must be at least 8 characters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		password, err := promptExportPassword()
		if err != nil {
			return err
		}

		entries, err := exportimport.ExportAll(v)
		if err != nil {
			return err
		}

		data, err := exportimport.Encode(entries, password)
		if err != nil {
			return err
		}

		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}

		fmt.Printf("Exported %d secret(s) to %s\n", len(entries), exportOutput)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Imports secrets from a file created by \"export\"",
	Long: `Adds every secret from the export file to the vault. A secret
whose (key, environment) pair already exists is updated in place rather
than rejected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		data, err := os.ReadFile(importInput)
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		fmt.Print("Enter export password: ")
		pwd, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		entries, err := exportimport.Decode(data, string(pwd))
		if err != nil {
			return fmt.Errorf("failed to decode import file: %w", err)
		}

		added, updated, err := exportimport.ImportAll(v, entries)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Import complete: %d added, %d updated\n", added, updated)
		return nil
	},
}

func promptExportPassword() (string, error) {
	fmt.Print("Enter export password: ")
	password1, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm export password: ")
	password2, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(password1) != string(password2) {
		return "", fmt.Errorf("passwords do not match")
	}

	if err := validate.ValidateExportPassword(string(password1)); err != nil {
		return "", err
	}

	return string(password1), nil
}
