package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Checks vault integrity: permissions, schema, and database health",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := v.Health()
		if err != nil {
			return err
		}

		fmt.Printf("Permissions valid:  %v\n", result.PermissionsValid)
		fmt.Printf("Schema complete:    %v\n", result.SchemaComplete)
		fmt.Printf("Database integrity: %v\n", result.DBIntegrityOK)
		fmt.Printf("Salt present:       %v\n", result.SaltPresent)
		fmt.Println()
		if result.Valid {
			fmt.Println("Vault is healthy.")
			return nil
		}

		fmt.Println("Vault has issues:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("vault failed health check")
	},
}
