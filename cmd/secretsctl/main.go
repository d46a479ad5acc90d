// Command secretsctl is a local-first encrypted secrets vault for
// developers: environment-scoped secrets, brute-force lockout,
// backup/restore, and portable export/import, all backed by a single
// SQLite file per vault.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
