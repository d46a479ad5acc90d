package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imrajyavardhan12/secrets-manager/pkg/validate"
	"github.com/imrajyavardhan12/secrets-manager/pkg/vault"
)

var (
	addEnvironment    string
	addDescription    string
	addTags           string
	getEnvironment    string
	listEnvironment   string
	updateEnvironment string
	updateDescription string
	updateTags        string
	deleteEnvironment string
	deleteAllEnvs     bool
	rotateExclude     string
	syncEnvironment   string
	syncFormat        string
)

func init() {
	addCmd.Flags().StringVarP(&addEnvironment, "env", "e", validate.DefaultEnvironment, "environment (dev, staging, prod, all)")
	addCmd.Flags().StringVar(&addDescription, "description", "", "optional description")
	addCmd.Flags().StringVar(&addTags, "tags", "", "comma-separated tags")

	getCmd.Flags().StringVarP(&getEnvironment, "env", "e", validate.DefaultEnvironment, "environment to look up")

	listCmd.Flags().StringVarP(&listEnvironment, "env", "e", "", "filter by environment")

	updateCmd.Flags().StringVarP(&updateEnvironment, "env", "e", validate.DefaultEnvironment, "environment")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "new description")
	updateCmd.Flags().StringVar(&updateTags, "tags", "", "comma-separated tags")

	deleteCmd.Flags().StringVarP(&deleteEnvironment, "env", "e", validate.DefaultEnvironment, "environment")
	deleteCmd.Flags().BoolVar(&deleteAllEnvs, "all-envs", false, "delete this key across every environment")

	rotateCmd.Flags().StringVar(&rotateExclude, "exclude", "", "comma-separated environments to leave untouched")

	syncCmd.Flags().StringVarP(&syncEnvironment, "env", "e", "dev", "environment to sync secrets for")
	syncCmd.Flags().StringVar(&syncFormat, "format", "env", "output format: env or json")
}

var addCmd = &cobra.Command{
	Use:   "add [key]",
	Short: "Adds a new secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := ensureUnlocked(); err != nil {
			return err
		}

		value, err := readSecretValue()
		if err != nil {
			return err
		}

		_, err = v.AddSecret(key, value, addEnvironment, vault.AddSecretOptions{
			Description: addDescription,
			Tags:        splitTags(addTags),
		})
		if err != nil {
			if errors.Is(err, vault.ErrSecretAlreadyExists) {
				return fmt.Errorf("secret %q already exists for environment %q", key, addEnvironment)
			}
			return err
		}
		fmt.Printf("Secret %q added for environment %q\n", key, addEnvironment)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Retrieves a secret's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := ensureUnlocked(); err != nil {
			return err
		}

		value, found, err := v.GetSecret(key, getEnvironment)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("secret %q not found for environment %q", key, getEnvironment)
		}
		fmt.Println(value)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists secret keys and metadata (never their values)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}

		secrets, err := v.ListSecrets(listEnvironment)
		if err != nil {
			return err
		}
		if len(secrets) == 0 {
			fmt.Println("No secrets found.")
			return nil
		}
		for _, s := range secrets {
			fmt.Printf("%-30s %-10s %s\n", s.Key, s.Environment, strings.Join(s.Tags, ","))
		}
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [key]",
	Short: "Updates a secret's value and/or metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := ensureUnlocked(); err != nil {
			return err
		}

		value, err := readSecretValue()
		if err != nil {
			return err
		}

		opts := vault.UpdateSecretOptions{}
		if cmd.Flags().Changed("description") {
			opts.Description = updateDescription
			opts.DescriptionSet = true
		}
		if cmd.Flags().Changed("tags") {
			opts.Tags = splitTags(updateTags)
			opts.TagsSet = true
		}

		if _, err := v.UpdateSecret(key, value, updateEnvironment, opts); err != nil {
			if errors.Is(err, vault.ErrSecretNotFound) {
				return fmt.Errorf("secret %q not found for environment %q", key, updateEnvironment)
			}
			return err
		}
		fmt.Printf("Secret %q updated for environment %q\n", key, updateEnvironment)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete [key]",
	Aliases: []string{"rm"},
	Short:   "Deletes a secret",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := ensureUnlocked(); err != nil {
			return err
		}

		if deleteAllEnvs {
			count, err := v.DeleteSecretAllEnvs(key)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %q across %d environment(s)\n", key, count)
			return nil
		}

		if err := v.DeleteSecret(key, deleteEnvironment); err != nil {
			if errors.Is(err, vault.ErrSecretNotFound) {
				return fmt.Errorf("secret %q not found for environment %q", key, deleteEnvironment)
			}
			return err
		}
		fmt.Printf("Secret %q deleted from environment %q\n", key, deleteEnvironment)
		return nil
	},
}

var rotateCmd = &cobra.Command{
	Use:   "rotate [key]",
	Short: "Rotates a secret's value across every environment except excluded ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := ensureUnlocked(); err != nil {
			return err
		}

		newValue, err := readSecretValue()
		if err != nil {
			return err
		}

		count, err := v.RotateSecret(key, newValue, splitTags(rotateExclude))
		if err != nil {
			if errors.Is(err, vault.ErrSecretNotFound) {
				return fmt.Errorf("secret %q not found", key)
			}
			return err
		}
		fmt.Printf("Rotated %q across %d environment(s)\n", key, count)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [substring]",
	Short: "Searches secret keys by substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		results, err := v.SearchSecrets(args[0])
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matches found.")
			return nil
		}
		for _, s := range results {
			fmt.Printf("%-30s %s\n", s.Key, s.Environment)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Prints every secret resolved for an environment, merging 'all' fallbacks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureUnlocked(); err != nil {
			return err
		}
		secrets, err := v.GetSecretsForSync(syncEnvironment)
		if err != nil {
			return err
		}

		if syncFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(secrets)
		}
		for key, value := range secrets {
			fmt.Printf("%s=%s\n", key, value)
		}
		return nil
	},
}

func readSecretValue() (string, error) {
	fmt.Fprint(os.Stderr, "Enter secret value (Ctrl+D to finish): ")
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read secret value: %w", err)
	}
	value := strings.TrimSuffix(string(data), "\n")
	value = strings.TrimSuffix(value, "\r")
	return value, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
