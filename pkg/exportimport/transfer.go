package exportimport

import (
	"errors"

	"github.com/imrajyavardhan12/secrets-manager/pkg/vault"
)

// ExportAll reads every secret's plaintext out of v and returns them as
// portable entries, ready for Encode.
func ExportAll(v *vault.Vault) ([]Entry, error) {
	secrets, err := v.ListSecrets("")
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(secrets))
	for _, s := range secrets {
		details, found, err := v.GetSecretWithDetails(s.Key, s.Environment)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		entries = append(entries, Entry{
			Key:         details.Key,
			Value:       details.Plaintext,
			Environment: details.Environment,
			Description: details.Description,
			Tags:        details.Tags,
		})
	}

	if err := v.Audit().LogExport(len(entries)); err != nil {
		return nil, err
	}
	return entries, nil
}

// ImportAll applies each entry to v via AddSecret, falling back to
// UpdateSecret whenever AddSecret reports the (key, environment) pair
// already exists. Per the spec's observed behavior, this fallback runs
// unconditionally — there is no distinct "--merge" code path, since the
// original implementation treats --merge and the default identically.
func ImportAll(v *vault.Vault, entries []Entry) (added, updated int, err error) {
	for _, entry := range entries {
		opts := vault.AddSecretOptions{
			Description: entry.Description,
			Tags:        entry.Tags,
		}

		_, addErr := v.AddSecret(entry.Key, entry.Value, entry.Environment, opts)
		if addErr == nil {
			added++
			continue
		}
		if !errors.Is(addErr, vault.ErrSecretAlreadyExists) {
			return added, updated, addErr
		}

		updOpts := vault.UpdateSecretOptions{}
		if entry.Description != "" {
			updOpts.Description = entry.Description
			updOpts.DescriptionSet = true
		}
		if len(entry.Tags) > 0 {
			updOpts.Tags = entry.Tags
			updOpts.TagsSet = true
		}
		if _, updErr := v.UpdateSecret(entry.Key, entry.Value, entry.Environment, updOpts); updErr != nil {
			return added, updated, updErr
		}
		updated++
	}

	if err := v.Audit().LogImport(added + updated); err != nil {
		return added, updated, err
	}
	return added, updated, nil
}
