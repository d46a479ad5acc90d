package vault

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imrajyavardhan12/secrets-manager/internal/store"
	"github.com/imrajyavardhan12/secrets-manager/pkg/audit"
	"github.com/imrajyavardhan12/secrets-manager/pkg/validate"
)

// AddSecret inserts a new (key, environment) row. Requires UNLOCKED.
func (v *Vault) AddSecret(key, value, environment string, opts AddSecretOptions) (*Secret, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}
	if environment == "" {
		environment = validate.DefaultEnvironment
	}
	if err := validate.ValidateSecretKey(key); err != nil {
		return nil, err
	}
	if err := validate.ValidateEnvironment(environment); err != nil {
		return nil, err
	}
	if len([]byte(value)) > MaxSecretValueSize {
		return nil, ErrSecretValueTooLarge
	}
	if len(opts.Tags) > 0 {
		if err := validate.ValidateTags(opts.Tags); err != nil {
			return nil, err
		}
	}

	if _, err := v.store.GetSecretExact(key, environment); err == nil {
		return nil, ErrSecretAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ciphertext, err := encryptValue(v.masterKey, value)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	row := &store.SecretRow{
		ID:          uuid.NewString(),
		Key:         key,
		Value:       ciphertext,
		Environment: environment,
		CreatedAt:   now.UnixMilli(),
		UpdatedAt:   now.UnixMilli(),
	}
	applyOptionalFields(row, opts.Description, opts.Tags, opts.ExpiresAt)

	if err := v.store.InsertSecret(row); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrSecretAlreadyExists
		}
		return nil, err
	}

	v.logAudit(audit.ActionWrite, key, environment)

	return secretFromRow(row), nil
}

// GetSecret looks up (key, environment); if absent and environment is not
// "all", falls back to (key, "all"). Returns found=false rather than an
// error when no row matches at all.
func (v *Vault) GetSecret(key, environment string) (plaintext string, found bool, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return "", false, err
	}
	if environment == "" {
		environment = validate.DefaultEnvironment
	}

	row, err := v.lookupWithFallback(key, environment)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	plaintext, err = decryptValue(v.masterKey, row.Value)
	if err != nil {
		return "", false, err
	}

	v.touchLastUsed(row)
	v.logAudit(audit.ActionRead, row.Key, row.Environment)

	return plaintext, true, nil
}

// GetSecretWithDetails is GetSecret plus the full row metadata. The audit
// entry's environment is the matched row's environment, not the one the
// caller requested (relevant when the "all" fallback applies).
func (v *Vault) GetSecretWithDetails(key, environment string) (*SecretDetails, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return nil, false, err
	}
	if environment == "" {
		environment = validate.DefaultEnvironment
	}

	row, err := v.lookupWithFallback(key, environment)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	plaintext, err := decryptValue(v.masterKey, row.Value)
	if err != nil {
		return nil, false, err
	}

	v.touchLastUsed(row)
	v.logAudit(audit.ActionRead, row.Key, row.Environment)

	return &SecretDetails{Secret: *secretFromRow(row), Plaintext: plaintext}, true, nil
}

// ListSecrets returns rows where environment = filter OR environment =
// 'all' (or every row if filter is empty). Values stay ciphertext.
func (v *Vault) ListSecrets(environmentFilter string) ([]*Secret, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	rows, err := v.store.ListSecrets(environmentFilter)
	if err != nil {
		return nil, err
	}
	return secretsFromRows(rows), nil
}

// UpdateSecret overwrites an existing row's value (freshly encrypted) and
// optionally its description/tags. Requires the row to already exist.
func (v *Vault) UpdateSecret(key, value, environment string, opts UpdateSecretOptions) (*Secret, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}
	if environment == "" {
		environment = validate.DefaultEnvironment
	}
	if len([]byte(value)) > MaxSecretValueSize {
		return nil, ErrSecretValueTooLarge
	}
	if opts.TagsSet && len(opts.Tags) > 0 {
		if err := validate.ValidateTags(opts.Tags); err != nil {
			return nil, err
		}
	}

	row, err := v.store.GetSecretExact(key, environment)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}

	ciphertext, err := encryptValue(v.masterKey, value)
	if err != nil {
		return nil, err
	}
	row.Value = ciphertext
	row.UpdatedAt = time.Now().UnixMilli()

	if opts.DescriptionSet {
		if opts.Description == "" {
			row.Description = sql.NullString{}
		} else {
			row.Description = sql.NullString{String: opts.Description, Valid: true}
		}
	}
	if opts.TagsSet {
		if len(opts.Tags) == 0 {
			row.Tags = sql.NullString{}
		} else {
			row.Tags = sql.NullString{String: strings.Join(opts.Tags, ","), Valid: true}
		}
	}

	if err := v.store.UpdateSecret(row); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}

	v.logAudit(audit.ActionWrite, key, environment)

	return secretFromRow(row), nil
}

// DeleteSecret removes the (key, environment) row. Raises SecretNotFound
// if no such row exists.
func (v *Vault) DeleteSecret(key, environment string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return err
	}
	if environment == "" {
		environment = validate.DefaultEnvironment
	}

	n, err := v.store.DeleteSecret(key, environment)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSecretNotFound
	}

	v.logAudit(audit.ActionDelete, key, environment)
	return nil
}

// DeleteSecretAllEnvs removes every row sharing key, across every
// environment, returning the count. Succeeds silently (count 0) if no
// rows matched.
func (v *Vault) DeleteSecretAllEnvs(key string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return 0, err
	}

	n, err := v.store.DeleteSecretAllEnvs(key)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		v.logAudit(audit.ActionDelete, key, "")
	}
	return n, nil
}

// RotateSecret re-encrypts newValue into every row sharing key whose
// environment is not in exclude, each under its own freshly generated
// nonce (never the same AEAD output reused across rows). Returns the
// number of rows rotated.
func (v *Vault) RotateSecret(key, newValue string, exclude []string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return 0, err
	}

	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}

	rows, err := v.store.ListSecretsByKey(key)
	if err != nil {
		return 0, err
	}

	var targets []*store.SecretRow
	for _, r := range rows {
		if !excluded[r.Environment] {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 {
		return 0, ErrSecretNotFound
	}

	count := 0
	for _, r := range targets {
		ciphertext, err := encryptValue(v.masterKey, newValue)
		if err != nil {
			return count, err
		}
		r.Value = ciphertext
		r.UpdatedAt = time.Now().UnixMilli()
		if err := v.store.UpdateSecret(r); err != nil {
			return count, err
		}
		v.logAudit(audit.ActionRotate, r.Key, r.Environment)
		count++
	}

	return count, nil
}

// SearchSecrets performs a case-sensitive substring match against key and
// description, escaping LIKE wildcards in substr.
func (v *Vault) SearchSecrets(substr string) ([]*Secret, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}

	rows, err := v.store.SearchSecrets(likePattern(substr))
	if err != nil {
		return nil, err
	}
	// SQLite's LIKE ignores ASCII case, so re-check each candidate.
	matched := rows[:0]
	for _, r := range rows {
		if strings.Contains(r.Key, substr) || (r.Description.Valid && strings.Contains(r.Description.String, substr)) {
			matched = append(matched, r)
		}
	}
	return secretsFromRows(matched), nil
}

// GetSecretsForSync decrypts every row visible to environment, with the
// environment-specific row winning over the 'all' fallback when both
// exist for the same key.
func (v *Vault) GetSecretsForSync(environment string) (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireUnlocked(); err != nil {
		return nil, err
	}
	if environment == "" {
		environment = validate.DefaultEnvironment
	}

	rows, err := v.store.ListSecretsForSync(environment)
	if err != nil {
		return nil, err
	}

	chosen := make(map[string]*store.SecretRow)
	for _, r := range rows {
		if r.Environment == validate.DefaultEnvironment {
			chosen[r.Key] = r
		}
	}
	for _, r := range rows {
		if r.Environment == environment {
			chosen[r.Key] = r
		}
	}

	result := make(map[string]string, len(chosen))
	for key, r := range chosen {
		plaintext, err := decryptValue(v.masterKey, r.Value)
		if err != nil {
			return nil, err
		}
		result[key] = plaintext
	}
	return result, nil
}

// lookupWithFallback looks up (key, environment) exactly; if absent and
// environment isn't "all", it falls back to (key, "all"). Callers must
// hold v.mu.
func (v *Vault) lookupWithFallback(key, environment string) (*store.SecretRow, error) {
	row, err := v.store.GetSecretExact(key, environment)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if environment == validate.DefaultEnvironment {
		return nil, store.ErrNotFound
	}
	return v.store.GetSecretExact(key, validate.DefaultEnvironment)
}

func (v *Vault) touchLastUsed(row *store.SecretRow) {
	if err := v.store.TouchLastUsed(row.ID, time.Now().UnixMilli()); err != nil {
		warnStderr("failed to update last_used_at: %v", err)
	}
}

func applyOptionalFields(row *store.SecretRow, description string, tags []string, expiresAt *time.Time) {
	if description != "" {
		row.Description = sql.NullString{String: description, Valid: true}
	}
	if len(tags) > 0 {
		row.Tags = sql.NullString{String: strings.Join(tags, ","), Valid: true}
	}
	if expiresAt != nil {
		row.ExpiresAt = sql.NullInt64{Int64: expiresAt.UnixMilli(), Valid: true}
	}
}

func secretFromRow(r *store.SecretRow) *Secret {
	s := &Secret{
		ID:          r.ID,
		Key:         r.Key,
		Value:       r.Value,
		Environment: r.Environment,
		CreatedAt:   time.UnixMilli(r.CreatedAt),
		UpdatedAt:   time.UnixMilli(r.UpdatedAt),
	}
	if r.Description.Valid {
		s.Description = r.Description.String
	}
	if r.Tags.Valid && r.Tags.String != "" {
		s.Tags = strings.Split(r.Tags.String, ",")
	}
	if r.LastUsedAt.Valid {
		t := time.UnixMilli(r.LastUsedAt.Int64)
		s.LastUsedAt = &t
	}
	if r.ExpiresAt.Valid {
		t := time.UnixMilli(r.ExpiresAt.Int64)
		s.ExpiresAt = &t
	}
	return s
}

func secretsFromRows(rows []*store.SecretRow) []*Secret {
	out := make([]*Secret, 0, len(rows))
	for _, r := range rows {
		out = append(out, secretFromRow(r))
	}
	return out
}

func likePattern(substr string) string {
	escaped := strings.ReplaceAll(substr, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `%`, `\%`)
	escaped = strings.ReplaceAll(escaped, `_`, `\_`)
	return "%" + escaped + "%"
}
