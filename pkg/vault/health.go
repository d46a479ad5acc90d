package vault

import "github.com/imrajyavardhan12/secrets-manager/internal/store"

// Health runs a read-only integrity check against the vault root. It does
// not require the vault to be unlocked, since it inspects file
// permissions and schema shape rather than any secret's value.
func (v *Vault) Health() (*store.HealthResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !store.VaultExists(v.root) {
		return nil, ErrVaultNotInitialized
	}
	return store.CheckHealth(v.root)
}
