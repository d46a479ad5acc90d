package vault

import (
	"errors"
	"testing"
	"time"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v := New(t.TempDir())
	t.Cleanup(func() { v.Lock() })
	return v
}

func initAndUnlock(t *testing.T, v *Vault, password string) {
	t.Helper()
	if err := v.Initialize(password, InitOptions{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func TestInitializeTransitionsToUnlocked(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if got := v.GetState(); got != StateUnlocked {
		t.Fatalf("expected UNLOCKED after initialize, got %s", got)
	}
}

func TestInitializeTwiceFailsWithoutForce(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")
	v.Lock()

	if err := v.Initialize("AnotherPassword123!", InitOptions{}); !errors.Is(err, ErrVaultAlreadyInitialized) {
		t.Fatalf("expected ErrVaultAlreadyInitialized, got %v", err)
	}
}

func TestAddAndGetSecretDevFallbackToAll(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if _, err := v.AddSecret("DATABASE_URL", "postgres://localhost/db", "dev", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	got, found, err := v.GetSecret("DATABASE_URL", "dev")
	if err != nil || !found {
		t.Fatalf("GetSecret: found=%v err=%v", found, err)
	}
	if got != "postgres://localhost/db" {
		t.Fatalf("got %q", got)
	}

	if _, err := v.AddSecret("API_KEY", "key123", "all", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}
	got, found, err = v.GetSecret("API_KEY", "dev")
	if err != nil || !found || got != "key123" {
		t.Fatalf("expected fallback to 'all' row, got %q found=%v err=%v", got, found, err)
	}
}

func TestEnvironmentSpecificRowWinsOverAll(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if _, err := v.AddSecret("API_KEY", "dev-db", "dev", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret dev: %v", err)
	}
	if _, err := v.AddSecret("API_KEY", "prod-db", "prod", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret prod: %v", err)
	}

	devVal, _, _ := v.GetSecret("API_KEY", "dev")
	prodVal, _, _ := v.GetSecret("API_KEY", "prod")
	if devVal != "dev-db" || prodVal != "prod-db" {
		t.Fatalf("expected independent values, got dev=%q prod=%q", devVal, prodVal)
	}
}

func TestRotateSecretExcludesEnvironment(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if _, err := v.AddSecret("API_KEY", "old-key", "dev", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret dev: %v", err)
	}
	if _, err := v.AddSecret("API_KEY", "old-key", "prod", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret prod: %v", err)
	}

	count, err := v.RotateSecret("API_KEY", "new-key", []string{"prod"})
	if err != nil {
		t.Fatalf("RotateSecret: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row rotated, got %d", count)
	}

	devVal, _, _ := v.GetSecret("API_KEY", "dev")
	prodVal, _, _ := v.GetSecret("API_KEY", "prod")
	if devVal != "new-key" {
		t.Fatalf("expected dev rotated, got %q", devVal)
	}
	if prodVal != "old-key" {
		t.Fatalf("expected prod untouched, got %q", prodVal)
	}
}

func TestThreeWrongUnlocksLockOut(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")
	v.Lock()

	for i := 0; i < MaxFailedAttempts-1; i++ {
		err := v.Unlock("WrongPassword!", UnlockOptions{})
		var wp *WrongPasswordError
		if !errors.As(err, &wp) {
			t.Fatalf("attempt %d: expected *WrongPasswordError, got %v", i, err)
		}
	}

	err := v.Unlock("WrongPassword!", UnlockOptions{})
	var lo *LockedOutError
	if !errors.As(err, &lo) {
		t.Fatalf("expected *LockedOutError on the %dth attempt, got %v", MaxFailedAttempts, err)
	}

	// Even the correct password is rejected inside the lockout window.
	err = v.Unlock("TestPassword123!", UnlockOptions{})
	if !errors.As(err, &lo) {
		t.Fatalf("expected lockout to reject the correct password too, got %v", err)
	}
}

func TestListSecretsFiltersByEnvironment(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if _, err := v.AddSecret("A", "1", "dev", AddSecretOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddSecret("B", "2", "dev", AddSecretOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddSecret("C", "3", "prod", AddSecretOptions{}); err != nil {
		t.Fatal(err)
	}

	all, err := v.ListSecrets("")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 secrets total, got %d (err=%v)", len(all), err)
	}

	devOnly, err := v.ListSecrets("dev")
	if err != nil || len(devOnly) != 2 {
		t.Fatalf("expected 2 dev secrets, got %d (err=%v)", len(devOnly), err)
	}
}

func TestChangeMasterPasswordPreservesSecrets(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "OldPassword123!")

	if _, err := v.AddSecret("API_KEY", "key123", "all", AddSecretOptions{}); err != nil {
		t.Fatalf("AddSecret: %v", err)
	}

	if err := v.ChangeMasterPassword("OldPassword123!", "NewPassword456!"); err != nil {
		t.Fatalf("ChangeMasterPassword: %v", err)
	}

	got, found, err := v.GetSecret("API_KEY", "all")
	if err != nil || !found || got != "key123" {
		t.Fatalf("expected secret preserved after password change, got %q found=%v err=%v", got, found, err)
	}

	v.Lock()
	if err := v.Unlock("NewPassword456!", UnlockOptions{}); err != nil {
		t.Fatalf("Unlock with new password: %v", err)
	}
}

func TestGetSecretsForSyncMergesAllAndSpecific(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if _, err := v.AddSecret("SHARED", "all-value", "all", AddSecretOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddSecret("SHARED", "dev-value", "dev", AddSecretOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := v.AddSecret("ONLY_ALL", "only-all-value", "all", AddSecretOptions{}); err != nil {
		t.Fatal(err)
	}

	synced, err := v.GetSecretsForSync("dev")
	if err != nil {
		t.Fatalf("GetSecretsForSync: %v", err)
	}
	if synced["SHARED"] != "dev-value" {
		t.Fatalf("expected environment-specific value to win, got %q", synced["SHARED"])
	}
	if synced["ONLY_ALL"] != "only-all-value" {
		t.Fatalf("expected fallback to 'all' value, got %q", synced["ONLY_ALL"])
	}
}

func TestLockIsIdempotent(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if err := v.Lock(); err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	if err := v.Lock(); err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if got := v.GetState(); got != StateLocked {
		t.Fatalf("expected LOCKED, got %s", got)
	}
}

func TestDeleteSecretNotFound(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	if err := v.DeleteSecret("MISSING", "dev"); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestDeleteSecretAllEnvsSilentWhenAbsent(t *testing.T) {
	v := newTestVault(t)
	initAndUnlock(t, v, "TestPassword123!")

	count, err := v.DeleteSecretAllEnvs("MISSING")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestAutoLockTimerFiresAfterTimeout(t *testing.T) {
	v := newTestVault(t)
	if err := v.Initialize("TestPassword123!", InitOptions{Timeout: 50 * time.Millisecond}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if got := v.GetState(); got != StateLocked {
		t.Fatalf("expected auto-lock to fire, state is %s", got)
	}
}
