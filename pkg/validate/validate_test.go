package validate

import "testing"

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		pw       string
		valid    bool
		strength PasswordStrength
	}{
		{"too short", "Ab1!", false, StrengthWeak},
		{"meets minimum", "Abcdefgh123!", true, StrengthMedium},
		{"strong", "Abcdefghijklmno1!", true, StrengthStrong},
		{"missing special", "Abcdefghijkl1234", false, StrengthMedium},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ValidatePassword(c.pw)
			if got.Valid != c.valid {
				t.Errorf("Valid = %v, want %v (errors: %v)", got.Valid, c.valid, got.Errors)
			}
			if got.Strength != c.strength {
				t.Errorf("Strength = %v, want %v", got.Strength, c.strength)
			}
		})
	}
}

func TestValidateSecretKey(t *testing.T) {
	if err := ValidateSecretKey("DATABASE_URL"); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
	if err := ValidateSecretKey("database_url"); err == nil {
		t.Error("expected lowercase key to be rejected")
	}
	if err := ValidateSecretKey(""); err == nil {
		t.Error("expected empty key to be rejected")
	}
	if err := ValidateSecretKey("1KEY"); err == nil {
		t.Error("expected key not starting with a letter to be rejected")
	}
}

func TestValidateEnvironment(t *testing.T) {
	for _, e := range Environments {
		if err := ValidateEnvironment(e); err != nil {
			t.Errorf("expected %q to be valid, got %v", e, err)
		}
	}
	if err := ValidateEnvironment("production"); err == nil {
		t.Error("expected unrecognized environment to be rejected")
	}
}
