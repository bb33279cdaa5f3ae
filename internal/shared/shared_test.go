package shared

import (
	"errors"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already canonical",
			input: "user@example.com",
			want:  "user@example.com",
		},
		{
			name:  "surrounding whitespace",
			input: "  user@example.com  ",
			want:  "user@example.com",
		},
		{
			name:  "domain is lowercased",
			input: "User@Example.COM",
			want:  "User@example.com",
		},
		{
			name:  "subaddress kept",
			input: "user+wrapped@mail.example.org",
			want:  "user+wrapped@mail.example.org",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeEmail(tt.input)
			if err != nil {
				t.Fatalf("NormalizeEmail(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	t.Run("rejects invalid addresses", func(t *testing.T) {
		for _, input := range []string{
			"",
			"   ",
			"not-an-email",
			"user@",
			"@example.com",
			"user@localhost",
			"user@example.",
			"Jane <jane@example.com>",
			"a@b@example.com",
		} {
			if _, err := NormalizeEmail(input); !errors.Is(err, ErrInvalidEmail) {
				t.Errorf("NormalizeEmail(%q) error = %v, want ErrInvalidEmail", input, err)
			}
		}
	})
}

func TestGenerateState(t *testing.T) {
	seen := map[string]bool{}
	for range 20 {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("GenerateState() error: %v", err)
		}
		if len(state) != 43 {
			t.Errorf("expected 43 character state, got %d", len(state))
		}
		if seen[state] {
			t.Fatalf("duplicate state generated: %s", state)
		}
		seen[state] = true
	}
}

func TestRebind(t *testing.T) {
	query := "UPDATE users SET a = ?, b = ? WHERE id = ?"

	t.Run("sqlite keeps placeholders", func(t *testing.T) {
		db := &DB{driver: DriverSQLite}
		if got := db.Rebind(query); got != query {
			t.Errorf("Rebind() = %v, want %v", got, query)
		}
	})

	t.Run("postgres numbers placeholders", func(t *testing.T) {
		db := &DB{driver: DriverPostgres}
		want := "UPDATE users SET a = $1, b = $2 WHERE id = $3"
		if got := db.Rebind(query); got != want {
			t.Errorf("Rebind() = %v, want %v", got, want)
		}
	})
}
