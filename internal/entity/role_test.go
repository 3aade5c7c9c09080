package entity

import "testing"

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "admin", expected: UserRoleAdmin},
		{input: "  Representative ", expected: UserRoleRepresentative},
		{input: "STAFF_MEMBER", expected: UserRoleStaffMember},
		{input: "staff", expected: ""},
		{input: "super_admin", expected: ""},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeRole(tt.input); got != tt.expected {
				t.Fatalf("NormalizeRole(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRolesReturnsCopy(t *testing.T) {
	roles := Roles()
	if len(roles) != 18 {
		t.Fatalf("expected 18 roles, got %d", len(roles))
	}
	roles[0] = "mutated"
	if Roles()[0] == "mutated" {
		t.Fatal("Roles must not expose the backing slice")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}

func TestHasPassword(t *testing.T) {
	empty := "  "
	hash := "$2a$10$abcdefghijklmnopqrstuv"
	var nilUser *DbUser
	if nilUser.HasPassword() {
		t.Fatal("nil user must not have a password")
	}
	if (&DbUser{}).HasPassword() {
		t.Fatal("user without hash must not have a password")
	}
	if (&DbUser{PasswordHash: &empty}).HasPassword() {
		t.Fatal("blank hash must not count as a password")
	}
	if !(&DbUser{PasswordHash: &hash}).HasPassword() {
		t.Fatal("expected stored hash to count as a password")
	}
}
