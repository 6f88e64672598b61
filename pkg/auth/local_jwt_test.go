package auth

import (
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	testCases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid bearer", "Bearer abc123", "abc123", false},
		{"case insensitive scheme", "bearer abc123", "abc123", false},
		{"empty header", "", "", true},
		{"no scheme", "abc123", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"empty token", "Bearer   ", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := ExtractToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for header %q", tc.header)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if token != tc.want {
				t.Errorf("Got token %q, want %q", token, tc.want)
			}
		})
	}
}

func TestGenerateAndVerifyAccessToken(t *testing.T) {
	jwtAuth, err := NewLocalJWTAuth("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("Failed to create auth: %v", err)
	}

	token, err := jwtAuth.GenerateAccessToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	user, err := jwtAuth.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if user.ID != "user-1" || user.Email != "alice@example.com" || user.Role != "user" {
		t.Errorf("Unexpected user %+v", user)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, _ := NewLocalJWTAuth("secret-a", time.Minute)
	verifier, _ := NewLocalJWTAuth("secret-b", time.Minute)

	token, err := signer.GenerateAccessToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := verifier.VerifyAccessToken(token); err == nil {
		t.Error("Token signed with a different secret must not verify")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	jwtAuth, _ := NewLocalJWTAuth("test-secret", time.Minute)
	jwtAuth.AccessTokenExpiry = -time.Minute

	token, err := jwtAuth.GenerateAccessToken("user-1", "alice@example.com", "user")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := jwtAuth.VerifyAccessToken(token); err == nil {
		t.Error("Expired token must not verify")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	jwtAuth, _ := NewLocalJWTAuth("test-secret", time.Minute)

	if _, err := jwtAuth.VerifyAccessToken("not.a.jwt"); err == nil {
		t.Error("Garbage token must not verify")
	}
}

func TestNewLocalJWTAuthRequiresSecret(t *testing.T) {
	if _, err := NewLocalJWTAuth("", time.Minute); err == nil {
		t.Error("Empty secret must be rejected")
	}
}
