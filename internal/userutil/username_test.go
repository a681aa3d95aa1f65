package userutil

import (
	"errors"
	"os/user"
	"testing"
)

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "alice", want: "alice"},
		{name: "domain user", input: "DOMAIN\\user", want: "DOMAIN_user"},
		{name: "email", input: "user@domain.com", want: "user_domain.com"},
		{name: "empty", input: "", want: "unknown"},
		{name: "whitespace", input: "  ", want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUsername(tt.input); got != tt.want {
				t.Fatalf("SanitizeUsername(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCurrentUsername(t *testing.T) {
	original := lookupCurrentUserFn
	t.Cleanup(func() { lookupCurrentUserFn = original })
	lookupCurrentUserFn = func() (*user.User, error) {
		return &user.User{Username: `CORP\player one`}, nil
	}

	tests := []struct {
		name     string
		username string
		user     string
		want     string
	}{
		{name: "windows env wins", username: "gamer", user: "other", want: "gamer"},
		{name: "unix env fallback", username: "", user: "penguin", want: "penguin"},
		{name: "account lookup", username: "", user: "", want: "CORP_player_one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("USERNAME", tt.username)
			t.Setenv("USER", tt.user)
			if got := CurrentUsername(); got != tt.want {
				t.Fatalf("CurrentUsername() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCurrentUsernameLookupFailure(t *testing.T) {
	original := lookupCurrentUserFn
	t.Cleanup(func() { lookupCurrentUserFn = original })
	lookupCurrentUserFn = func() (*user.User, error) {
		return nil, errors.New("no passwd entry")
	}
	t.Setenv("USERNAME", "")
	t.Setenv("USER", "")

	if got := CurrentUsername(); got != "unknown" {
		t.Fatalf("CurrentUsername() = %q, want unknown", got)
	}
}
