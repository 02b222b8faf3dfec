// ABOUTME: Tests for identity resolution
// ABOUTME: Verifies username precedence and username@source handling

package identity

import (
	"testing"
)

func TestUsername(t *testing.T) {
	t.Setenv("AGORA_USER", "")
	t.Setenv("USER", "Harper")

	tests := []struct {
		name     string
		override string
		env      string
		want     string
	}{
		{"with override", "MyBot", "", "mybot"},
		{"agora user env", "", "sam", "sam"},
		{"falls back to USER", "", "", "harper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AGORA_USER", tt.env)
			if got := Username(tt.override); got != tt.want {
				t.Errorf("Username() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnonymous(t *testing.T) {
	t.Setenv("AGORA_USER", "")
	t.Setenv("USER", "")
	if got := Username(""); got != "anonymous" {
		t.Errorf("expected anonymous, got %s", got)
	}
}

func TestGetIdentity(t *testing.T) {
	if got := GetIdentity("mybot", "mcp"); got != "mybot@mcp" {
		t.Errorf("GetIdentity() = %v", got)
	}
}

func TestParseIdentity(t *testing.T) {
	user, source := ParseIdentity("harper@cli")
	if user != "harper" {
		t.Errorf("expected user 'harper', got '%s'", user)
	}
	if source != "cli" {
		t.Errorf("expected source 'cli', got '%s'", source)
	}

	user, source = ParseIdentity("solo")
	if user != "solo" || source != "unknown" {
		t.Errorf("unexpected parse of bare name: %s %s", user, source)
	}
}
