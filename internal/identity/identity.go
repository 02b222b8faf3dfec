// ABOUTME: Identity resolution for forum actors
// ABOUTME: Handles acting username and username@source format

package identity

import (
	"os"
	"strings"
)

// Username returns the acting username.
// If override is provided it wins, then $AGORA_USER, then $USER.
func Username(override string) string {
	username := strings.TrimSpace(override)
	if username == "" {
		username = os.Getenv("AGORA_USER")
	}
	if username == "" {
		username = os.Getenv("USER")
	}
	if username == "" {
		username = "anonymous"
	}
	return strings.ToLower(username)
}

// GetIdentity returns the username qualified by the surface it acted through.
func GetIdentity(override, source string) string {
	return Username(override) + "@" + source
}

// ParseIdentity splits an identity string into username and source.
func ParseIdentity(id string) (username, source string) {
	parts := strings.SplitN(id, "@", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return id, "unknown"
}
