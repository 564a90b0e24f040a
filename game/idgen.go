package game

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var roomIDPattern = regexp.MustCompile(`^[a-z0-9_-]{3,32}$`)

// normalizeRoomID lowercases a caller-supplied room name and rejects
// anything outside the safe character set.
func normalizeRoomID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !roomIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomID, raw)
	}
	return id, nil
}

// generateRoomID returns a fresh system-chosen identifier.
func generateRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
