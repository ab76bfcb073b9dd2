// Package validation provides input validation utilities.
package validation

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

const (
	maxNicknameLen = 32
	maxRoomNameLen = 64
	maxMessageLen  = 2000
)

// Sanitize escapes markup-significant characters so stored names and text
// messages are inert when rendered by a client.
func Sanitize(text string) string {
	return html.EscapeString(text)
}

// ValidateNickname checks that a display name is usable.
func ValidateNickname(nickname string) error {
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" {
		return fmt.Errorf("nickname must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxNicknameLen {
		return fmt.Errorf("nickname must not exceed %d characters", maxNicknameLen)
	}
	return nil
}

// ValidateRoomName checks that a room name is usable.
func ValidateRoomName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("room name must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxRoomNameLen {
		return fmt.Errorf("room name must not exceed %d characters", maxRoomNameLen)
	}
	return nil
}

// ValidateMessage bounds the size of a text message.
func ValidateMessage(message string) error {
	if message == "" {
		return fmt.Errorf("message must not be empty")
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		return fmt.Errorf("message must not exceed %d characters", maxMessageLen)
	}
	return nil
}
