package validation

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxIDLen   = 128
	maxTagLen  = 64
	maxBodyLen = 64 * 1024
)

// ValidateID checks an entity id (thread, user, group, message). Ids are
// opaque but must be non-empty, bounded, printable, and free of ':',
// which the store reserves as a key separator.
func ValidateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id required", kind)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s id too long (max %d)", kind, maxIDLen)
	}
	if strings.Contains(id, ":") {
		return fmt.Errorf("%s id must not contain ':'", kind)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%s id contains whitespace or control characters", kind)
		}
	}
	return nil
}

// ValidateTag checks a tag name. Same rules as ids, tighter bound.
func ValidateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("tag required")
	}
	if len(tag) > maxTagLen {
		return fmt.Errorf("tag too long (max %d)", maxTagLen)
	}
	if strings.Contains(tag, ":") {
		return fmt.Errorf("tag must not contain ':'")
	}
	return nil
}

// ValidateBody bounds a message body. Content is otherwise opaque.
func ValidateBody(body string) error {
	if len(body) > maxBodyLen {
		return fmt.Errorf("body too long (max %d bytes)", maxBodyLen)
	}
	return nil
}

// ValidateMentions checks each mentioned user id.
func ValidateMentions(mentions []string) error {
	for _, m := range mentions {
		if err := ValidateID("mentioned user", m); err != nil {
			return err
		}
	}
	return nil
}
