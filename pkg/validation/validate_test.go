package validation

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"ok", "th_123-abc", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"colon", "th:1", true},
		{"embedded space", "th 1", true},
		{"control char", "th\x01", true},
		{"too long", strings.Repeat("a", 129), true},
		{"max length", strings.Repeat("a", 128), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("thread", tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTag(t *testing.T) {
	if err := ValidateTag("ops-urgent"); err != nil {
		t.Fatalf("valid tag rejected: %v", err)
	}
	if err := ValidateTag(""); err == nil {
		t.Fatalf("empty tag accepted")
	}
	if err := ValidateTag("a:b"); err == nil {
		t.Fatalf("tag with ':' accepted")
	}
	if err := ValidateTag(strings.Repeat("x", 65)); err == nil {
		t.Fatalf("overlong tag accepted")
	}
}

func TestValidateBody(t *testing.T) {
	if err := ValidateBody(strings.Repeat("x", 64*1024)); err != nil {
		t.Fatalf("max body rejected: %v", err)
	}
	if err := ValidateBody(strings.Repeat("x", 64*1024+1)); err == nil {
		t.Fatalf("oversized body accepted")
	}
}

func TestValidateMentions(t *testing.T) {
	if err := ValidateMentions([]string{"alice", "bob"}); err != nil {
		t.Fatalf("valid mentions rejected: %v", err)
	}
	if err := ValidateMentions([]string{"alice", "bad:user"}); err == nil {
		t.Fatalf("invalid mention accepted")
	}
}
