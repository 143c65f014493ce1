package util

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("idea")
	if !strings.HasPrefix(id, "idea_") {
		t.Fatalf("NewID() = %q, want idea_ prefix", id)
	}
	if len(id) != len("idea_")+32 {
		t.Fatalf("NewID() length = %d", len(id))
	}
	if NewID("idea") == id {
		t.Fatal("NewID() returned duplicate ids")
	}
	if strings.Contains(NewID(""), "_") {
		t.Fatal("NewID(\"\") should not contain a prefix separator")
	}
}
