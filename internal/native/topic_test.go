// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"strings"
	"testing"
)

func TestTopicValid(t *testing.T) {
	tests := []struct {
		topic string
		want  bool
	}{
		{"a", true},
		{"a/b/c", true},
		{"test_topic", true},
		{"", false},
		{"a//b", false},
		{"/a", false},
		{"a/", false},
		{"a\x00b", false},
		{strings.Repeat("x", maxTopicLen), true},
		{strings.Repeat("x", maxTopicLen+1), false},
	}
	for _, tt := range tests {
		if got := topicValid(tt.topic); got != tt.want {
			t.Errorf("topicValid(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}

func TestTopicMatch(t *testing.T) {
	tests := []struct {
		sub   string
		topic string
		want  bool
	}{
		// Exact.
		{"a/b/c", "a/b/c", true},
		{"a/b/c", "a/b/d", false},
		{"a/b", "a/b/c", false},
		{"a/b/c", "a/b", false},

		// '*' as a whole level matches exactly one level.
		{"a/*/c", "a/b/c", true},
		{"a/*/c", "a/x/c", true},
		{"a/*", "a/b", true},
		{"a/*", "a/b/c", false},
		{"*", "a", true},
		{"*", "a/b", false},

		// '*' as a level suffix matches a prefix within the level.
		{"a/b*/c", "a/bcd/c", true},
		{"a/b*/c", "a/b/c", true},
		{"a/b*/c", "a/cd/c", false},

		// '>' as the final level matches one or more remaining levels.
		{"a/>", "a/b", true},
		{"a/>", "a/b/c/d", true},
		{"a/>", "a", false},
		{">", "a/b", true},

		// Combined.
		{"a/*/>", "a/b/c", true},
		{"a/*/>", "a/b", false},

		{"", "a", false},
		{"a", "", false},
	}
	for _, tt := range tests {
		if got := topicMatch(tt.sub, tt.topic); got != tt.want {
			t.Errorf("topicMatch(%q, %q) = %v, want %v", tt.sub, tt.topic, got, tt.want)
		}
	}
}
