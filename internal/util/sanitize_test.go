package util

import "testing"

func TestSanitizeDirName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaces and parens", input: "Helicopter Game (v2)", want: "Helicopter-Game-v2"},
		{name: "camel case preserved", input: "HelicopterGame", want: "HelicopterGame"},
		{name: "already hyphenated", input: "helicopter-game", want: "helicopter-game"},
		{name: "underscores preserved", input: "my_cool_app", want: "my_cool_app"},
		{name: "leading trailing spaces", input: "  spaces  ", want: "spaces"},
		{name: "collapse hyphens", input: "a--b", want: "a-b"},
		{name: "mixed special chars", input: "todo!@#$%^&*list", want: "todolist"},
		{name: "trailing hyphen after strip", input: "game-", want: "game"},
		{name: "only special chars", input: "()", want: ""},
		{name: "empty string", input: "", want: ""},
		{name: "numbers", input: "snake-123", want: "snake-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeDirName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeDirName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
