package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n\n" + strings.Repeat("b", 2000) + "\n" + strings.Repeat("c", 500)

	parts := SplitMessage(text, MessageLimit)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatalf("неожиданная первая часть")
	}
	if parts[1] != strings.Repeat("b", 2000)+"\n"+strings.Repeat("c", 500) {
		t.Fatalf("неожиданная вторая часть")
	}
}

func TestSplitMessageCases(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "empty", text: "  \n ", limit: 10, want: nil},
		{name: "short", text: "hello", limit: 10, want: []string{"hello"}},
		{name: "hard cut", text: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "runes", text: "привет\nмир", limit: 7, want: []string{"привет", "мир"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMessage(tt.text, tt.limit)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Fatalf("получили %q, ожидали %q", got, tt.want)
			}
		})
	}
}
