package keys

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/require"
)

func TestReview_KeyAssignments(t *testing.T) {
	tests := []struct {
		name     string
		binding  key.Binding
		expected []string
	}{
		{name: "Down", binding: Review.Down, expected: []string{"j", "down"}},
		{name: "Up", binding: Review.Up, expected: []string{"k", "up"}},
		{name: "HalfPageDown", binding: Review.HalfPageDown, expected: []string{"ctrl+d", "pgdown"}},
		{name: "HalfPageUp", binding: Review.HalfPageUp, expected: []string{"ctrl+u", "pgup"}},
		{name: "Top", binding: Review.Top, expected: []string{"g", "home"}},
		{name: "Bottom", binding: Review.Bottom, expected: []string{"G", "end"}},
		{name: "NextFile", binding: Review.NextFile, expected: []string{"n", "]"}},
		{name: "PrevFile", binding: Review.PrevFile, expected: []string{"p", "["}},
		{name: "Toggle", binding: Review.Toggle, expected: []string{"enter", " "}},
		{name: "Refresh", binding: Review.Refresh, expected: []string{"r"}},
		{name: "Help", binding: Review.Help, expected: []string{"?"}},
		{name: "Close", binding: Review.Close, expected: []string{"esc"}},
		{name: "Quit", binding: Review.Quit, expected: []string{"q", "ctrl+c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.binding.Keys())
			require.NotEmpty(t, tt.binding.Help().Desc)
		})
	}
}

func TestReview_NoDuplicateKeys(t *testing.T) {
	seen := make(map[string]string)
	for _, group := range Review.FullHelp() {
		for _, b := range group {
			for _, k := range b.Keys() {
				prev, dup := seen[k]
				require.False(t, dup, "key %q bound to both %q and %q", k, prev, b.Help().Desc)
				seen[k] = b.Help().Desc
			}
		}
	}
}

func TestReview_ShortHelpSubsetOfFullHelp(t *testing.T) {
	full := make(map[string]bool)
	for _, group := range Review.FullHelp() {
		for _, b := range group {
			full[b.Help().Desc] = true
		}
	}
	for _, b := range Review.ShortHelp() {
		require.True(t, full[b.Help().Desc], "short help %q missing from full help", b.Help().Desc)
	}
}
