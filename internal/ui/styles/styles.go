// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Text hierarchy
	TextPrimaryColor   = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#CCCCCC"} // Main/primary text
	TextSecondaryColor = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"} // Paths, secondary info
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"} // Hints, placeholders, footers

	// Borders
	BorderDefaultColor   = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderHighlightColor = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Status indicators
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}

	// Diff colors
	DiffAdditionColor = lipgloss.AdaptiveColor{Light: "#2DA44E", Dark: "#73F59F"}
	DiffDeletionColor = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF8787"}
	DiffHunkColor     = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#54A0FF"}
	DiffContextColor  = lipgloss.AdaptiveColor{Light: "#57606A", Dark: "#999999"}

	// Selection
	SelectionIndicatorColor = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	SelectionBgColor        = lipgloss.AdaptiveColor{Light: "#DDF4FF", Dark: "#1A5276"}
)

var (
	SelectionIndicatorStyle = lipgloss.NewStyle().Bold(true).Foreground(SelectionIndicatorColor)

	// File headers
	FileHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)

	// Diff lines
	DiffAdditionStyle = lipgloss.NewStyle().Foreground(DiffAdditionColor)
	DiffDeletionStyle = lipgloss.NewStyle().Foreground(DiffDeletionColor)
	DiffContextStyle  = lipgloss.NewStyle().Foreground(DiffContextColor)
	DiffHunkStyle     = lipgloss.NewStyle().Foreground(DiffHunkColor)
	DiffWordStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	LineNumberStyle   = lipgloss.NewStyle().Foreground(TextMutedColor)
	PlaceholderStyle  = lipgloss.NewStyle().Foreground(TextMutedColor).Italic(true)

	// Sidebar
	SidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(BorderDefaultColor)
	SidebarItemStyle     = lipgloss.NewStyle().Foreground(TextSecondaryColor)
	SidebarSelectedStyle = lipgloss.NewStyle().Bold(true).
				Foreground(SelectionIndicatorColor).
				Background(SelectionBgColor)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	// Error display
	ErrorStyle = lipgloss.NewStyle().
			Foreground(StatusErrorColor).
			Bold(true).
			Padding(1, 2)
)
