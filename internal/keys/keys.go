// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// ReviewKeyMap defines the keybindings of the review pane.
type ReviewKeyMap struct {
	// Scrolling
	Down         key.Binding
	Up           key.Binding
	HalfPageDown key.Binding
	HalfPageUp   key.Binding
	Top          key.Binding
	Bottom       key.Binding

	// File navigation
	NextFile key.Binding
	PrevFile key.Binding
	Toggle   key.Binding

	// General
	Refresh key.Binding
	Help    key.Binding
	Close   key.Binding
	Quit    key.Binding
}

// Review holds the default review pane bindings.
var Review = DefaultReviewKeyMap()

// DefaultReviewKeyMap returns the default review pane bindings.
func DefaultReviewKeyMap() ReviewKeyMap {
	return ReviewKeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "half page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "half page up"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		NextFile: key.NewBinding(
			key.WithKeys("n", "]"),
			key.WithHelp("n", "next file"),
		),
		PrevFile: key.NewBinding(
			key.WithKeys("p", "["),
			key.WithHelp("p", "previous file"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter/space", "expand/collapse"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload diffs"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k ReviewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.NextFile, k.PrevFile, k.Toggle, k.Help, k.Quit}
}

// FullHelp returns all bindings grouped by column.
func (k ReviewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Down, k.Up, k.HalfPageDown, k.HalfPageUp, k.Top, k.Bottom},
		{k.NextFile, k.PrevFile, k.Toggle},
		{k.Refresh, k.Help, k.Close, k.Quit},
	}
}
