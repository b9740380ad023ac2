package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard shortcuts.
type KeyMap struct {
	Home       key.Binding
	Camera     key.Binding
	Capture    key.Binding
	Live       key.Binding
	Gallery    key.Binding
	Permission key.Binding
	Dismiss    key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Home: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "home"),
		),
		Camera: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "camera"),
		),
		Capture: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "take photo"),
		),
		Live: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "live scan"),
		),
		Gallery: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "gallery"),
		),
		Permission: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "permission"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc", "d"),
			key.WithHelp("esc", "dismiss"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Home, k.Camera, k.Capture, k.Live, k.Gallery, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Home, k.Camera, k.Capture, k.Live},
		{k.Gallery, k.Permission, k.Dismiss, k.Quit},
	}
}
