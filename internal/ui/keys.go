package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the feed bindings. It implements help.KeyMap for the status bar.
type keyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Like     key.Binding
	More     key.Binding
	Comments key.Binding
	Retry    key.Binding
	Debug    key.Binding
	Quit     key.Binding

	// comment sheet
	Submit key.Binding
	Close  key.Binding
	Scroll key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "scroll")),
		Prev:     key.NewBinding(key.WithKeys("k", "up")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g/G", "top/end")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end")),
		Like:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		More:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "more")),
		Comments: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "comments")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Debug:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "debug")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "post")),
		Close:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Scroll: key.NewBinding(key.WithKeys("up", "down", "pgup", "pgdown"), key.WithHelp("↑/↓", "scroll")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Like, k.More, k.Comments, k.Debug, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Top, k.Retry}}
}

// sheetKeys is the help.KeyMap shown while the comment sheet is open.
type sheetKeys struct{ keyMap }

func (k sheetKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Scroll, k.Close}
}

func (k sheetKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
