package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding of the browser. It implements help.KeyMap.
type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	Top           key.Binding
	Bottom        key.Binding
	Similar       key.Binding
	ThresholdUp   key.Binding
	ThresholdDown key.Binding
	Exit          key.Binding
	Index         key.Binding
	Open          key.Binding
	Search        key.Binding
	Back          key.Binding
	Forward       key.Binding
	Tag           key.Binding
	Sort          key.Binding
	Reload        key.Binding
	Logs          key.Binding
	Theme         key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:          key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		PageUp:        key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown:      key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Top:           key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:        key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Similar:       key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "find similar")),
		ThresholdUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "stricter")),
		ThresholdDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "looser")),
		Exit:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "exit similar")),
		Index:         key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "index folder")),
		Open:          key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open folder")),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Back:          key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous folder")),
		Forward:       key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next folder")),
		Tag:           key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle tag")),
		Sort:          key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle sort")),
		Reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Logs:          key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "toggle log")),
		Theme:         key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "cycle theme")),
		Help:          key.NewBinding(key.WithKeys("?", "h"), key.WithHelp("?", "help")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp is shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Similar, k.ThresholdUp, k.ThresholdDown, k.Open, k.Search, k.Help, k.Quit}
}

// FullHelp is shown in the help overlay, one column per group.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Similar, k.ThresholdUp, k.ThresholdDown, k.Exit, k.Index},
		{k.Open, k.Back, k.Forward, k.Search, k.Tag, k.Sort, k.Reload},
		{k.Logs, k.Theme, k.Help, k.Quit},
	}
}
