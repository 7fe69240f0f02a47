package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Switch   key.Binding
	View     key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Delete   key.Binding
	Add      key.Binding
	Submit   key.Binding
	Cancel   key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Switch:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch panel")),
	View:     key.NewBinding(key.WithKeys("enter", "v"), key.WithHelp("enter/v", "view project")),
	MoveUp:   key.NewBinding(key.WithKeys("K", "shift+up", "ctrl+k"), key.WithHelp("K", "move up")),
	MoveDown: key.NewBinding(key.WithKeys("J", "shift+down", "ctrl+j"), key.WithHelp("J", "move down")),
	Delete:   key.NewBinding(key.WithKeys("d", "x", "delete"), key.WithHelp("d/x", "delete")),
	Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
	Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.View, k.MoveUp, k.MoveDown, k.Delete, k.Add, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Switch, k.View},
		{k.MoveUp, k.MoveDown, k.Delete, k.Add},
		{k.Submit, k.Cancel, k.Quit},
	}
}

// addingKeys is shown while an add form is open.
type addingKeys struct{}

func (addingKeys) ShortHelp() []key.Binding   { return []key.Binding{keys.Submit, keys.Cancel} }
func (addingKeys) FullHelp() [][]key.Binding { return [][]key.Binding{{keys.Submit, keys.Cancel}} }

func isMoveUp(msg tea.KeyMsg) bool   { return key.Matches(msg, keys.MoveUp) }
func isMoveDown(msg tea.KeyMsg) bool { return key.Matches(msg, keys.MoveDown) }
