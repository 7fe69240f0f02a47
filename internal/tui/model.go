package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tasklist-cli/internal/model"
)

// Controller is the subset of *controller.Controller the UI drives. Every call
// happens inside a closure handed to post, i.e. on the controller's loop.
type Controller interface {
	SetPendingProjectName(name string)
	SetPendingTaskName(name string)
	AddProject()
	AddTask() error
	MoveProjectUp(i int) bool
	MoveProjectDown(i int) bool
	DeleteProject(i int) bool
	MoveTaskUp(i int) (bool, error)
	MoveTaskDown(i int) (bool, error)
	DeleteTask(i int) (bool, error)
	ViewProject(ctx context.Context, i int) error
}

var errControllerStopped = errors.New("controller stopped")

type panel int

const (
	panelProjects panel = iota
	panelTasks
)

type (
	stateMsg model.State
	errMsg   struct{ err error }
	readyMsg struct{ ctrl Controller }
)

type appModel struct {
	ctx    context.Context
	post   func(func()) bool
	report func(error)
	ctrl   Controller

	state  model.State
	focus  panel
	cursor [2]int

	adding bool
	input  textinput.Model
	help   help.Model

	width  int
	height int
	err    error
}

// newAppModel builds the UI model. post queues work on the controller loop;
// report carries errors raised there back into the UI.
func newAppModel(ctx context.Context, post func(func()) bool, report func(error)) appModel {
	in := textinput.New()
	in.Prompt = "+ "
	in.CharLimit = 0
	return appModel{
		ctx:    ctx,
		post:   post,
		report: report,
		input:  in,
		help:   help.New(),
		state:  model.State{Projects: []string{}, Tasks: []string{}},
	}
}

func (m appModel) Init() tea.Cmd { return nil }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case readyMsg:
		m.ctrl = msg.ctrl
		return m, nil
	case stateMsg:
		m.state = model.State(msg).Clone()
		m.clampCursors()
		return m, nil
	case errMsg:
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		if m.adding {
			return m.updateAdding(msg)
		}
		return m.updateBrowsing(msg)
	}
	if m.adding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m appModel) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}
	m.err = nil
	if m.ctrl == nil {
		return m, nil
	}
	c := m.ctrl
	i := m.cursor[m.focus]
	n := m.rowCount(m.focus)

	switch {
	case key.Matches(msg, keys.Switch):
		m.focus = 1 - m.focus
	case key.Matches(msg, keys.Up):
		if i > 0 {
			m.cursor[m.focus] = i - 1
		}
	case key.Matches(msg, keys.Down):
		if i < n-1 {
			m.cursor[m.focus] = i + 1
		}
	case key.Matches(msg, keys.View):
		if m.focus == panelProjects && n > 0 {
			ctx := m.ctx
			m.dispatch(func() error { return c.ViewProject(ctx, i) })
		}
	case key.Matches(msg, keys.MoveUp):
		if i <= 0 || i >= n {
			break
		}
		m.cursor[m.focus] = i - 1
		if m.focus == panelProjects {
			m.dispatch(func() error { c.MoveProjectUp(i); return nil })
		} else {
			m.dispatch(func() error { _, err := c.MoveTaskUp(i); return err })
		}
	case key.Matches(msg, keys.MoveDown):
		if i >= n-1 {
			break
		}
		m.cursor[m.focus] = i + 1
		if m.focus == panelProjects {
			m.dispatch(func() error { c.MoveProjectDown(i); return nil })
		} else {
			m.dispatch(func() error { _, err := c.MoveTaskDown(i); return err })
		}
	case key.Matches(msg, keys.Delete):
		if n == 0 {
			break
		}
		if m.focus == panelProjects {
			m.dispatch(func() error { c.DeleteProject(i); return nil })
		} else {
			m.dispatch(func() error { _, err := c.DeleteTask(i); return err })
		}
	case key.Matches(msg, keys.Add):
		if m.focus == panelTasks && !m.state.Selected {
			m.err = errors.New("select a project first")
			break
		}
		m.adding = true
		m.input.SetValue("")
		return m, m.input.Focus()
	}
	return m, nil
}

func (m appModel) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.ctrl
	focus := m.focus
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, keys.Cancel):
		m.adding = false
		m.input.Blur()
		m.input.SetValue("")
		m.dispatch(func() error { setPending(c, focus, ""); return nil })
		return m, nil
	case key.Matches(msg, keys.Submit):
		name := m.input.Value()
		m.adding = false
		m.input.Blur()
		m.input.SetValue("")
		m.dispatch(func() error {
			setPending(c, focus, name)
			if focus == panelProjects {
				c.AddProject()
				return nil
			}
			return c.AddTask()
		})
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.dispatch(func() error { setPending(c, focus, after); return nil })
	}
	return m, cmd
}

func setPending(c Controller, p panel, name string) {
	if p == panelProjects {
		c.SetPendingProjectName(name)
	} else {
		c.SetPendingTaskName(name)
	}
}

// dispatch runs fn on the controller loop; its error comes back through report.
func (m *appModel) dispatch(fn func() error) {
	report := m.report
	ok := m.post(func() {
		if err := fn(); err != nil && report != nil {
			report(err)
		}
	})
	if !ok {
		m.err = errControllerStopped
	}
}

func (m appModel) rowCount(p panel) int {
	if p == panelProjects {
		return len(m.state.Projects)
	}
	return len(m.state.Tasks)
}

func (m *appModel) clampCursors() {
	for _, p := range []panel{panelProjects, panelTasks} {
		n := m.rowCount(p)
		switch {
		case n == 0:
			m.cursor[p] = 0
		case m.cursor[p] >= n:
			m.cursor[p] = n - 1
		}
	}
}
