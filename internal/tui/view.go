package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

const defaultWidth = 60

func (m appModel) View() string {
	w := m.width
	if w <= 0 {
		w = defaultWidth
	}

	var b strings.Builder
	b.WriteString(stylePanelTitle(m.focus == panelProjects).Render("Projects"))
	b.WriteByte('\n')
	m.renderRows(&b, panelProjects, w)

	b.WriteString(styleMuted().Render(strings.Repeat(glyphHRule(), w)))
	b.WriteByte('\n')

	if m.state.Selected {
		b.WriteString(styleHeading().Render(clip(m.state.CurrentProject, w)))
	} else if m.state.Switching {
		b.WriteString(styleMuted().Render("Loading…"))
	} else {
		b.WriteString(styleMuted().Render("No project selected"))
	}
	b.WriteByte('\n')
	b.WriteString(stylePanelTitle(m.focus == panelTasks).Render("Tasks"))
	b.WriteByte('\n')
	if m.state.Selected {
		m.renderRows(&b, panelTasks, w)
	}

	b.WriteByte('\n')
	if m.err != nil {
		b.WriteString(styleError().Render(clip(m.err.Error(), w)))
		b.WriteByte('\n')
	}
	var km help.KeyMap = keys
	if m.adding {
		km = addingKeys{}
	}
	b.WriteString(m.help.View(km))
	return b.String()
}

func (m appModel) renderRows(b *strings.Builder, p panel, w int) {
	items := m.state.Projects
	if p == panelTasks {
		items = m.state.Tasks
	}
	focused := m.focus == p
	if len(items) == 0 && !(m.adding && focused) {
		b.WriteString(styleMuted().Render("  (empty)"))
		b.WriteByte('\n')
	}
	for i, it := range items {
		selected := i == m.cursor[p]
		lead := "  "
		if selected && focused {
			lead = glyphCursor() + " "
		}
		mark := " "
		if p == panelProjects && m.state.Selected && it == m.state.CurrentProject {
			mark = glyphCurrent()
		}
		line := fmt.Sprintf("%s%s %s", lead, mark, it)
		b.WriteString(styleRow(selected, focused).Render(clip(line, w)))
		b.WriteByte('\n')
	}
	if m.adding && focused {
		b.WriteString(renderInputLine(w, m.input.View()))
		b.WriteByte('\n')
	}
}

func renderInputLine(w int, inputView string) string {
	inputView = strings.NewReplacer("\n", " ", "\r", " ").Replace(inputView)
	line := lipgloss.PlaceHorizontal(
		w,
		lipgloss.Left,
		" "+inputView,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(colorInputBg),
	)
	if xansi.StringWidth(line) > w {
		// Terminate styling so the cut does not bleed into the next line.
		line = xansi.Cut(line, 0, w) + "\x1b[0m"
	}
	return line
}

// clip truncates s to w terminal cells.
func clip(s string, w int) string {
	if w <= 0 || xansi.StringWidth(s) <= w {
		return s
	}
	return xansi.Truncate(s, w, "…")
}
