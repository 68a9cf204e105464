package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"opskit/internal/registry"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	categoryStyle = lipgloss.NewStyle().Faint(true)
	descStyle     = lipgloss.NewStyle().Faint(true)
)

type pickerModel struct {
	tools    []registry.ToolDescriptor
	cursor   int
	selected int
	done     bool
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.done = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.tools)-1 {
			m.cursor++
		}
	case "enter":
		m.selected = m.cursor
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.done {
		return ""
	}

	view := titleStyle.Render("Select a tool") + "\n\n"
	for i, tool := range m.tools {
		cursor := "  "
		line := fmt.Sprintf("%s/%s", categoryStyle.Render(tool.Category), tool.Name)
		if tool.Description != "" {
			line += "  " + descStyle.Render(tool.Description)
		}
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		view += cursor + line + "\n"
	}
	view += "\n" + descStyle.Render("enter: run  q: cancel") + "\n"
	return view
}

// PickTool shows an interactive list and returns the chosen descriptor. The
// second return is false when the user cancels.
func PickTool(tools []registry.ToolDescriptor) (registry.ToolDescriptor, bool, error) {
	if len(tools) == 0 {
		return registry.ToolDescriptor{}, false, fmt.Errorf("no tools discovered")
	}

	model := pickerModel{tools: tools, selected: -1}
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return registry.ToolDescriptor{}, false, err
	}

	m, ok := final.(pickerModel)
	if !ok || m.selected < 0 {
		return registry.ToolDescriptor{}, false, nil
	}
	return tools[m.selected], true, nil
}
