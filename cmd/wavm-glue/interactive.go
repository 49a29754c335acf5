package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wavm-glue/glue"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Lines taken by the title, the info line and the help line.
const chromeHeight = 4

type previewModel struct {
	viewport viewport.Model
	cfg      glue.Config
	content  string
	summary  glue.Summary
	ready    bool
	write    bool
}

func newPreviewModel(cfg glue.Config, summary glue.Summary, header []byte) *previewModel {
	return &previewModel{
		cfg:     cfg,
		summary: summary,
		content: string(header),
	}
}

func (m *previewModel) Init() tea.Cmd {
	return nil
}

func (m *previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.write = false
			return m, tea.Quit
		case "w", "enter":
			m.write = true
			return m, tea.Quit
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *previewModel) View() string {
	if !m.ready {
		return "Loading header..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("WAVM Glue"))
	b.WriteString(" ")
	b.WriteString(m.cfg.HeaderPath())
	b.WriteString("\n")

	object := "no object"
	if m.summary.ObjectFound {
		object = fmt.Sprintf("object %d bytes", m.summary.ObjectSize)
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("%d imports • %d functions • %d exports • %d memories • %s",
		m.summary.Imports, m.summary.Functions, len(m.summary.Exports), m.summary.Memories, object)))
	if !m.summary.HasMain {
		b.WriteString(" ")
		b.WriteString(errorStyle.Render("no " + m.cfg.EntryPoint + " export"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%3.f%% • ↑/↓ scroll • g/G top/bottom • w write • q discard",
		m.viewport.ScrollPercent()*100)))
	return b.String()
}

// runInteractive shows the generated header and reports whether the user
// chose to write the artifacts.
func runInteractive(cfg glue.Config, summary glue.Summary, header []byte) (bool, error) {
	m := newPreviewModel(cfg, summary, header)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return false, err
	}
	return m.write, nil
}
