package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pagerKeyMap defines the key bindings for the diff pager.
type pagerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultPagerKeyMap() pagerKeyMap {
	return pagerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "enter", "ctrl+c"),
			key.WithHelp("q/enter", "close"),
		),
	}
}

// Styles for the diff pager.
var pagerStyles = struct {
	Title   lipgloss.Style
	Help    lipgloss.Style
	Status  lipgloss.Style
	Header  lipgloss.Style
	Hunk    lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
	Hunk:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
	Added:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	Removed: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

// PagerModel is the BubbleTea model for scrolling through a unified diff.
type PagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	keys     pagerKeyMap
	showHelp bool
	quitting bool
	ready    bool
}

// NewPagerModel creates a pager showing diff under title.
func NewPagerModel(title, diff string) PagerModel {
	return PagerModel{
		title:   title,
		content: styleDiff(diff),
		keys:    defaultPagerKeyMap(),
	}
}

// Init implements tea.Model.
func (m PagerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m PagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 2 // Title + spacing
		footerHeight := 2 // Status + help
		viewportHeight := max(msg.Height-headerHeight-footerHeight, 5)

		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m PagerModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(pagerStyles.Title.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	status := fmt.Sprintf("%d lines • %d%%", m.viewport.TotalLineCount(), int(m.viewport.ScrollPercent()*100))
	b.WriteString(pagerStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(pagerStyles.Help.Render(`  ↑/k ↓/j  Scroll
  PgUp/PgDn Page
  g/G       Top/bottom
  q/enter   Close`))
	} else {
		b.WriteString(pagerStyles.Help.Render("↑/↓ scroll • g/G top/bottom • ? help • q close"))
	}
	return b.String()
}

// styleDiff colors the lines of a unified diff.
func styleDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	inHunk := false
	for i, line := range lines {
		switch {
		case !inHunk && !strings.HasPrefix(line, "@@"):
			lines[i] = pagerStyles.Header.Render(line)
		case strings.HasPrefix(line, "@@"):
			inHunk = true
			lines[i] = pagerStyles.Hunk.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = pagerStyles.Added.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = pagerStyles.Removed.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// RunPager shows diff in a full-screen pager until the user closes it.
func RunPager(title, diff string) error {
	_, err := Run(NewPagerModel(title, diff), tea.WithAltScreen())
	return err
}
