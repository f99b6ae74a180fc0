package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/klauern/amsync/internal/backup"
)

// BackupAction represents the action to perform on a selected backup.
type BackupAction int

const (
	// ActionNone means no action was taken (user quit).
	ActionNone BackupAction = iota
	// ActionRestore means the user wants to restore the selected backup.
	ActionRestore
	// ActionDelete means the user wants to delete the selected backup.
	ActionDelete
	// ActionVerify means the user wants to verify the selected backup.
	ActionVerify
)

// BackupListResult contains the result of the backup list interaction.
type BackupListResult struct {
	Action BackupAction
	Backup backup.Metadata
}

type backupListKeyMap struct {
	Restore key.Binding
	Delete  key.Binding
	Verify  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultBackupListKeyMap() backupListKeyMap {
	return backupListKeyMap{
		Restore: key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r/enter", "restore")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Verify:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

var backupListStyles = struct {
	Title   lipgloss.Style
	Help    lipgloss.Style
	Confirm lipgloss.Style
	Status  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Confirm: lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Padding(1, 2),
	Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
}

// BackupListModel lets the user pick a rules file backup and an action.
type BackupListModel struct {
	table    table.Model
	backups  []backup.Metadata
	keys     backupListKeyMap
	result   BackupListResult
	pending  BackupListResult
	confirm  bool
	showHelp bool
	quitting bool
}

// NewBackupListModel creates a backup list over backups, newest first.
func NewBackupListModel(backups []backup.Metadata, now time.Time) BackupListModel {
	columns := []table.Column{
		{Title: "ID", Width: 26},
		{Title: "Source", Width: 40},
		{Title: "Created", Width: 16},
		{Title: "Size", Width: 9},
	}

	rows := make([]table.Row, len(backups))
	for i, b := range backups {
		rows[i] = table.Row{
			b.ID,
			shortenPath(b.SourcePath, 40),
			humanize.RelTime(b.CreatedAt, now, "ago", "from now"),
			humanize.Bytes(uint64(max(b.Size, 0))),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(max(len(rows), 1), 15)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return BackupListModel{
		table:   t,
		backups: backups,
		keys:    defaultBackupListKeyMap(),
	}
}

// shortenPath keeps the tail of p within width.
func shortenPath(p string, width int) string {
	if len(p) <= width {
		return p
	}
	return "..." + p[len(p)-width+3:]
}

// Init implements tea.Model.
func (m BackupListModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m BackupListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-8, 5))

	case tea.KeyMsg:
		if m.confirm {
			switch msg.String() {
			case "y", "Y":
				m.result = m.pending
				m.quitting = true
				return m, tea.Quit
			default:
				m.confirm = false
				m.pending = BackupListResult{}
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Restore):
			return m.ask(ActionRestore), nil

		case key.Matches(msg, m.keys.Delete):
			return m.ask(ActionDelete), nil

		case key.Matches(msg, m.keys.Verify):
			if selected, ok := m.selected(); ok {
				m.result = BackupListResult{Action: ActionVerify, Backup: selected}
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// ask switches to confirmation for a destructive action on the selection.
func (m BackupListModel) ask(action BackupAction) BackupListModel {
	if selected, ok := m.selected(); ok {
		m.pending = BackupListResult{Action: action, Backup: selected}
		m.confirm = true
	}
	return m
}

func (m BackupListModel) selected() (backup.Metadata, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.backups) {
		return backup.Metadata{}, false
	}
	return m.backups[cursor], true
}

// View implements tea.Model.
func (m BackupListModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(backupListStyles.Title.Render("Rules file backups"))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	if m.confirm {
		verb := "Restore"
		if m.pending.Action == ActionDelete {
			verb = "Delete"
		}
		b.WriteString(backupListStyles.Confirm.Render(fmt.Sprintf("%s backup %s? (y/n)", verb, m.pending.Backup.ID)))
		return b.String()
	}

	b.WriteString(backupListStyles.Status.Render(fmt.Sprintf("%d backup(s)", len(m.backups))))
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(backupListStyles.Help.Render(`  ↑/k ↓/j   Move
  r/enter   Restore selected backup
  d         Delete selected backup
  v         Verify selected backup
  q/esc     Quit`))
	} else {
		b.WriteString(backupListStyles.Help.Render("↑/↓ navigate • r restore • d delete • v verify • ? help • q quit"))
	}
	return b.String()
}

// Result returns the result of the user interaction.
func (m BackupListModel) Result() BackupListResult {
	return m.result
}

// RunBackupList runs the interactive backup list and returns the result.
func RunBackupList(backups []backup.Metadata) (BackupListResult, error) {
	if len(backups) == 0 {
		return BackupListResult{}, nil
	}

	final, err := Run(NewBackupListModel(backups, time.Now()), tea.WithAltScreen())
	if err != nil {
		return BackupListResult{}, err
	}
	if m, ok := final.(BackupListModel); ok {
		return m.Result(), nil
	}
	return BackupListResult{}, nil
}
