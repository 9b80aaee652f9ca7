// Package tui holds the terminal surfaces: huh prompts for human input, the
// lipgloss task renderers and the bubbletea watch dashboard.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Border    lipgloss.Style
	Key       lipgloss.Style
	Pending   lipgloss.Style
	Current   lipgloss.Style
	Completed lipgloss.Style
	Failed    lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).MarginBottom(1),
		Header:    lipgloss.NewStyle().Bold(true).Underline(true),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Border:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1),
		Key:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Pending:   lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		Current:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Completed: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		Failed:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

// ForStatus picks the style for a task status.
func (s Styles) ForStatus(st task.Status) lipgloss.Style {
	switch st {
	case task.StatusCurrent:
		return s.Current
	case task.StatusCompleted:
		return s.Completed
	case task.StatusFailed:
		return s.Failed
	default:
		return s.Pending
	}
}

func statusIcon(st task.Status) string {
	switch st {
	case task.StatusCurrent:
		return "⟳"
	case task.StatusCompleted:
		return "✓"
	case task.StatusFailed:
		return "✗"
	default:
		return "•"
	}
}
